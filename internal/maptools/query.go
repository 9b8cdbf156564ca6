package maptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atlas/internal/store/postgres"
)

// maxQueryRows caps how many rows a single query returns to the agent.
const maxQueryRows = 100

const databaseUnavailableMsg = "Database connection is not available. Please check your PostgreSQL server."

// Query executes a read-only SQL query against the OSM database and renders
// the result as an aligned text table.
func (s *Service) Query(ctx context.Context, query string) string {
	if s.store == nil {
		return databaseUnavailableMsg
	}

	if !postgres.IsReadOnlyQuery(query) {
		return "Error: Only read-only queries are allowed for security reasons."
	}

	result, err := s.store.ExecuteQuery(ctx, query, maxQueryRows)
	if err != nil {
		if errors.Is(err, postgres.ErrQueryTimeout) {
			return "Error executing query: query execution timed out"
		}
		return fmt.Sprintf("Error executing query: %v", err)
	}

	if len(result.Rows) == 0 {
		return "Query executed successfully, but returned no results."
	}
	return result.FormatTable()
}

// ListTables returns the names of the public tables in the database.
func (s *Service) ListTables(ctx context.Context) string {
	if s.store == nil {
		return databaseUnavailableMsg
	}

	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return fmt.Sprintf("Error listing tables: %v", err)
	}
	if len(tables) == 0 {
		return "The database contains no public tables."
	}
	return strings.Join(tables, "\n")
}

// DescribeTable returns columns, indexes, and the approximate row count of a
// table.
func (s *Service) DescribeTable(ctx context.Context, table string) string {
	if s.store == nil {
		return databaseUnavailableMsg
	}
	if strings.TrimSpace(table) == "" {
		return "Error: table name must not be empty."
	}

	info, err := s.store.DescribeTable(ctx, table)
	if err != nil {
		return fmt.Sprintf("Error describing table %s: %v", table, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table %q (~%d rows)\n\nColumns:\n", info.Name, info.ApproximateRowCount)
	for _, col := range info.Columns {
		nullable := ""
		if strings.EqualFold(col.IsNullable, "NO") {
			nullable = " NOT NULL"
		}
		fmt.Fprintf(&sb, "  %s %s%s\n", col.Name, col.DataType, nullable)
	}
	if len(info.Indexes) > 0 {
		sb.WriteString("\nIndexes:\n")
		for _, idx := range info.Indexes {
			fmt.Fprintf(&sb, "  %s: %s\n", idx.Name, idx.Definition)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
