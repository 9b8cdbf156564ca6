package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"atlas/internal/logging"
)

// statementTimeout bounds how long a single statement may run server-side.
const statementTimeout = 10 * time.Second

// ErrQueryTimeout marks a statement cancelled by the server-side timeout, so
// callers can report it distinctly from other query failures.
var ErrQueryTimeout = errors.New("query execution timed out")

// pgQueryCanceled is the SQLSTATE the server reports when statement_timeout
// cancels a query.
const pgQueryCanceled = "57014"

// pool abstracts the subset of pgxpool.Pool used by the store for easier testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store runs read-only queries against the OSM PostGIS database.
type Store struct {
	pool   pool
	logger logging.Logger
}

// New builds a Store backed by the provided connection pool.
func New(pool pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres store requires pool")
	}
	return &Store{
		pool:   pool,
		logger: logging.NewComponentLogger("PostgresStore"),
	}, nil
}

// QueryResult carries the stringified rows of a query, capped at the row
// limit the caller passed, plus the uncapped total.
type QueryResult struct {
	Columns   []string
	Rows      [][]string
	TotalRows int
}

// ExecuteQuery runs query inside a rolled-back transaction with the statement
// timeout applied, returning up to maxRows stringified rows.
func (s *Store) ExecuteQuery(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	s.logger.Info("Executing query: %s", query)
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin query transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", statementTimeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, translateQueryError(err)
	}
	defer rows.Close()

	columns := make([]string, 0, len(rows.FieldDescriptions()))
	for _, field := range rows.FieldDescriptions() {
		columns = append(columns, field.Name)
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		result.TotalRows++
		if len(result.Rows) >= maxRows {
			// Keep counting past the cap so the caller can report the total.
			continue
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		result.Rows = append(result.Rows, stringifyRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, translateQueryError(err)
	}

	s.logger.Info("Query execution time: %s, got %d rows", time.Since(start), result.TotalRows)
	return result, nil
}

// ListTables returns the public tables of the database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	const query = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public'
	ORDER BY table_name`

	result, err := s.ExecuteQuery(ctx, query, 1000)
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) > 0 {
			tables = append(tables, row[0])
		}
	}
	return tables, nil
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable string
}

// TableSchema returns column metadata for the named table.
func (s *Store) TableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const query = `
	SELECT column_name, data_type, is_nullable
	FROM information_schema.columns
	WHERE table_name = $1
	ORDER BY ordinal_position`

	rows, err := tx.Query(ctx, query, table)
	if err != nil {
		return nil, translateQueryError(err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// IndexInfo describes one index of a table.
type IndexInfo struct {
	Name       string
	Definition string
}

// TableInfo aggregates columns, indexes, and an approximate row count.
type TableInfo struct {
	Name                string
	Columns             []ColumnInfo
	Indexes             []IndexInfo
	ApproximateRowCount int64
}

// DescribeTable returns detailed information about a table including indexes.
func (s *Store) DescribeTable(ctx context.Context, table string) (*TableInfo, error) {
	columns, err := s.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin describe transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `SELECT indexname, indexdef FROM pg_indexes WHERE tablename = $1`, table)
	if err != nil {
		return nil, translateQueryError(err)
	}
	var indexes []IndexInfo
	for rows.Next() {
		var idx IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Definition); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index info: %w", err)
		}
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translateQueryError(err)
	}

	// Table names come from introspection results, but sanitize anyway since
	// an identifier cannot be bound as a parameter.
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{table}.Sanitize())
	var count int64
	if err := tx.QueryRow(ctx, countQuery).Scan(&count); err != nil {
		return nil, translateQueryError(err)
	}

	return &TableInfo{
		Name:                table,
		Columns:             columns,
		Indexes:             indexes,
		ApproximateRowCount: count,
	}, nil
}

func stringifyRow(values []any) []string {
	row := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			row[i] = ""
			continue
		}
		row[i] = fmt.Sprintf("%v", v)
	}
	return row
}

func translateQueryError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return ErrQueryTimeout
	}
	return err
}

// FormatTable renders the result as an aligned ASCII table, appending a
// "(Showing N of M rows)" note when the row cap truncated the output.
func (r *QueryResult) FormatTable() string {
	if len(r.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(r.Columns))
	for i, col := range r.Columns {
		widths[i] = len(col)
	}
	for _, row := range r.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, col := range r.Columns {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(padRight(col, widths[i]))
	}
	sb.WriteString("\n")
	for i, width := range widths {
		if i > 0 {
			sb.WriteString("-+-")
		}
		sb.WriteString(strings.Repeat("-", width))
	}
	for _, row := range r.Rows {
		sb.WriteString("\n")
		for i, cell := range row {
			if i > 0 {
				sb.WriteString(" | ")
			}
			if i < len(widths) {
				sb.WriteString(padRight(cell, widths[i]))
			}
		}
	}

	if r.TotalRows > len(r.Rows) {
		sb.WriteString(fmt.Sprintf("\n\n(Showing %d of %d rows)", len(r.Rows), r.TotalRows))
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
