package maptools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"atlas/internal/store/postgres"
)

// fakeQueryStore records the queries it receives and replays canned results.
type fakeQueryStore struct {
	lastQuery     string
	queryResult   *postgres.QueryResult
	queryErr      error
	tables        []string
	tablesErr     error
	tableInfo     *postgres.TableInfo
	describeErr   error
	describedName string
}

func (f *fakeQueryStore) ExecuteQuery(_ context.Context, query string, _ int) (*postgres.QueryResult, error) {
	f.lastQuery = query
	return f.queryResult, f.queryErr
}

func (f *fakeQueryStore) ListTables(context.Context) ([]string, error) {
	return f.tables, f.tablesErr
}

func (f *fakeQueryStore) DescribeTable(_ context.Context, table string) (*postgres.TableInfo, error) {
	f.describedName = table
	return f.tableInfo, f.describeErr
}

func TestQueryWithoutDatabase(t *testing.T) {
	svc, _ := newTestService(t, nil)

	result := svc.Query(context.Background(), "SELECT 1")
	assert.Equal(t, "Database connection is not available. Please check your PostgreSQL server.", result)
}

func TestQueryRejectsWriteStatements(t *testing.T) {
	store := &fakeQueryStore{}
	svc, _ := newTestService(t, store)

	result := svc.Query(context.Background(), "DROP TABLE planet_osm_point")
	assert.Equal(t, "Error: Only read-only queries are allowed for security reasons.", result)
	assert.Empty(t, store.lastQuery, "rejected query must never reach the database")
}

func TestQueryReportsTimeout(t *testing.T) {
	store := &fakeQueryStore{queryErr: postgres.ErrQueryTimeout}
	svc, _ := newTestService(t, store)

	result := svc.Query(context.Background(), "SELECT pg_sleep(60)")
	assert.Equal(t, "Error executing query: query execution timed out", result)
}

func TestQueryReportsExecutionErrors(t *testing.T) {
	store := &fakeQueryStore{queryErr: errors.New(`relation "nope" does not exist`)}
	svc, _ := newTestService(t, store)

	result := svc.Query(context.Background(), "SELECT * FROM nope")
	assert.Equal(t, `Error executing query: relation "nope" does not exist`, result)
}

func TestQueryEmptyResult(t *testing.T) {
	store := &fakeQueryStore{queryResult: &postgres.QueryResult{Columns: []string{"name"}}}
	svc, _ := newTestService(t, store)

	result := svc.Query(context.Background(), "SELECT name FROM planet_osm_point WHERE 1=0")
	assert.Equal(t, "Query executed successfully, but returned no results.", result)
}

func TestQueryFormatsRows(t *testing.T) {
	store := &fakeQueryStore{queryResult: &postgres.QueryResult{
		Columns:   []string{"name"},
		Rows:      [][]string{{"Golden Gate Park"}},
		TotalRows: 1,
	}}
	svc, _ := newTestService(t, store)

	result := svc.Query(context.Background(), "SELECT name FROM planet_osm_polygon LIMIT 1")
	assert.Contains(t, result, "Golden Gate Park")
	assert.Equal(t, "SELECT name FROM planet_osm_polygon LIMIT 1", store.lastQuery)
}

func TestListTablesJoinsNames(t *testing.T) {
	store := &fakeQueryStore{tables: []string{"planet_osm_line", "planet_osm_point"}}
	svc, _ := newTestService(t, store)

	assert.Equal(t, "planet_osm_line\nplanet_osm_point", svc.ListTables(context.Background()))
}

func TestListTablesEmptyDatabase(t *testing.T) {
	store := &fakeQueryStore{}
	svc, _ := newTestService(t, store)

	assert.Equal(t, "The database contains no public tables.", svc.ListTables(context.Background()))
}

func TestDescribeTableFormatsSchema(t *testing.T) {
	store := &fakeQueryStore{tableInfo: &postgres.TableInfo{
		Name: "planet_osm_point",
		Columns: []postgres.ColumnInfo{
			{Name: "osm_id", DataType: "bigint", IsNullable: "YES"},
			{Name: "name", DataType: "text", IsNullable: "NO"},
		},
		Indexes: []postgres.IndexInfo{
			{Name: "planet_osm_point_way_idx", Definition: "CREATE INDEX ... USING gist (way)"},
		},
		ApproximateRowCount: 98765,
	}}
	svc, _ := newTestService(t, store)

	result := svc.DescribeTable(context.Background(), "planet_osm_point")
	assert.Contains(t, result, `Table "planet_osm_point" (~98765 rows)`)
	assert.Contains(t, result, "osm_id bigint")
	assert.Contains(t, result, "name text NOT NULL")
	assert.Contains(t, result, "planet_osm_point_way_idx: CREATE INDEX ... USING gist (way)")
	assert.Equal(t, "planet_osm_point", store.describedName)
}

func TestDescribeTableRequiresName(t *testing.T) {
	store := &fakeQueryStore{}
	svc, _ := newTestService(t, store)

	assert.Equal(t, "Error: table name must not be empty.", svc.DescribeTable(context.Background(), "  "))
}

func TestDescribeTableWithoutDatabase(t *testing.T) {
	svc, _ := newTestService(t, nil)

	assert.Equal(t, "Database connection is not available. Please check your PostgreSQL server.",
		svc.DescribeTable(context.Background(), "planet_osm_point"))
}
