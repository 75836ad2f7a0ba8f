package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("customers").AddRow("orders"))
	mock.ExpectQuery(`PRAGMA table_info\("customers"\)`).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "name", "TEXT", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA foreign_key_list\("customers"\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}))
	mock.ExpectQuery(`PRAGMA table_info\("orders"\)`).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "customer_id", "INTEGER", 0, nil, 0).
			AddRow(2, "total", "REAL", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA foreign_key_list\("orders"\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}).
			AddRow(0, 0, "customers", "customer_id", "id", "NO ACTION", "NO ACTION", "NONE"))

	src := NewSQLiteSource(db)
	text, err := Context(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t,
		"Table customers (id INTEGER PRIMARY KEY, name TEXT)\n"+
			"Table orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), total REAL)",
		text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.columns").WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("users", "id", "integer").
			AddRow("users", "email", "text"))
	mock.ExpectQuery("PRIMARY KEY").WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("users", "id"))
	mock.ExpectQuery("FOREIGN KEY").WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "ref_table", "ref_column"}))

	src := NewPostgresSource(db, "")
	text, err := Context(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, "Table users (id INTEGER PRIMARY KEY, email TEXT)", text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContextUnavailableOnQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnError(errors.New("database is locked"))

	_, err = Context(context.Background(), NewSQLiteSource(db), 0)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestContextUnavailableOnEmptySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = Context(context.Background(), NewSQLiteSource(db), 0)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestRenderRespectsLimit(t *testing.T) {
	snap := &Snapshot{Tables: []Table{
		{Name: "a", Columns: []Column{{Name: "x", Type: "int"}}},
		{Name: "b", Columns: []Column{{Name: "y", Type: "int"}}},
	}}
	out := snap.Render(len("Table a (x INT)") + 1)
	assert.Contains(t, out, "Table a (x INT)")
	assert.NotContains(t, out, "Table b")
	assert.Contains(t, out, "1 more table(s) omitted")
}

func TestExecutorRefusesInvalidStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewExecutor(db, 0).Query(context.Background(), "tell me about the data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unvalidated")
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement may reach the database")
}

func TestExecutorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(1, "a@example.com").
			AddRow(2, nil))

	rs, err := NewExecutor(db, 0).Query(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, []string{"1", "a@example.com"}, rs.Rows[0])
	assert.Equal(t, "NULL", rs.Rows[1][1])
	assert.False(t, rs.Truncated)
}

func TestExecutorTruncatesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(i)
	}
	mock.ExpectQuery("SELECT n FROM t").WillReturnRows(rows)

	rs, err := NewExecutor(db, 3).Query(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 3)
	assert.True(t, rs.Truncated)
}
