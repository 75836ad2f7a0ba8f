package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads schema snapshots from a SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource wraps an already-open database handle.
func NewSQLiteSource(db *sql.DB) *SQLiteSource { return &SQLiteSource{db: db} }

// OpenSQLite opens the database file at dsn and returns a source plus the
// underlying handle for statement execution.
func OpenSQLite(dsn string) (*SQLiteSource, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	return NewSQLiteSource(db), db, nil
}

func (s *SQLiteSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	for _, name := range names {
		t, err := s.table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		snap.Tables = append(snap.Tables, t)
	}
	return snap, nil
}

func (s *SQLiteSource) table(ctx context.Context, name string) (Table, error) {
	t := Table{Name: name}

	// PRAGMA arguments cannot be bound, so the identifier is quoted inline.
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
	if err != nil {
		return t, err
	}
	for rows.Next() {
		var (
			cid, notnull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return t, err
		}
		t.Columns = append(t.Columns, Column{Name: colName, Type: colType, PrimaryKey: pk > 0})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, err
	}

	fks, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(name)+")")
	if err != nil {
		return t, err
	}
	defer fks.Close()
	for fks.Next() {
		var (
			id, seq                                int
			refTable, from, to, onUp, onDel, match string
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUp, &onDel, &match); err != nil {
			return t, err
		}
		for i := range t.Columns {
			if t.Columns[i].Name == from {
				t.Columns[i].References = refTable + "(" + to + ")"
			}
		}
	}
	return t, fks.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
