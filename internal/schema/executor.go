package schema

import (
	"context"
	"database/sql"
	"fmt"

	"sqlgend/internal/sqlcheck"
)

// DefaultMaxRows caps result sets rendered back to callers.
const DefaultMaxRows = 200

// ResultSet is a bounded, stringified query result.
type ResultSet struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// Executor runs statements that already passed validation. It re-checks the
// statement itself: malformed SQL never reaches the database.
type Executor struct {
	db      *sql.DB
	maxRows int
}

func NewExecutor(db *sql.DB, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, maxRows: maxRows}
}

// Query executes one validated statement and returns up to maxRows rows.
func (e *Executor) Query(ctx context.Context, sqlText string) (*ResultSet, error) {
	if err := sqlcheck.Check(sqlText); err != nil {
		return nil, fmt.Errorf("refusing to execute unvalidated statement: %w", err)
	}
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols}
	vals := make([]any, len(cols))
	for i := range vals {
		vals[i] = new(any)
	}
	for rows.Next() {
		if len(rs.Rows) >= e.maxRows {
			rs.Truncated = true
			break
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i := range vals {
			row[i] = formatValue(*(vals[i].(*any)))
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
