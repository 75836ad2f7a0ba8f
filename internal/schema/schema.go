// Package schema builds the database grounding handed to the model: a
// bounded, deterministic text summary of tables, columns, types, and key
// relationships. Files by concern:
//
//	schema.go   - snapshot types, rendering, availability errors
//	sqlite.go   - snapshot source for SQLite databases
//	postgres.go - snapshot source for PostgreSQL databases
//	executor.go - guarded statement execution for validated SQL
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a snapshot table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	// References is "table(column)" for a foreign key, empty otherwise.
	References string
}

// Table describes one table with its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// Snapshot is a point-in-time view of the database structure.
type Snapshot struct {
	Tables []Table
}

// Source produces schema snapshots. Implementations must return the same
// snapshot for an unchanged schema.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type unavailableError struct{ cause error }

func (e *unavailableError) Error() string {
	return fmt.Sprintf("schema context unavailable: %v", e.cause)
}
func (e *unavailableError) Unwrap() error { return e.cause }

// ErrUnavailable wraps a snapshot failure so callers can classify it.
func ErrUnavailable(cause error) error { return &unavailableError{cause: cause} }

// IsUnavailable reports whether err marks the schema context as unreachable.
func IsUnavailable(err error) bool {
	var e *unavailableError
	return errors.As(err, &e)
}

// DefaultContextLimit bounds the rendered context so prompts stay within
// small model context windows.
const DefaultContextLimit = 8192

// Context fetches a snapshot from src and renders it. Any source failure,
// including an empty schema, surfaces as an unavailable error.
func Context(ctx context.Context, src Source, limit int) (string, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return "", ErrUnavailable(err)
	}
	if len(snap.Tables) == 0 {
		return "", ErrUnavailable(errors.New("schema has no tables"))
	}
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	return snap.Render(limit), nil
}

// Render produces the text summary, one table per line, alphabetical by
// table name. Tables past the byte limit are dropped and counted.
func (s *Snapshot) Render(limit int) string {
	tables := make([]Table, len(s.Tables))
	copy(tables, s.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	var b strings.Builder
	dropped := 0
	for _, t := range tables {
		line := renderTable(t)
		if b.Len() > 0 && b.Len()+len(line)+1 > limit {
			dropped++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if dropped > 0 {
		fmt.Fprintf(&b, "\n-- %d more table(s) omitted", dropped)
	}
	return b.String()
}

func renderTable(t Table) string {
	var b strings.Builder
	b.WriteString("Table ")
	b.WriteString(t.Name)
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		if c.Type != "" {
			b.WriteByte(' ')
			b.WriteString(strings.ToUpper(c.Type))
		}
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if c.References != "" {
			b.WriteString(" REFERENCES ")
			b.WriteString(c.References)
		}
	}
	b.WriteString(")")
	return b.String()
}
