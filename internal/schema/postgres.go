package schema

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresSource reads schema snapshots from a PostgreSQL database via the
// pgx stdlib driver.
type PostgresSource struct {
	db         *sql.DB
	schemaName string
}

// NewPostgresSource wraps an already-open database handle. schemaName
// defaults to "public" when empty.
func NewPostgresSource(db *sql.DB, schemaName string) *PostgresSource {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresSource{db: db, schemaName: schemaName}
}

// OpenPostgres opens a connection for dsn and returns a source plus the
// underlying handle for statement execution.
func OpenPostgres(dsn string) (*PostgresSource, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresSource(db, ""), db, nil
}

func (s *PostgresSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, column_name, data_type
		   FROM information_schema.columns
		  WHERE table_schema = $1
		  ORDER BY table_name, ordinal_position`, s.schemaName)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	snap := &Snapshot{}
	byName := map[string]int{}
	for rows.Next() {
		var tbl, col, typ string
		if err := rows.Scan(&tbl, &col, &typ); err != nil {
			rows.Close()
			return nil, err
		}
		i, ok := byName[tbl]
		if !ok {
			snap.Tables = append(snap.Tables, Table{Name: tbl})
			i = len(snap.Tables) - 1
			byName[tbl] = i
		}
		snap.Tables[i].Columns = append(snap.Tables[i].Columns, Column{Name: col, Type: typ})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.markPrimaryKeys(ctx, snap, byName); err != nil {
		return nil, err
	}
	if err := s.markForeignKeys(ctx, snap, byName); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *PostgresSource) markPrimaryKeys(ctx context.Context, snap *Snapshot, byName map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kcu.table_name, kcu.column_name
		   FROM information_schema.table_constraints tc
		   JOIN information_schema.key_column_usage kcu
		     ON kcu.constraint_name = tc.constraint_name
		    AND kcu.table_schema = tc.table_schema
		  WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
		  ORDER BY kcu.table_name, kcu.ordinal_position`, s.schemaName)
	if err != nil {
		return fmt.Errorf("list primary keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, col string
		if err := rows.Scan(&tbl, &col); err != nil {
			return err
		}
		setColumn(snap, byName, tbl, col, func(c *Column) { c.PrimaryKey = true })
	}
	return rows.Err()
}

func (s *PostgresSource) markForeignKeys(ctx context.Context, snap *Snapshot, byName map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		   FROM information_schema.table_constraints tc
		   JOIN information_schema.key_column_usage kcu
		     ON kcu.constraint_name = tc.constraint_name
		    AND kcu.table_schema = tc.table_schema
		   JOIN information_schema.constraint_column_usage ccu
		     ON ccu.constraint_name = tc.constraint_name
		    AND ccu.table_schema = tc.table_schema
		  WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		  ORDER BY kcu.table_name, kcu.ordinal_position`, s.schemaName)
	if err != nil {
		return fmt.Errorf("list foreign keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, col, refTbl, refCol string
		if err := rows.Scan(&tbl, &col, &refTbl, &refCol); err != nil {
			return err
		}
		setColumn(snap, byName, tbl, col, func(c *Column) { c.References = refTbl + "(" + refCol + ")" })
	}
	return rows.Err()
}

func setColumn(snap *Snapshot, byName map[string]int, tbl, col string, fn func(*Column)) {
	i, ok := byName[tbl]
	if !ok {
		return
	}
	for j := range snap.Tables[i].Columns {
		if snap.Tables[i].Columns[j].Name == col {
			fn(&snap.Tables[i].Columns[j])
			return
		}
	}
}
