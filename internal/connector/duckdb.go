package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// DuckDBConnector materialises ComputeNode output tables as real DuckDB
// tables, persisting results to disk (or, with dsn ":memory:", for the
// lifetime of the process) rather than holding them in a Go map.
type DuckDBConnector struct {
	db *sql.DB
}

// OpenDuckDB opens a DuckDB database at dsn (a file path, or ":memory:")
// and configures the connection pool the way cartographus's database
// package does for its own DuckDB handle.
func OpenDuckDB(dsn string) (*DuckDBConnector, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("connector: open duckdb %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // DuckDB's single-writer model: one connection keeps writes serialised.
	return &DuckDBConnector{db: db}, nil
}

// Close releases the underlying *sql.DB.
func (c *DuckDBConnector) Close() error {
	return c.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlTypeFor(v interface{}) string {
	switch v.(type) {
	case int, int64:
		return "BIGINT"
	case float64, float32:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// CreateTable satisfies node.Connector: it drops any existing table named
// name when overwrite is true (erroring otherwise), creates a fresh
// table whose column types are inferred from the first row of t, and
// inserts every row.
func (c *DuckDBConnector) CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error) {
	if overwrite {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name))); err != nil {
			return nil, fmt.Errorf("connector: drop table %q: %w", name, err)
		}
	} else if exists, err := c.tableExists(ctx, name); err != nil {
		return nil, err
	} else if exists {
		return nil, &phenexerr.ConfigurationError{Node: name, Detail: "table already exists and overwrite=false"}
	}

	cols := t.Columns()
	rows := t.ToNative()

	colTypes := make([]string, len(cols))
	for i, col := range cols {
		colTypes[i] = "VARCHAR"
		for _, r := range rows {
			if v := r[col]; v != nil {
				colTypes[i] = sqlTypeFor(v)
				break
			}
		}
	}

	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col), colTypes[i])
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := c.db.ExecContext(ctx, createStmt); err != nil {
		return nil, fmt.Errorf("connector: create table %q: %w", name, err)
	}

	if len(rows) > 0 {
		placeholders := make([]string, len(cols))
		quotedCols := make([]string, len(cols))
		for i, col := range cols {
			placeholders[i] = "?"
			quotedCols[i] = quoteIdent(col)
		}
		insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("connector: begin insert tx for %q: %w", name, err)
		}
		stmt, err := tx.PrepareContext(ctx, insertStmt)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("connector: prepare insert for %q: %w", name, err)
		}
		for _, r := range rows {
			args := make([]interface{}, len(cols))
			for i, col := range cols {
				args[i] = r[col]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				tx.Rollback()
				return nil, fmt.Errorf("connector: insert row into %q: %w", name, err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("connector: commit insert for %q: %w", name, err)
		}
	}

	return c.GetTable(ctx, name)
}

func (c *DuckDBConnector) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("connector: check existence of table %q: %w", name, err)
	}
	return count > 0, nil
}

// GetTable satisfies node.Connector: it reads the full contents of the
// named table back into an in-memory snapshot. The backend-agnostic
// relation.Table interface means query planning stays in
// internal/relation; DuckDB here is a persistence layer, not a query
// engine the rest of the code depends on.
func (c *DuckDBConnector) GetTable(ctx context.Context, name string) (relation.Table, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", quoteIdent(name)))
	if err != nil {
		return nil, &phenexerr.LookupError{Kind: "table", Name: name}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("connector: columns of table %q: %w", name, err)
	}

	var out []relation.Row
	for rows.Next() {
		scanTargets := make([]interface{}, len(cols))
		values := make([]interface{}, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("connector: scan row from table %q: %w", name, err)
		}
		row := make(relation.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("connector: iterate rows of table %q: %w", name, err)
	}

	return relation.NewMemoryTable(cols, out), nil
}

// ListTables satisfies node.Connector.
func (c *DuckDBConnector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("connector: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("connector: scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DropTable satisfies node.Connector.
func (c *DuckDBConnector) DropTable(ctx context.Context, name string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name)))
	if err != nil {
		return fmt.Errorf("connector: drop table %q: %w", name, err)
	}
	return nil
}

var _ node.Connector = (*DuckDBConnector)(nil)
