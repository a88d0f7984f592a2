// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and modernc.org/sqlite. Batches are inserted inside one
// transaction with a prepared INSERT (INSERT OR IGNORE under PolicyIgnore).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"wikisync/internal/storage"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a file path or URI, e.g. "wiki.db" or "file:wiki.db?_pragma=busy_timeout(5000)".
	DSN string

	Table   string
	Columns []string
	Policy  storage.Policy
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite database and returns a Repository plus a
// close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows inside a single transaction and returns the number of
// rows actually inserted; rows ignored as duplicates are not counted.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(r.cfg.Table, columns, r.cfg.Policy))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: row %d has %d values, want %d", i, len(row), len(columns))
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// Exec executes a statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func insertSQL(table string, columns []string, p storage.Policy) string {
	verb := "INSERT INTO"
	if p == storage.PolicyIgnore {
		verb = "INSERT OR IGNORE INTO"
	}
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("%s %s (%s) VALUES (%s)", verb, quoteIdent(table), strings.Join(mapIdent(columns), ", "), ph)
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return out
}
