// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Strict batches are bulk-copied into the target
// table. Under PolicyIgnore they are bulk-copied into a session temp table
// (#temp) and moved over with INSERT ... WHERE NOT EXISTS on the key columns.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"wikisync/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN        string
	Table      string
	Columns    []string
	KeyColumns []string
	Policy     storage.Policy
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.Policy == storage.PolicyIgnore && len(cfg.KeyColumns) == 0 {
		return nil, nil, fmt.Errorf("mssql: table %s: ignore policy needs key columns", cfg.Table)
	}
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom bulk-loads rows under the configured policy and returns the
// number of rows that landed in the target table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if r.cfg.Policy != storage.PolicyIgnore {
			n, err = bulkCopy(ctx, tx, r.cfg.Table, columns, rows)
			return err
		}
		n, err = r.copyIgnoring(ctx, tx, columns, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// copyIgnoring stages rows in a session temp table and moves over only
// those whose key is not present yet.
func (r *Repository) copyIgnoring(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	tmp := tempName(r.cfg.Table)
	if _, err := tx.ExecContext(ctx, createTempSQL(tmp, r.cfg.Table, columns)); err != nil {
		return 0, fmt.Errorf("mssql: stage %s: %w", tmp, err)
	}
	if _, err := bulkCopy(ctx, tx, tmp, columns, rows); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, insertIgnoreSQL(r.cfg.Table, tmp, columns, r.cfg.KeyColumns))
	if err != nil {
		return 0, fmt.Errorf("mssql: merge into %s: %w", r.cfg.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+msIdent(tmp)); err != nil {
		return 0, fmt.Errorf("mssql: drop %s: %w", tmp, err)
	}
	return n, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mssql: commit: %w", err)
	}
	return nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	// Each Exec buffers one row; the argument-less Exec sends the batch.
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk copy into %s: %w", table, err)
	}
	return res.RowsAffected()
}

func tempName(table string) string {
	return "#tmp_" + strings.ReplaceAll(table, ".", "_")
}

func createTempSQL(tmp, table string, columns []string) string {
	return fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s", strings.Join(mapIdent(columns), ","), msIdent(tmp), msFQN(table))
}

func insertIgnoreSQL(table, tmp string, columns, keys []string) string {
	cols := strings.Join(mapIdent(columns), ",")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT DISTINCT %s FROM %s AS S WHERE NOT EXISTS (SELECT 1 FROM %s AS T WHERE %s)",
		msFQN(table), cols, cols, msIdent(tmp), msFQN(table), keyCondition(keys),
	)
}

// keyCondition builds the T=S equality join for the provided key columns.
func keyCondition(keyColumns []string) string {
	conds := make([]string, 0, len(keyColumns))
	for _, col := range keyColumns {
		conds = append(conds, fmt.Sprintf("T.%s = S.%s", msIdent(col), msIdent(col)))
	}
	return strings.Join(conds, " AND ")
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.ipblocks".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
