// Package mysql implements a MySQL/MariaDB repository, the native store of a
// MediaWiki installation. Batches are written with multi-row INSERT (INSERT
// IGNORE under PolicyIgnore) inside one transaction, split so that no
// statement exceeds the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"wikisync/internal/storage"
)

// maxPlaceholders is MySQL's prepared statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN     string // go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/wikidb
	Table   string
	Columns []string
	Policy  storage.Policy
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, opens a pool and returns a Repository plus
// a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows in one transaction and returns the number of rows the
// server reports as inserted.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	var inserted int64
	for _, chunk := range chunkRows(rows, maxPlaceholders/len(columns)) {
		query, args, err := buildInsert(r.cfg.Table, columns, chunk, r.cfg.Policy)
		if err != nil {
			rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("insert into %s: %w", r.cfg.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// buildInsert renders one multi-row INSERT and its flattened arguments.
func buildInsert(table string, columns []string, rows [][]any, p storage.Policy) (string, []any, error) {
	verb := "INSERT INTO"
	if p == storage.PolicyIgnore {
		verb = "INSERT IGNORE INTO"
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%s) VALUES ", verb, myFQN(table), strings.Join(mapIdent(columns), ","))

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size <= 0 {
		size = 1
	}
	out := make([][][]any, 0, len(rows)/size+1)
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly database-qualified name like "wikidb.ipblocks".
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
