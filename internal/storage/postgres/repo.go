// Package postgres implements a Postgres repository using pgx v5. Strict
// batches are written with COPY straight into the target table; under
// PolicyIgnore the batch is copied into a transaction-scoped temp table and
// moved over with INSERT ... ON CONFLICT DO NOTHING.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wikisync/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // possibly schema-qualified, e.g. "mediawiki.ipblocks"
	Columns []string // ordered columns for COPY and INSERT
	Policy  storage.Policy
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom loads rows under the configured policy and returns the number of
// rows inserted into the target table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if r.cfg.Policy != storage.PolicyIgnore {
		n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, pgError("copy", err)
		}
		return n, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := tempName(r.cfg.Table)
	if _, err := tx.Exec(ctx, createTempSQL(tmp, r.cfg.Table)); err != nil {
		return 0, pgError("create temp", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, pgError("copy into temp", err)
	}
	tag, err := tx.Exec(ctx, insertIgnoreSQL(r.cfg.Table, tmp, columns))
	if err != nil {
		return 0, pgError("insert phase", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

func tempName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

func createTempSQL(tmp, table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", pgIdent(tmp), pgFQN(table))
}

func insertIgnoreSQL(table, tmp string, columns []string) string {
	cols := strings.Join(mapIdent(columns), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT DO NOTHING", pgFQN(table), cols, cols, pgIdent(tmp))
}

// pgError surfaces the server's detail text when there is one.
func pgError(step string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", step, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "mediawiki.ipblocks".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
