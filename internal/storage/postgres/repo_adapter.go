package postgres

import (
	"context"

	"wikisync/internal/ddl"
	"wikisync/internal/schema"
	"wikisync/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to *Repository and
// calling the close function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
			Policy:  cfg.Policy,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, t schema.Table, table string) error {
		stmt, err := CreateTableSQL(t, table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for t.
func CreateTableSQL(t schema.Table, table string) (string, error) {
	return ddl.BuildCreateTableSQL(ddl.FromSchema(t, table, sqlType), ddl.Dialect{Quote: pgIdent, IfNotExists: true})
}

func sqlType(c schema.Column) string {
	switch c.Type {
	case schema.Int:
		return "BIGINT"
	case schema.Flag:
		return "SMALLINT"
	case schema.Timestamp:
		return "VARCHAR(14)"
	default:
		return "TEXT"
	}
}
