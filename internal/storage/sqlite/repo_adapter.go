package sqlite

import (
	"context"

	"wikisync/internal/ddl"
	"wikisync/internal/schema"
	"wikisync/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, t schema.Table, table string) error {
		stmt, err := CreateTableSQL(t, table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for t.
func CreateTableSQL(t schema.Table, table string) (string, error) {
	return ddl.BuildCreateTableSQL(ddl.FromSchema(t, table, sqlType), ddl.Dialect{Quote: quoteIdent, IfNotExists: true})
}

func sqlType(c schema.Column) string {
	switch c.Type {
	case schema.Int, schema.Flag:
		return "INTEGER"
	default:
		return "TEXT"
	}
}
