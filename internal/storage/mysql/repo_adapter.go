package mysql

import (
	"context"
	"strings"

	"wikisync/internal/ddl"
	"wikisync/internal/schema"
	"wikisync/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, t schema.Table, table string) error {
		stmt, err := CreateTableSQL(t, table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() { w.closeFn() }

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for t using MediaWiki's
// column types.
func CreateTableSQL(t schema.Table, table string) (string, error) {
	stmt, err := ddl.BuildCreateTableSQL(ddl.FromSchema(t, table, sqlType), ddl.Dialect{Quote: myIdent, IfNotExists: true})
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(stmt, ";") + " ENGINE=InnoDB DEFAULT CHARSET=binary;", nil
}

func sqlType(c schema.Column) string {
	switch c.Type {
	case schema.Int:
		return "INT"
	case schema.Flag:
		return "TINYINT(1)"
	case schema.Timestamp:
		return "VARBINARY(14)"
	case schema.Text:
		return "VARBINARY(767)"
	default:
		return "VARBINARY(255)"
	}
}
