package mssql

import (
	"context"
	"fmt"

	"wikisync/internal/ddl"
	"wikisync/internal/schema"
	"wikisync/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:        cfg.DSN,
			Table:      cfg.Table,
			Columns:    cfg.Columns,
			KeyColumns: cfg.KeyColumns,
			Policy:     cfg.Policy,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql", func(ctx context.Context, repo storage.Repository, t schema.Table, table string) error {
		stmt, err := CreateTableSQL(t, table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

// CreateTableSQL renders a guarded CREATE TABLE for t; SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func CreateTableSQL(t schema.Table, table string) (string, error) {
	stmt, err := ddl.BuildCreateTableSQL(ddl.FromSchema(t, table, sqlType), ddl.Dialect{Quote: msIdent})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", escapeLiteral(table), stmt), nil
}

func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func sqlType(c schema.Column) string {
	switch c.Type {
	case schema.Int:
		return "BIGINT"
	case schema.Flag:
		return "TINYINT"
	case schema.Timestamp:
		return "VARCHAR(14)"
	case schema.Text:
		return "NVARCHAR(MAX)"
	default:
		return "NVARCHAR(255)"
	}
}
