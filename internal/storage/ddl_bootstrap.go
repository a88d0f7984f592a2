package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wikisync/internal/schema"
)

// DDLBootstrapper renders the backend's CREATE TABLE for t under the name
// table and applies it through repo.Exec. It must be idempotent.
type DDLBootstrapper func(ctx context.Context, repo Repository, t schema.Table, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind. Backends
// call it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[strings.ToLower(kind)] = fn
}

// EnsureTable creates table (shaped like t) when it does not exist, using the
// bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, t schema.Table, table string) error {
	ddlMu.RLock()
	fn, ok := ddlFns[strings.ToLower(kind)]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	if err := fn(ctx, repo, t, table); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}
