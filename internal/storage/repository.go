// Package storage contains the storage-agnostic contracts of the bulk loader:
// the Repository interface every destination backend implements, a registry
// that maps a storage kind to its factory, and the streaming batch loader.
//
// Backends register themselves from init; import storage/all to enable all of
// them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Policy decides what happens when a row collides with an existing one.
type Policy int

const (
	// PolicyStrict fails the batch on a key collision.
	PolicyStrict Policy = iota
	// PolicyIgnore silently drops colliding rows.
	PolicyIgnore
)

func (p Policy) String() string {
	if p == PolicyIgnore {
		return "ignore"
	}
	return "strict"
}

// Config selects a backend and the single destination table a Repository
// writes to.
type Config struct {
	Kind       string
	DSN        string
	Table      string   // destination table, prefix already applied
	Columns    []string // ordered columns of every row
	KeyColumns []string // unique key, used by PolicyIgnore emulation
	Policy     Policy
}

// Repository is a destination table handle.
type Repository interface {
	// CopyFrom inserts rows (aligned to columns) under the configured policy
	// and returns the number of rows actually inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a raw statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(kind)] = f
}

// New opens a Repository with the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("storage: table %s: no columns", cfg.Table)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
