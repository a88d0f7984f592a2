package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisync/internal/schema"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
	execs  []string
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}
func (f *fakeRepo) Close() { f.closed = true }

var testCols = []string{"c1"}

func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "FAKE", Table: "t", Columns: testCols, Policy: PolicyIgnore})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, PolicyIgnore, got.Policy)
	assert.Contains(t, ListKinds(), "fake")
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist", Columns: testCols})
	require.Error(t, err)
	assert.Equal(t, "unsupported storage.kind=does-not-exist", err.Error())
}

func TestNew_RequiresColumns(t *testing.T) {
	t.Parallel()

	Register("nocols", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })
	_, err := New(context.Background(), Config{Kind: "nocols", Table: "t"})
	assert.Error(t, err)
}

// Re-registering a kind replaces the previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	calls := 0
	Register("override", func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register("override", func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{Kind: "override", Columns: testCols})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}

func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	require.NotEmpty(t, a)
	a[0] = "mutated"

	assert.NotContains(t, ListKinds(), "mutated")
}

func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) { return nil, want })

	_, err := New(context.Background(), Config{Kind: "errkind", Columns: testCols})
	assert.ErrorIs(t, err, want)
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("ddlfake", func(ctx context.Context, repo Repository, tbl schema.Table, table string) error {
		return repo.Exec(ctx, "CREATE "+table+" "+tbl.Name)
	})

	repo := &fakeRepo{}
	require.NoError(t, EnsureTable(context.Background(), "ddlfake", repo, schema.UserGroups, "mw_user_groups"))
	assert.Equal(t, []string{"CREATE mw_user_groups user_groups"}, repo.execs)

	err := EnsureTable(context.Background(), "unknown-ddl", repo, schema.UserGroups, "x")
	assert.Error(t, err)
}

func TestPolicyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "strict", PolicyStrict.String())
	assert.Equal(t, "ignore", PolicyIgnore.String())
}
