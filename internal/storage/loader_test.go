package storage

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqOf(rows ...[]any) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func countingCopy(calls *int) CopyFn {
	return func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		*calls++
		return int64(len(rows)), nil
	}
}

// Rows are grouped into batches and the total equals the sum of copyFn
// returns.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{i, "x"}
	}

	var calls int
	stats, err := LoadBatches(context.Background(), "t", []string{"c1", "c2"}, seqOf(rows...), 3, countingCopy(&calls))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Rows: 7, Inserted: 7, Batches: 3}, stats)
	assert.Equal(t, 3, calls, "3+3+1")
}

func TestLoadBatches_Empty(t *testing.T) {
	t.Parallel()

	var calls int
	stats, err := LoadBatches(context.Background(), "t", []string{"c"}, seqOf(), 3, countingCopy(&calls))
	require.NoError(t, err)
	assert.Zero(t, stats.Rows)
	assert.Zero(t, calls)
}

func TestLoadBatches_InvalidArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), "t", []string{"c"}, seqOf(), 0, countingCopy(new(int)))
	assert.Error(t, err)
	_, err = LoadBatches(context.Background(), "t", []string{"c"}, seqOf(), 1, nil)
	assert.Error(t, err)
}

// The first batch is written while the sequence still has rows to give.
func TestLoadBatches_Streams(t *testing.T) {
	t.Parallel()

	var (
		produced     int
		producedAtCB []int
	)
	seq := func(yield func([]any, error) bool) {
		for i := 0; i < 10; i++ {
			produced++
			if !yield([]any{i}, nil) {
				return
			}
		}
	}
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		producedAtCB = append(producedAtCB, produced)
		return int64(len(rows)), nil
	}

	_, err := LoadBatches(context.Background(), "t", []string{"c"}, seq, 4, copyFn)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8, 10}, producedAtCB)
}

// A copy failure is wrapped in *LoadError and stops the load.
func TestLoadBatches_CopyError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("duplicate key")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	stats, err := LoadBatches(context.Background(), "ipblocks", []string{"c"},
		seqOf([]any{1}, []any{2}, []any{3}, []any{4}, []any{5}), 2, copyFn)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "ipblocks", le.Table)
	assert.Equal(t, int64(2), le.Batch)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(2), stats.Inserted)
	assert.Equal(t, 2, batches)
}

// An upstream error aborts before the pending batch is flushed.
func TestLoadBatches_UpstreamError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("shape")
	seq := func(yield func([]any, error) bool) {
		if !yield([]any{1}, nil) {
			return
		}
		yield(nil, wantErr)
	}

	var calls int
	_, err := LoadBatches(context.Background(), "t", []string{"c"}, seq, 10, countingCopy(&calls))
	assert.ErrorIs(t, err, wantErr)
	assert.Zero(t, calls)
}

func TestLoadBatches_RowWidth(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), "t", []string{"a", "b"}, seqOf([]any{1}), 10, countingCopy(new(int)))
	assert.Error(t, err)
}

func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	_, err := LoadBatches(ctx, "t", []string{"c"}, seqOf([]any{1}, []any{2}), 1, countingCopy(&calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
