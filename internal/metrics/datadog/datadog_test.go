package datadog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisync/internal/metrics"
)

type sent struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []sent
	closed bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, sent{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, sent{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewBackend(Config{})
	assert.Error(t, err)
}

func TestNewBackend_UDP(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "wikisync.", GlobalTags: []string{"env:test"}})
	require.NoError(t, err)
	require.NoError(t, b.Flush())
}

func TestBackendForwardsWithTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 4, metrics.Labels{"kind": "inserted", "job": "ipblocks"})
	b.ObserveHistogram(metrics.JobDuration, 0.25, metrics.Labels{"job": "ipblocks", "status": "success"})
	require.NoError(t, b.Flush())

	require.Len(t, fc.calls, 2)
	assert.Equal(t, sent{"count", metrics.RowsTotal, 4, []string{"job:ipblocks", "kind:inserted"}}, fc.calls[0])
	assert.Equal(t, sent{"histogram", metrics.JobDuration, 0.25, []string{"job:ipblocks", "status:success"}}, fc.calls[1])
	assert.True(t, fc.closed)
}

func TestNilClient(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	assert.NoError(t, b.Flush())
	assert.Nil(t, labelsToTags(nil))
}
