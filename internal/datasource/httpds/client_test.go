package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordWaits swaps the backoff wait for one that only records durations.
func recordWaits(c *Client) *[]time.Duration {
	var (
		mu    sync.Mutex
		waits []time.Duration
	)
	c.wait = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		waits = append(waits, d)
		return ctx.Err()
	}
	return &waits
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true, MaxRetries: -1})

	assert.Equal(t, 30*time.Second, c.hc.Timeout)
	assert.Equal(t, 0, c.retries)
	assert.Equal(t, 200*time.Millisecond, c.backoff)
	assert.Equal(t, 5*time.Second, c.maxBackoff)
	assert.Nil(t, c.limiter)
	assert.NotNil(t, c.hc.Jar)

	transport, ok := c.hc.Transport.(*http.Transport)
	require.True(t, ok, "got %T", c.hc.Transport)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestDo_SuccessFirstTry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 3})
	waits := recordWaits(c)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, *waits)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})
	waits := recordWaits(c)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *waits)
}

func TestDo_GivesUpWithStatusError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2})
	recordWaits(c)

	_, err := c.Get(context.Background(), srv.URL, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, http.MethodGet, se.Method)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 10 * time.Second})
	waits := recordWaits(c)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	// The second Retry-After is capped by MaxBackoff.
	assert.Equal(t, []time.Duration{3 * time.Second, 10 * time.Second}, *waits)
}

func TestDo_ClientErrorsAreFinal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 5})
	recordWaits(c)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_HeadersAndPostBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "wikisync-test", r.Header.Get("User-Agent"))
		assert.Equal(t, []string{"application/x-www-form-urlencoded"}, r.Header.Values("Content-Type"))
		if assert.NoError(t, r.ParseForm()) {
			assert.Equal(t, "query", r.PostForm.Get("action"))
		}
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseHeaders: http.Header{
			"User-Agent":   {"wikisync-test"},
			"Content-Type": {"text/plain"},
		},
	})

	resp, err := c.Post(context.Background(), srv.URL, []byte("action=query"), http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
	})
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDo_PostBodyResentOnRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if assert.NoError(t, r.ParseForm()) {
			assert.Equal(t, "login", r.PostForm.Get("action"))
		}
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 1})
	recordWaits(c)

	resp, err := c.Post(context.Background(), srv.URL, []byte("action=login"), http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), hits.Load())
}

func TestDo_CookieJarKeepsSession(t *testing.T) {
	t.Parallel()

	var second atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !second.Swap(true) {
			http.SetCookie(w, &http.Cookie{Name: "wiki_session", Value: "abc", Path: "/"})
			return
		}
		ck, err := r.Cookie("wiki_session")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", ck.Value)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{})
	for i := 0; i < 2; i++ {
		resp, err := c.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}
}

func TestDo_CanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Config{MaxRetries: 5})
	c.wait = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := c.Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RateLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{RateLimit: 0.001, RateBurst: 1})
	require.NotNil(t, c.limiter)
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "http://127.0.0.1:1/", nil)
	assert.Error(t, err)
}

func TestDo_Validation(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{})
	_, err := c.Do(context.Background(), "", "http://x", nil, nil)
	assert.Error(t, err)
	_, err = c.Do(context.Background(), http.MethodGet, "", nil, nil)
	assert.Error(t, err)
}

func TestBackoffFor(t *testing.T) {
	t.Parallel()

	ms := time.Millisecond
	assert.Equal(t, 100*ms, backoffFor(100*ms, 0, time.Second))
	assert.Equal(t, 400*ms, backoffFor(100*ms, 2, time.Second))
	assert.Equal(t, time.Second, backoffFor(600*ms, 1, time.Second))
	assert.Equal(t, time.Second, backoffFor(2*time.Second, 0, time.Second))
	assert.Equal(t, time.Second, backoffFor(100*ms, 70, time.Second))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 503} {
		assert.True(t, retryable(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 404} {
		assert.False(t, retryable(code), "status %d", code)
	}
}

func TestCustomTransport(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{TLSClientConfig: &tls.Config{}}
	c := NewClient(Config{Transport: custom, InsecureSkipVerify: true})

	assert.Same(t, custom, c.hc.Transport)
	assert.False(t, custom.TLSClientConfig.InsecureSkipVerify)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleepContext(ctx, time.Minute), context.Canceled))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
