package mwapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisync/internal/datasource/httpds"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL + "/w/api.php"}, httpds.NewClient(httpds.Config{}))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "ftp://example.org/api.php"}, nil)
	assert.Error(t, err)

	c, err := New(Config{URL: " https://example.org/w/api.php?x=1 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/w/api.php", c.Endpoint())
}

func TestRequest_GetForcesJSON(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/w/api.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "blocks", q.Get("list"))
		fmt.Fprint(w, `{"query":{"blocks":[{"id":12345678901}]}}`)
	})

	doc, err := c.Request(context.Background(), "", Params{
		"action": "query",
		"list":   "blocks",
		"format": "xml",
	})
	require.NoError(t, err)

	blocks := doc["query"].(map[string]any)["blocks"].([]any)
	require.Len(t, blocks, 1)
	// Large IDs survive as json.Number.
	assert.Equal(t, json.Number("12345678901"), blocks[0].(map[string]any)["id"])
}

func TestRequest_PostUsesFormBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.URL.RawQuery)
		if assert.NoError(t, r.ParseForm()) {
			assert.Equal(t, "json", r.PostForm.Get("format"))
			assert.Equal(t, "allusers", r.PostForm.Get("list"))
		}
		fmt.Fprint(w, `{"batchcomplete":""}`)
	})

	_, err := c.Request(context.Background(), http.MethodPost, Params{"action": "query", "list": "allusers"})
	require.NoError(t, err)
}

func TestRequest_UnsupportedMethod(t *testing.T) {
	t.Parallel()

	c, err := New(Config{URL: "http://127.0.0.1/api.php"}, nil)
	require.NoError(t, err)

	_, err = c.Request(context.Background(), http.MethodDelete, Params{})
	assert.Error(t, err)
}

func TestRequest_TransportErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-2xx", http.StatusForbidden, `{"error":"nope"}`},
		{"empty body", http.StatusOK, "  \n"},
		{"invalid json", http.StatusOK, `<html>maintenance</html>`},
		{"not an object", http.StatusOK, `[1,2,3]`},
		{"empty object", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.Request(context.Background(), http.MethodGet, Params{"action": "query"})
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.Status)
		})
	}
}

func TestRequest_APIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"badcontinue","info":"Invalid continue param."}}`)
	})

	_, err := c.Request(context.Background(), http.MethodGet, Params{"action": "query"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "badcontinue", apiErr.Code)
	assert.Equal(t, "Invalid continue param.", apiErr.Info)
	assert.Contains(t, err.Error(), "badcontinue")
}

func TestRequest_WarningsAreNotFatal(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"warnings":{"main":{"*":"Unrecognized parameter"}},"query":{}}`)
	})

	doc, err := c.Request(context.Background(), http.MethodGet, Params{"action": "query"})
	require.NoError(t, err)
	assert.Contains(t, doc, "query")
}

func TestRequest_ContextCanceled(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Request(ctx, http.MethodGet, Params{"action": "query"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNamespaces(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "siteinfo", r.URL.Query().Get("meta"))
		assert.Equal(t, "namespaces", r.URL.Query().Get("siprop"))
		fmt.Fprint(w, `{"query":{"namespaces":{
			"-2":{"id":-2,"*":"Media"},
			"-1":{"id":-1,"*":"Special"},
			"10":{"id":10,"*":"Template"},
			"0":{"id":0,"*":""},
			"2":{"id":2,"*":"User"},
			"1":{"id":1,"*":"Talk"}
		}}}`)
	})

	ids, err := c.Namespaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 10}, ids)
}

func TestNamespaces_BadShape(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"namespaces":[]}}`)
	})

	_, err := c.Namespaces(context.Background())
	assert.Error(t, err)
}

func TestUserGroups(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usergroups", r.URL.Query().Get("siprop"))
		fmt.Fprint(w, `{"query":{"usergroups":[
			{"name":"*","rights":["read"]},
			{"name":"user"},
			{"name":"autoconfirmed"},
			{"name":"sysop"},
			{"name":"bot"}
		]}}`)
	})

	groups, err := c.UserGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"*", "user", "autoconfirmed", "sysop", "bot"}, groups)
}

func TestLogin_TokenFlow(t *testing.T) {
	t.Parallel()

	var loginCalls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		switch r.Form.Get("action") {
		case "query":
			assert.Equal(t, "tokens", r.Form.Get("meta"))
			http.SetCookie(w, &http.Cookie{Name: "wiki_session", Value: "abc"})
			fmt.Fprint(w, `{"query":{"tokens":{"logintoken":"tok+\\"}}}`)
		case "login":
			atomic.AddInt32(&loginCalls, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "tok+\\", r.PostForm.Get("lgtoken"))
			assert.Equal(t, "Bot@sync", r.PostForm.Get("lgname"))
			assert.Equal(t, "secret", r.PostForm.Get("lgpassword"))
			if ck, err := r.Cookie("wiki_session"); assert.NoError(t, err) {
				assert.Equal(t, "abc", ck.Value)
			}
			fmt.Fprint(w, `{"login":{"result":"Success","lgusername":"Bot"}}`)
		}
	})

	require.NoError(t, c.Login(context.Background(), "Bot@sync", "secret"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&loginCalls))
}

func TestLogin_LegacyHandshake(t *testing.T) {
	t.Parallel()

	var loginCalls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		switch r.Form.Get("action") {
		case "query":
			fmt.Fprint(w, `{"error":{"code":"unknown_type","info":"Unrecognized value for parameter 'type'"}}`)
		case "login":
			if atomic.AddInt32(&loginCalls, 1) == 1 {
				assert.Empty(t, r.PostForm.Get("lgtoken"))
				fmt.Fprint(w, `{"login":{"result":"NeedToken","token":"legacy"}}`)
				return
			}
			assert.Equal(t, "legacy", r.PostForm.Get("lgtoken"))
			fmt.Fprint(w, `{"login":{"result":"Success","lgusername":"Bot"}}`)
		}
	})

	require.NoError(t, c.Login(context.Background(), "Bot", "secret"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&loginCalls))
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		if r.Form.Get("action") == "query" {
			fmt.Fprint(w, `{"query":{"tokens":{"logintoken":"t"}}}`)
			return
		}
		fmt.Fprint(w, `{"login":{"result":"Failed","reason":"Incorrect password"}}`)
	})

	err := c.Login(context.Background(), "Bot", "wrong")
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Failed", le.Result)
	assert.Equal(t, "Incorrect password", le.Reason)

	assert.Error(t, c.Login(context.Background(), "", "x"))
}
