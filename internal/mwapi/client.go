// Package mwapi is a thin client for a MediaWiki api.php endpoint. It issues
// parameterized read requests, always forces the JSON response format, and
// hands back the decoded JSON envelope. Pagination lives in package paginate.
package mwapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"wikisync/internal/datasource/httpds"
)

// Params are the query-string parameters of one API request.
type Params map[string]string

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Config configures a Client.
type Config struct {
	// URL is the full api.php URL, e.g. https://example.org/w/api.php.
	URL string
}

// Client talks to one wiki's api.php. It is safe for concurrent use; the
// underlying httpds.Client carries the session cookie jar.
type Client struct {
	endpoint string
	http     *httpds.Client
}

// New builds a Client. The httpds client is passed in so that retry, rate
// limiting and headers are configured in one place by the caller.
func New(cfg Config, hc *httpds.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("mwapi: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("mwapi: url %q must be http(s)", cfg.URL)
	}
	if hc == nil {
		hc = httpds.NewClient(httpds.Config{})
	}
	u.RawQuery = ""
	return &Client{endpoint: u.String(), http: hc}, nil
}

// Endpoint returns the api.php URL the client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// Request performs one API call and returns the decoded JSON object.
// method is http.MethodGet or http.MethodPost; an empty method means GET.
// The response format is always forced to JSON.
//
// Errors:
//   - *TransportError: network failure, non-2xx status, empty or
//     undecodable body.
//   - *APIError: the API answered with an "error" object.
func (c *Client) Request(ctx context.Context, method string, params Params) (map[string]any, error) {
	if method == "" {
		method = http.MethodGet
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("format", "json")

	var (
		resp *http.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = c.http.Get(ctx, c.endpoint+"?"+form.Encode(), nil)
	case http.MethodPost:
		resp, err = c.http.Post(ctx, c.endpoint, []byte(form.Encode()), http.Header{
			"Content-Type": {"application/x-www-form-urlencoded"},
		})
	default:
		return nil, fmt.Errorf("mwapi: unsupported method %q", method)
	}
	if err != nil {
		te := &TransportError{Method: method, Err: err}
		var se *httpds.StatusError
		if errors.As(err, &se) {
			te.Status = se.Status
		}
		return nil, te
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, Status: resp.StatusCode, Body: snippet(body)}
	}

	doc, err := decode(body)
	if err != nil {
		return nil, &TransportError{Method: method, Status: resp.StatusCode, Body: snippet(body), Err: err}
	}

	if e, ok := doc["error"].(map[string]any); ok {
		return nil, &APIError{Code: str(e["code"]), Info: str(e["info"])}
	}
	if w, ok := doc["warnings"]; ok {
		logrus.WithField("action", params["action"]).Warnf("mwapi: warnings: %v", w)
	}

	return doc, nil
}

// decode parses a non-empty JSON object, keeping numbers as json.Number.
func decode(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode json: want object, got %T", v)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("empty json object")
	}
	return doc, nil
}

func snippet(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
