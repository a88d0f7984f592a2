// Package paginate drives a MediaWiki query through every result page by
// following the continuation marker of each response, and exposes the pages
// as a lazy sequence.
//
// Both continuation conventions are understood:
//
//	{"continue": {"blcontinue": "...", "continue": "-||"}}          (modern)
//	{"query-continue": {"blocks": {"bkstart": "..."}}}              (legacy)
//
// Every key of the marker is merged into the request parameters, overwriting
// existing keys, and the next page is requested. A response without a marker
// ends the sequence.
package paginate

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"net/http"

	"github.com/sirupsen/logrus"

	"wikisync/internal/mwapi"
)

// Requester performs one API call. *mwapi.Client satisfies it.
type Requester interface {
	Request(ctx context.Context, method string, params mwapi.Params) (map[string]any, error)
}

// Query describes one paginated API query.
type Query struct {
	// Name identifies the query in logs and errors.
	Name string

	// Method is http.MethodGet (default) or http.MethodPost.
	Method string

	// Params are the initial request parameters. They are copied, never
	// mutated.
	Params mwapi.Params

	// LimitParam, when set, is forced to "max" (e.g. "bllimit").
	LimitParam string

	// Module is the legacy query-continue sub-key (e.g. "blocks"). When
	// empty, every legacy sub-object is merged.
	Module string

	// ContinueKey, when set, must be present in every modern "continue"
	// marker. Legacy markers are checked through Module instead.
	ContinueKey string

	// ResultPath selects the page body inside the decoded response.
	// Defaults to ["query"].
	ResultPath []string
}

// Page is one response of a paginated query.
type Page struct {
	// Body is the node found at the query's ResultPath; nil if absent.
	Body any

	// Continue is the marker carried by this response, flattened to
	// strings. Empty on the last page of a sequence.
	Continue map[string]string

	// Number is 1-based within the current bucket.
	Number int

	// Bucket is the bucket value for Bucketed sequences, empty otherwise.
	Bucket string
}

// Paginator issues the requests of paginated queries.
type Paginator struct {
	req Requester
}

// New returns a Paginator backed by req.
func New(req Requester) *Paginator {
	return &Paginator{req: req}
}

// Pages returns the lazy page sequence of q. No request is made until the
// sequence is ranged over, and breaking out of the loop stops requesting.
// A request or continuation error is yielded once and ends the sequence.
func (p *Paginator) Pages(ctx context.Context, q Query) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		p.run(ctx, q, q.Params, "", yield)
	}
}

// Bucketed runs an independent page sequence for each value in buckets, in
// order, with param set to that value on a fresh copy of q.Params. Each
// bucket starts without continuation state.
func (p *Paginator) Bucketed(ctx context.Context, q Query, param string, buckets []string) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for _, b := range buckets {
			params := q.Params.Clone()
			params[param] = b
			if !p.run(ctx, q, params, b, yield) {
				return
			}
		}
	}
}

// run pages through one sequence. It reports whether the caller should keep
// going (false after an error or when the consumer stopped).
func (p *Paginator) run(ctx context.Context, q Query, initial mwapi.Params, bucket string, yield func(Page, error) bool) bool {
	method := q.Method
	if method == "" {
		method = http.MethodGet
	}
	path := q.ResultPath
	if len(path) == 0 {
		path = []string{"query"}
	}

	params := initial.Clone()
	if _, ok := params["action"]; !ok {
		params["action"] = "query"
	}
	if q.LimitParam != "" {
		params[q.LimitParam] = "max"
	}

	log := logrus.WithField("query", q.Name)
	if bucket != "" {
		log = log.WithField("bucket", bucket)
	}

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			yield(Page{}, err)
			return false
		}

		doc, err := p.req.Request(ctx, method, params)
		if err != nil {
			yield(Page{}, fmt.Errorf("paginate %s: page %d: %w", q.Name, n, err))
			return false
		}

		marker, err := continuation(doc, q)
		if err != nil {
			yield(Page{}, err)
			return false
		}

		var next mwapi.Params
		if marker != nil {
			next = params.Clone()
			for k, v := range marker {
				next[k] = v
			}
			if maps.Equal(next, params) {
				yield(Page{}, &ContinuationError{Query: q.Name, Reason: "marker did not advance", Marker: marker})
				return false
			}
		}

		log.WithFields(logrus.Fields{"page": n, "more": marker != nil}).Debug("paginate: page fetched")

		if !yield(Page{Body: lookup(doc, path), Continue: marker, Number: n, Bucket: bucket}, nil) {
			return false
		}
		if marker == nil {
			return true
		}
		params = next
	}
}

func lookup(doc map[string]any, path []string) any {
	var cur any = doc
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
