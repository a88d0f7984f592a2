package mwapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"wikisync/internal/record"
)

// Namespaces returns the wiki's non-negative namespace IDs in ascending
// order. Special (-1) and Media (-2) are virtual and hold no pages.
func (c *Client) Namespaces(ctx context.Context) ([]int64, error) {
	doc, err := c.Request(ctx, http.MethodGet, Params{
		"action": "query",
		"meta":   "siteinfo",
		"siprop": "namespaces",
	})
	if err != nil {
		return nil, fmt.Errorf("siteinfo namespaces: %w", err)
	}

	q, _ := doc["query"].(map[string]any)
	nsMap, ok := q["namespaces"].(map[string]any)
	if !ok {
		return nil, &record.ShapeError{Field: "query.namespaces", Reason: "missing or not an object"}
	}

	ids := make([]int64, 0, len(nsMap))
	for key, v := range nsMap {
		id, err := record.ParseInt(key)
		if err != nil {
			// Fall back to the entry's own id when the key is not numeric.
			ns, _ := v.(map[string]any)
			if id, err = record.ParseInt(ns["id"]); err != nil {
				return nil, &record.ShapeError{Field: "query.namespaces." + key, Reason: "non-integer namespace id"}
			}
		}
		if id >= 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UserGroups returns the names of every group defined on the wiki, in the
// order the API lists them.
func (c *Client) UserGroups(ctx context.Context) ([]string, error) {
	doc, err := c.Request(ctx, http.MethodGet, Params{
		"action": "query",
		"meta":   "siteinfo",
		"siprop": "usergroups",
	})
	if err != nil {
		return nil, fmt.Errorf("siteinfo usergroups: %w", err)
	}

	q, _ := doc["query"].(map[string]any)
	list, ok := q["usergroups"].([]any)
	if !ok {
		return nil, &record.ShapeError{Field: "query.usergroups", Reason: "missing or not a list"}
	}

	names := make([]string, 0, len(list))
	for i, item := range list {
		name, err := record.Record(asMap(item)).String("name")
		if err != nil {
			return nil, &record.ShapeError{Field: fmt.Sprintf("query.usergroups[%d].name", i), Reason: err.Error()}
		}
		names = append(names, name)
	}
	return names, nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
