// Package extract turns the body of one result page into a sequence of raw
// records. The API nests records differently per query, so each job picks
// one of three shapes: a list under a key, per-entity sub-lists keyed by
// entity ID, or a bare list.
package extract

import (
	"fmt"
	"iter"
	"sort"

	"wikisync/internal/record"
)

// Item is one extracted record. ParentID is the enclosing entity's key for
// nested shapes and empty otherwise.
type Item struct {
	Record   record.Record
	ParentID string
}

// Extractor yields the records contained in a page body. A nil body yields
// nothing; a body of the wrong JSON type is a *record.ShapeError.
type Extractor func(body any) (iter.Seq[Item], error)

// ListUnder extracts the list at body[key], e.g. {"blocks":[...]}.
func ListUnder(key string) Extractor {
	return func(body any) (iter.Seq[Item], error) {
		if body == nil {
			return empty, nil
		}
		m, ok := body.(map[string]any)
		if !ok {
			return nil, &record.ShapeError{Field: "body", Reason: fmt.Sprintf("want object, got %T", body)}
		}
		v, ok := m[key]
		if !ok || v == nil {
			return empty, nil
		}
		list, ok := v.([]any)
		if !ok {
			return nil, &record.ShapeError{Field: key, Reason: fmt.Sprintf("want list, got %T", v)}
		}
		return items(key, list, "")
	}
}

// List extracts a body that is itself the list of records.
func List() Extractor {
	return func(body any) (iter.Seq[Item], error) {
		if body == nil {
			return empty, nil
		}
		list, ok := body.([]any)
		if !ok {
			return nil, &record.ShapeError{Field: "body", Reason: fmt.Sprintf("want list, got %T", body)}
		}
		return items("body", list, "")
	}
}

// NestedByID extracts a mapping of entity ID to entity, yielding each element
// of entity[subKey] with ParentID set to the entity's ID, e.g.
//
//	{"12": {"protection": [{...}, {...}]}, "40": {...}}
//
// Entities are visited in ascending numeric ID order. An entity without
// subKey contributes nothing.
func NestedByID(subKey string) Extractor {
	return func(body any) (iter.Seq[Item], error) {
		if body == nil {
			return empty, nil
		}
		m, ok := body.(map[string]any)
		if !ok {
			return nil, &record.ShapeError{Field: "body", Reason: fmt.Sprintf("want object, got %T", body)}
		}

		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sortIDs(ids)

		// Validate the whole page up front so that consumers never see a
		// partial page followed by an error.
		lists := make([][]any, len(ids))
		for i, id := range ids {
			ent, ok := m[id].(map[string]any)
			if !ok {
				return nil, &record.ShapeError{Field: id, Reason: fmt.Sprintf("want object, got %T", m[id])}
			}
			v, ok := ent[subKey]
			if !ok || v == nil {
				continue
			}
			list, ok := v.([]any)
			if !ok {
				return nil, &record.ShapeError{Field: id + "." + subKey, Reason: fmt.Sprintf("want list, got %T", v)}
			}
			if err := checkObjects(id+"."+subKey, list); err != nil {
				return nil, err
			}
			lists[i] = list
		}

		return func(yield func(Item) bool) {
			for i, id := range ids {
				for _, el := range lists[i] {
					if !yield(Item{Record: record.Record(el.(map[string]any)), ParentID: id}) {
						return
					}
				}
			}
		}, nil
	}
}

func empty(func(Item) bool) {}

func items(field string, list []any, parent string) (iter.Seq[Item], error) {
	if err := checkObjects(field, list); err != nil {
		return nil, err
	}
	return func(yield func(Item) bool) {
		for _, el := range list {
			if !yield(Item{Record: record.Record(el.(map[string]any)), ParentID: parent}) {
				return
			}
		}
	}, nil
}

func checkObjects(field string, list []any) error {
	for i, el := range list {
		if _, ok := el.(map[string]any); !ok {
			return &record.ShapeError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: fmt.Sprintf("want object, got %T", el)}
		}
	}
	return nil
}

// sortIDs orders numeric IDs numerically and anything else after them,
// lexically.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := record.ParseInt(ids[i])
		b, errB := record.ParseInt(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
