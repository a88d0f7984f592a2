package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisync/internal/record"
)

func drain(t *testing.T, ex Extractor, body any) []Item {
	t.Helper()
	seq, err := ex(body)
	require.NoError(t, err)
	var out []Item
	for it := range seq {
		out = append(out, it)
	}
	return out
}

func TestListUnder(t *testing.T) {
	t.Parallel()

	body := map[string]any{"blocks": []any{
		map[string]any{"id": "1"},
		map[string]any{"id": "2"},
	}}

	got := drain(t, ListUnder("blocks"), body)
	require.Len(t, got, 2)
	assert.Equal(t, record.Record{"id": "1"}, got[0].Record)
	assert.Empty(t, got[0].ParentID)

	assert.Empty(t, drain(t, ListUnder("blocks"), nil))
	assert.Empty(t, drain(t, ListUnder("blocks"), map[string]any{}))
}

func TestListUnder_BadShape(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]any{
		"body not object":    []any{},
		"value not list":     map[string]any{"blocks": "x"},
		"element not object": map[string]any{"blocks": []any{"x"}},
	} {
		_, err := ListUnder("blocks")(body)
		var se *record.ShapeError
		assert.ErrorAs(t, err, &se, name)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	got := drain(t, List(), []any{map[string]any{"title": "A"}})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Record["title"])

	_, err := List()(map[string]any{})
	assert.Error(t, err)
}

func TestNestedByID(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"100": map[string]any{"protection": []any{
			map[string]any{"type": "edit"},
		}},
		"12": map[string]any{"protection": []any{
			map[string]any{"type": "edit"},
			map[string]any{"type": "move"},
		}},
		"7": map[string]any{"title": "no protection key"},
	}

	got := drain(t, NestedByID("protection"), body)
	require.Len(t, got, 3)

	// Ascending numeric order: 12 before 100.
	assert.Equal(t, "12", got[0].ParentID)
	assert.Equal(t, "edit", got[0].Record["type"])
	assert.Equal(t, "12", got[1].ParentID)
	assert.Equal(t, "move", got[1].Record["type"])
	assert.Equal(t, "100", got[2].ParentID)
}

func TestNestedByID_StopsEarly(t *testing.T) {
	t.Parallel()

	body := map[string]any{"1": map[string]any{"protection": []any{
		map[string]any{"type": "edit"},
		map[string]any{"type": "move"},
	}}}

	seq, err := NestedByID("protection")(body)
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestNestedByID_BadShape(t *testing.T) {
	t.Parallel()

	_, err := NestedByID("protection")(map[string]any{"1": "x"})
	assert.Error(t, err)

	_, err = NestedByID("protection")(map[string]any{"1": map[string]any{"protection": "x"}})
	assert.Error(t, err)

	_, err = NestedByID("protection")(map[string]any{"1": map[string]any{"protection": []any{1}}})
	assert.Error(t, err)
}

func TestSortIDs(t *testing.T) {
	t.Parallel()

	ids := []string{"100", "b", "2", "-1", "a", "10"}
	sortIDs(ids)
	assert.Equal(t, []string{"-1", "2", "10", "100", "a", "b"}, ids)
}
