package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTables_KeysAreColumns(t *testing.T) {
	t.Parallel()

	for _, tbl := range []Table{IPBlocks, PageRestrictions, ProtectedTitles, UserGroups} {
		assert.Len(t, tbl.KeyIndexes(), len(tbl.Key), tbl.Name)
		seen := map[string]bool{}
		for _, c := range tbl.Columns {
			assert.False(t, seen[c.Name], "%s: duplicate column %s", tbl.Name, c.Name)
			seen[c.Name] = true
		}
	}
}

func TestTables_Shapes(t *testing.T) {
	t.Parallel()

	assert.Len(t, IPBlocks.Columns, 18)
	assert.Len(t, PageRestrictions.Columns, 7)
	assert.Len(t, ProtectedTitles.Columns, 7)
	assert.Len(t, UserGroups.Columns, 2)

	assert.False(t, IPBlocks.IgnoreDuplicates)
	assert.True(t, PageRestrictions.IgnoreDuplicates)
	assert.False(t, ProtectedTitles.IgnoreDuplicates)
	assert.True(t, UserGroups.IgnoreDuplicates)
}

func TestKeyIndexes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{0, 1}, PageRestrictions.KeyIndexes())
	assert.Equal(t, []string{"ug_user", "ug_group"}, UserGroups.ColumnNames())
	assert.Equal(t, "timestamp", Timestamp.String())
}
