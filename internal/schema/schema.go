// Package schema describes the four destination tables: their column order,
// portable column types, key columns and duplicate handling. Row structs in
// package transform produce values in exactly this column order.
package schema

// Type is a portable column type; each storage backend maps it to SQL.
type Type int

const (
	// Int is a signed integer (IDs, namespaces).
	Int Type = iota
	// Flag is a 0/1 integer.
	Flag
	// Name is a short string: user names, titles, group names, levels.
	Name
	// Text is free text such as a block reason.
	Text
	// Timestamp is a 14-digit compact timestamp or the "infinity" token.
	Timestamp
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Flag:
		return "flag"
	case Name:
		return "name"
	case Text:
		return "text"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column is one destination column.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// Table is one destination table.
type Table struct {
	Name    string
	Columns []Column

	// Key is the unique key that decides whether two rows collide.
	Key []string

	// IgnoreDuplicates marks tables loaded with insert-or-ignore; colliding
	// rows are dropped instead of failing the load.
	IgnoreDuplicates bool
}

// ColumnNames returns the column names in row order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// KeyIndexes returns the positions of the key columns within a row.
func (t Table) KeyIndexes() []int {
	idx := make([]int, 0, len(t.Key))
	for _, k := range t.Key {
		for i, c := range t.Columns {
			if c.Name == k {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// IPBlocks holds user and IP blocks.
var IPBlocks = Table{
	Name: "ipblocks",
	Columns: []Column{
		{Name: "ipb_id", Type: Int},
		{Name: "ipb_address", Type: Name},
		{Name: "ipb_user", Type: Int},
		{Name: "ipb_by", Type: Int},
		{Name: "ipb_by_text", Type: Name},
		{Name: "ipb_reason", Type: Text},
		{Name: "ipb_timestamp", Type: Timestamp},
		{Name: "ipb_auto", Type: Flag},
		{Name: "ipb_anon_only", Type: Flag},
		{Name: "ipb_create_account", Type: Flag},
		{Name: "ipb_enable_autoblock", Type: Flag},
		{Name: "ipb_expiry", Type: Timestamp},
		{Name: "ipb_range_start", Type: Name, Nullable: true},
		{Name: "ipb_range_end", Type: Name, Nullable: true},
		{Name: "ipb_deleted", Type: Flag},
		{Name: "ipb_block_email", Type: Flag},
		{Name: "ipb_allow_usertalk", Type: Flag},
		{Name: "ipb_parent_block_id", Type: Int, Nullable: true},
	},
	Key: []string{"ipb_id"},
}

// PageRestrictions holds per-page edit/move protections.
var PageRestrictions = Table{
	Name: "page_restrictions",
	Columns: []Column{
		{Name: "pr_page", Type: Int},
		{Name: "pr_type", Type: Name},
		{Name: "pr_level", Type: Name},
		{Name: "pr_cascade", Type: Flag},
		{Name: "pr_user", Type: Int, Nullable: true},
		{Name: "pr_expiry", Type: Timestamp, Nullable: true},
		{Name: "pr_id", Type: Int, Nullable: true},
	},
	Key:              []string{"pr_page", "pr_type"},
	IgnoreDuplicates: true,
}

// ProtectedTitles holds create-protected titles of missing pages.
var ProtectedTitles = Table{
	Name: "protected_titles",
	Columns: []Column{
		{Name: "pt_namespace", Type: Int},
		{Name: "pt_title", Type: Name},
		{Name: "pt_user", Type: Int},
		{Name: "pt_reason", Type: Text},
		{Name: "pt_timestamp", Type: Timestamp},
		{Name: "pt_expiry", Type: Timestamp},
		{Name: "pt_create_perm", Type: Name},
	},
	Key: []string{"pt_namespace", "pt_title"},
}

// UserGroups holds explicit group memberships.
var UserGroups = Table{
	Name: "user_groups",
	Columns: []Column{
		{Name: "ug_user", Type: Int},
		{Name: "ug_group", Type: Name},
	},
	Key:              []string{"ug_user", "ug_group"},
	IgnoreDuplicates: true,
}
