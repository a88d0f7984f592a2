package transform

import (
	"wikisync/internal/record"
)

// UserGroupRow is one user_groups row.
type UserGroupRow struct {
	User  int64
	Group string
}

// Values returns the row in user_groups column order.
func (r UserGroupRow) Values() []any {
	return []any{r.User, r.Group}
}

// IsImplicitGroup reports whether every account is a member of group, in
// which case the membership is never stored.
func IsImplicitGroup(group string) bool {
	switch group {
	case "*", "user", "autoconfirmed":
		return true
	}
	return false
}

// UserGroups fans a list=allusers record out into one row per group, leaving
// out the groups skip matches. A nil skip means IsImplicitGroup. The user ID
// is read from "userid", falling back to "id".
func UserGroups(rec record.Record, skip func(group string) bool) ([]UserGroupRow, error) {
	if skip == nil {
		skip = IsImplicitGroup
	}

	groups, err := rec.Strings("groups")
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	user, err := rec.IntFirst("userid", "id")
	if err != nil {
		return nil, err
	}

	rows := make([]UserGroupRow, 0, len(groups))
	for _, g := range groups {
		if skip(g) {
			continue
		}
		rows = append(rows, UserGroupRow{User: user, Group: g})
	}
	return rows, nil
}
