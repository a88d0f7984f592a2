package transform

import (
	"wikisync/internal/record"
)

// PageRestrictionRow is one page_restrictions row. User and ID have no API
// source and are always NULL.
type PageRestrictionRow struct {
	Page    int64
	Type    string
	Level   string
	Cascade bool
	User    *int64
	Expiry  *string
	ID      *int64
}

// Values returns the row in page_restrictions column order.
func (r PageRestrictionRow) Values() []any {
	return []any{
		r.Page,
		r.Type,
		r.Level,
		b2i(r.Cascade),
		nullInt(r.User),
		nullString(r.Expiry),
		nullInt(r.ID),
	}
}

// PageRestriction converts one element of a page's "protection" list. pageID
// is the key the page was listed under. A never-expiring restriction is
// stored as NULL.
func PageRestriction(pageID string, prot record.Record) (PageRestrictionRow, error) {
	page, err := record.ParseInt(pageID)
	if err != nil {
		return PageRestrictionRow{}, &record.ShapeError{Field: "pageid", Reason: err.Error()}
	}

	row := PageRestrictionRow{Page: page, Cascade: record.HasFlag(prot, "cascade")}
	if row.Type, err = prot.String("type"); err != nil {
		return PageRestrictionRow{}, err
	}
	if row.Level, err = prot.String("level"); err != nil {
		return PageRestrictionRow{}, err
	}

	exp, err := prot.String("expiry")
	if err != nil {
		return PageRestrictionRow{}, err
	}
	if row.Expiry, err = Expiry(exp, InfinityNull); err != nil {
		return PageRestrictionRow{}, err
	}
	return row, nil
}
