package transform

import (
	"wikisync/internal/record"
)

// ProtectedTitleRow is one protected_titles row.
type ProtectedTitleRow struct {
	Namespace  int64
	Title      string
	User       int64
	Reason     string
	Timestamp  string
	Expiry     string
	CreatePerm string
}

// Values returns the row in protected_titles column order.
func (r ProtectedTitleRow) Values() []any {
	return []any{r.Namespace, r.Title, r.User, r.Reason, r.Timestamp, r.Expiry, r.CreatePerm}
}

// ProtectedTitle converts a list=protectedtitles record. The reason comes
// from "comment" and the create permission from "level".
func ProtectedTitle(rec record.Record) (ProtectedTitleRow, error) {
	var (
		row ProtectedTitleRow
		err error
	)
	if row.Namespace, err = rec.Int("ns"); err != nil {
		return ProtectedTitleRow{}, err
	}
	title, err := rec.String("title")
	if err != nil {
		return ProtectedTitleRow{}, err
	}
	row.Title = SanitizeTitle(row.Namespace, title)

	if row.User, err = rec.Int("userid"); err != nil {
		return ProtectedTitleRow{}, err
	}
	if row.Reason, err = rec.StringOr("comment", ""); err != nil {
		return ProtectedTitleRow{}, err
	}

	ts, err := rec.String("timestamp")
	if err != nil {
		return ProtectedTitleRow{}, err
	}
	if row.Timestamp, err = Timestamp(ts); err != nil {
		return ProtectedTitleRow{}, err
	}

	exp, err := rec.String("expiry")
	if err != nil {
		return ProtectedTitleRow{}, err
	}
	e, err := Expiry(exp, InfinityVerbatim)
	if err != nil {
		return ProtectedTitleRow{}, err
	}
	row.Expiry = *e

	if row.CreatePerm, err = rec.String("level"); err != nil {
		return ProtectedTitleRow{}, err
	}
	return row, nil
}
