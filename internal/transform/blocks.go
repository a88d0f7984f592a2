package transform

import (
	"strings"

	"wikisync/internal/record"
)

// AutoblockPrefix starts the reason of blocks the wiki derived from another
// block. Those are not copied.
const AutoblockPrefix = "Autoblocked because your IP address"

// BlockRow is one ipblocks row.
type BlockRow struct {
	ID              int64
	Address         string
	User            int64
	By              int64
	ByText          string
	Reason          string
	Timestamp       string
	Auto            int
	AnonOnly        bool
	CreateAccount   bool
	EnableAutoblock bool
	Expiry          *string
	RangeStart      *string
	RangeEnd        *string
	Deleted         int
	BlockEmail      bool
	AllowUsertalk   bool
	ParentBlockID   *int64
}

// Values returns the row in ipblocks column order.
func (r BlockRow) Values() []any {
	return []any{
		r.ID,
		r.Address,
		r.User,
		r.By,
		r.ByText,
		r.Reason,
		r.Timestamp,
		r.Auto,
		b2i(r.AnonOnly),
		b2i(r.CreateAccount),
		b2i(r.EnableAutoblock),
		nullString(r.Expiry),
		nullString(r.RangeStart),
		nullString(r.RangeEnd),
		r.Deleted,
		b2i(r.BlockEmail),
		b2i(r.AllowUsertalk),
		nullInt(r.ParentBlockID),
	}
}

// Block converts a list=blocks record. keep is false for autoblocks, which
// are skipped without error.
//
// ipb_allow_usertalk is stored inverted: it is 1 when the record does not
// carry "allowusertalk".
func Block(rec record.Record) (row BlockRow, keep bool, err error) {
	reason, err := rec.StringOr("reason", "")
	if err != nil {
		return BlockRow{}, false, err
	}
	if strings.HasPrefix(reason, AutoblockPrefix) || record.HasFlag(rec, "automatic") {
		return BlockRow{}, false, nil
	}

	if row.ID, err = rec.Int("id"); err != nil {
		return BlockRow{}, false, err
	}
	if row.Address, err = rec.String("user"); err != nil {
		return BlockRow{}, false, err
	}
	if row.User, err = rec.Int("userid"); err != nil {
		return BlockRow{}, false, err
	}
	if row.ByText, err = rec.String("by"); err != nil {
		return BlockRow{}, false, err
	}
	if row.By, err = rec.Int("byid"); err != nil {
		return BlockRow{}, false, err
	}

	ts, err := rec.String("timestamp")
	if err != nil {
		return BlockRow{}, false, err
	}
	if row.Timestamp, err = Timestamp(ts); err != nil {
		return BlockRow{}, false, err
	}

	exp, err := rec.String("expiry")
	if err != nil {
		return BlockRow{}, false, err
	}
	if row.Expiry, err = Expiry(exp, InfinityVerbatim); err != nil {
		return BlockRow{}, false, err
	}

	if row.RangeStart, err = rec.OptionalString("rangestart"); err != nil {
		return BlockRow{}, false, err
	}
	if row.RangeEnd, err = rec.OptionalString("rangeend"); err != nil {
		return BlockRow{}, false, err
	}

	row.Reason = reason
	row.AnonOnly = record.HasFlag(rec, "anononly")
	row.CreateAccount = record.HasFlag(rec, "nocreate")
	row.EnableAutoblock = record.HasFlag(rec, "autoblock")
	row.BlockEmail = record.HasFlag(rec, "noemail")
	row.AllowUsertalk = !record.HasFlag(rec, "allowusertalk")

	return row, true, nil
}
