package transform

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeTitle returns the title as stored in the database. Main namespace
// titles are kept verbatim. Elsewhere the "Namespace:" prefix is stripped and
// the rest is NFC-normalized; a title without a colon is returned as is.
func SanitizeTitle(ns int64, title string) string {
	if ns == 0 {
		return title
	}
	if i := strings.IndexByte(title, ':'); i >= 0 {
		return norm.NFC.String(title[i+1:])
	}
	return title
}
