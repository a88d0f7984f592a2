package storage

import (
	"fmt"
	"iter"
	"slices"

	"github.com/zeebo/xxh3"
)

// Dedup drops rows whose key columns repeat within one loader batch. Keys
// are bucketed by their xxh3 fingerprint and compared in full on a hit, so a
// hash collision never drops a distinct row.
//
// The set is cleared every window kept rows. Passing the loader's batch
// size keeps memory bounded by one batch; repeats that span batches reach
// the destination, which drops them under PolicyIgnore.
type Dedup struct {
	keyIdx []int
	window int
	kept   int
	seen   map[uint64][]string
	buf    []byte
	hash   func([]byte) uint64

	Dropped int64
}

// NewDedup returns a Dedup keyed on the row positions keyIdx whose memory
// is reset every window kept rows. window <= 0 never resets.
func NewDedup(keyIdx []int, window int) *Dedup {
	return &Dedup{
		keyIdx: keyIdx,
		window: window,
		seen:   make(map[uint64][]string),
		hash:   xxh3.Hash,
	}
}

// Seen records row and reports whether its key was recorded before in the
// current window.
func (d *Dedup) Seen(row []any) bool {
	if d.window > 0 && d.kept >= d.window {
		clear(d.seen)
		d.kept = 0
	}

	d.buf = d.buf[:0]
	for _, i := range d.keyIdx {
		if i >= len(row) {
			continue
		}
		d.buf = fmt.Appendf(d.buf, "%T\x1f%v\x1e", row[i], row[i])
	}

	h := d.hash(d.buf)
	bucket := d.seen[h]
	if slices.Contains(bucket, string(d.buf)) {
		d.Dropped++
		return true
	}
	d.seen[h] = append(bucket, string(d.buf))
	d.kept++
	return false
}

// Len is the number of keys currently remembered.
func (d *Dedup) Len() int {
	n := 0
	for _, b := range d.seen {
		n += len(b)
	}
	return n
}

// Filter returns rows without the repeats.
func (d *Dedup) Filter(rows iter.Seq2[[]any, error]) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		for row, err := range rows {
			if err == nil && d.Seen(row) {
				continue
			}
			if !yield(row, err) {
				return
			}
		}
	}
}
