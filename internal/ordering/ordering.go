// Package ordering defines how bookmark position keys are compared and
// reassigned.
//
// A move resequences the whole list: after the splice every record gets
// position index+1. Only the moved record's key leaves the client, so the
// keys of the other records are local until a fetch or broadcast replaces
// them.
package ordering

import (
	"sort"

	"shelf/api/internal/wire"
)

// Less orders records by ascending position.
func Less(a, b wire.Record) bool {
	return a.Position < b.Position
}

// Sort orders records by position in place. Equal positions keep their
// current relative order, so the result is deterministic for a snapshot.
func Sort(records []wire.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}

func IsSorted(records []wire.Record) bool {
	return sort.SliceIsSorted(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}

// Resequence returns a copy of records with unit-spaced 1-based positions.
func Resequence(records []wire.Record) []wire.Record {
	out := make([]wire.Record, len(records))
	for i, record := range records {
		record.Position = float64(i) + 1.0
		out[i] = record
	}
	return out
}

// ValidMove reports whether moving src to dst in a list of n records
// changes anything.
func ValidMove(n, src, dst int) bool {
	if n == 0 {
		return false
	}
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return false
	}
	return src != dst
}

// Move removes the record at src, reinserts it at dst and resequences the
// result. The input slice is not modified. ok is false for an empty list,
// out-of-range indices, or src == dst.
func Move(records []wire.Record, src, dst int) (moved []wire.Record, ok bool) {
	if !ValidMove(len(records), src, dst) {
		return nil, false
	}
	next := make([]wire.Record, 0, len(records))
	next = append(next, records[:src]...)
	next = append(next, records[src+1:]...)

	next = append(next, wire.Record{})
	copy(next[dst+1:], next[dst:])
	next[dst] = records[src]

	return Resequence(next), true
}

// Next is the key a new record gets when appended to a scope whose highest
// key is max. An empty scope reports max 0.
func Next(max float64) float64 {
	return max + 1
}
