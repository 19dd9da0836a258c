// Package collection holds a client's ordered view of the bookmark list.
package collection

import (
	"sort"

	"shelf/api/internal/ordering"
	"shelf/api/internal/wire"
)

// Store is the ordered sequence a client renders. It is not safe for
// concurrent use; Owner serializes access to it.
//
// Every entry point except ApplyLocalReorder leaves the sequence sorted by
// position. Broadcasts can arrive in any order relative to the intended
// sequence, so those paths place each record by binary search.
type Store struct {
	records []wire.Record
}

func NewStore() *Store {
	return &Store{records: make([]wire.Record, 0)}
}

// Load replaces the whole sequence, e.g. after a fetch or filter change.
func (s *Store) Load(records []wire.Record) {
	s.records = cloneAll(records)
	ordering.Sort(s.records)
}

// ApplyCreate inserts record. A record whose id is already present is
// treated as an update so duplicate deliveries are harmless.
//
// The record lands ahead of any record holding an equal position: the
// incoming key is the freshest, which matches the server's newest-first
// tie order.
func (s *Store) ApplyCreate(record wire.Record) {
	if i := s.IndexOf(record.ID); i >= 0 {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
	at := sort.Search(len(s.records), func(i int) bool {
		return !ordering.Less(s.records[i], record)
	})
	s.records = append(s.records, wire.Record{})
	copy(s.records[at+1:], s.records[at:])
	s.records[at] = record.Clone()
}

// ApplyUpdate replaces the record with the same id, appending it when absent.
func (s *Store) ApplyUpdate(record wire.Record) {
	s.ApplyCreate(record)
}

// ApplyDelete removes the record with id. Unknown ids are ignored.
func (s *Store) ApplyDelete(id int64) {
	i := s.IndexOf(id)
	if i < 0 {
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
}

// ApplyLocalReorder installs sequence verbatim without sorting. The caller
// is responsible for handing over a sorted sequence.
func (s *Store) ApplyLocalReorder(sequence []wire.Record) {
	s.records = cloneAll(sequence)
}

// Apply dispatches a broadcast event to the matching entry point.
func (s *Store) Apply(event wire.Event) bool {
	switch event.Action {
	case wire.ActionCreate:
		if event.Bookmark == nil {
			return false
		}
		s.ApplyCreate(*event.Bookmark)
	case wire.ActionUpdate:
		if event.Bookmark == nil {
			return false
		}
		s.ApplyUpdate(*event.Bookmark)
	case wire.ActionDelete:
		s.ApplyDelete(event.BookmarkID)
	default:
		return false
	}
	return true
}

func (s *Store) IndexOf(id int64) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) At(i int) wire.Record {
	return s.records[i].Clone()
}

// Records returns a copy of the current sequence.
func (s *Store) Records() []wire.Record {
	return cloneAll(s.records)
}

func cloneAll(records []wire.Record) []wire.Record {
	out := make([]wire.Record, len(records))
	for i, record := range records {
		out[i] = record.Clone()
	}
	return out
}
