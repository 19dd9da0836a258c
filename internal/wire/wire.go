// Package wire holds the JSON shapes shared by the API server, its HTTP
// client, and the push channel.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Record is a bookmark as served by the API and carried in broadcasts.
type Record struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Position    float64    `json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Tags        []Tag      `json:"tags"`
}

// CategoryName returns the category or "" when the record has none.
func (r Record) CategoryName() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// TagNames returns tag names in display order.
func (r Record) TagNames() []string {
	names := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// Clone returns a copy that shares no slices or pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.Description != nil {
		description := *r.Description
		out.Description = &description
	}
	if r.Category != nil {
		category := *r.Category
		out.Category = &category
	}
	if r.UpdatedAt != nil {
		updatedAt := *r.UpdatedAt
		out.UpdatedAt = &updatedAt
	}
	if r.Tags != nil {
		out.Tags = append([]Tag(nil), r.Tags...)
	}
	return out
}

type CreateRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	URL         *string   `json:"url,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Position    *float64  `json:"position,omitempty"`
}

type ReorderRequest struct {
	BookmarkID  int64   `json:"bookmark_id"`
	NewPosition float64 `json:"new_position"`
	Category    *string `json:"category"`
}

// Filter selects what a fetch returns. Category is ignored when Query is set.
type Filter struct {
	Query    string
	Category string
}

// Searching reports whether the filter is a search rather than the ordered view.
func (f Filter) Searching() bool {
	return f.Query != ""
}

type SuggestRequest struct {
	URL string `json:"url"`
}

type TitleSuggestion struct {
	SuggestedTitle *string `json:"suggested_title"`
	Error          *string `json:"error"`
}

type TagsSuggestion struct {
	SuggestedTags     []string `json:"suggested_tags"`
	SuggestedCategory *string  `json:"suggested_category"`
	Error             *string  `json:"error"`
}

type RecentAction struct {
	BookmarkID int64  `json:"bookmark_id"`
	Title      string `json:"title"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
}

type Analytics struct {
	CategoryCounts map[string]int `json:"category_counts"`
	TagCounts      map[string]int `json:"tag_counts"`
	RecentActions  []RecentAction `json:"recent_actions"`
}

// Action tags a broadcast event.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one server-side mutation fanned out to every connected client.
// Create and update carry Bookmark; delete carries BookmarkID.
type Event struct {
	Action     Action
	Bookmark   *Record
	BookmarkID int64
}

func Created(record Record) Event {
	return Event{Action: ActionCreate, Bookmark: &record}
}

func Updated(record Record) Event {
	return Event{Action: ActionUpdate, Bookmark: &record}
}

func Deleted(id int64) Event {
	return Event{Action: ActionDelete, BookmarkID: id}
}

var ErrMalformedEvent = errors.New("malformed event")

type eventFrame struct {
	Action     Action  `json:"action"`
	Bookmark   *Record `json:"bookmark,omitempty"`
	BookmarkID *int64  `json:"bookmark_id,omitempty"`
}

// EncodeEvent renders an event in its wire form.
func EncodeEvent(event Event) ([]byte, error) {
	frame := eventFrame{Action: event.Action}
	switch event.Action {
	case ActionCreate, ActionUpdate:
		if event.Bookmark == nil {
			return nil, fmt.Errorf("%w: %s without bookmark", ErrMalformedEvent, event.Action)
		}
		frame.Bookmark = event.Bookmark
	case ActionDelete:
		id := event.BookmarkID
		frame.BookmarkID = &id
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedEvent, event.Action)
	}
	return json.Marshal(frame)
}

// DecodeEvent parses a wire message and validates that the payload matches
// the action tag.
func DecodeEvent(data []byte) (Event, error) {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch frame.Action {
	case ActionCreate, ActionUpdate:
		if frame.Bookmark == nil {
			return Event{}, fmt.Errorf("%w: %s without bookmark", ErrMalformedEvent, frame.Action)
		}
		return Event{Action: frame.Action, Bookmark: frame.Bookmark}, nil
	case ActionDelete:
		if frame.BookmarkID == nil {
			return Event{}, fmt.Errorf("%w: delete without bookmark_id", ErrMalformedEvent)
		}
		return Event{Action: frame.Action, BookmarkID: *frame.BookmarkID}, nil
	default:
		return Event{}, fmt.Errorf("%w: unknown action %q", ErrMalformedEvent, frame.Action)
	}
}
