package store

import "time"

type Bookmark struct {
	ID          int64
	URL         string
	Title       string
	Description *string
	Category    *string
	Position    float64
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Tags        []Tag
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type NewBookmark struct {
	URL         string
	Title       string
	Description *string
	Category    *string
	Tags        []string
}

// BookmarkPatch changes only the non-nil fields.
type BookmarkPatch struct {
	URL         *string
	Title       *string
	Description *string
	Category    *string
	Tags        *[]string
	Position    *float64
}

func (p BookmarkPatch) Empty() bool {
	return p.URL == nil && p.Title == nil && p.Description == nil && p.Category == nil && p.Tags == nil && p.Position == nil
}

type Interaction struct {
	BookmarkID int64
	Title      string
	Action     string
	Timestamp  time.Time
}

const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionReorder = "reorder"
)
