package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"shelf/api/internal/ordering"
)

var ErrDuplicateURL = errors.New("bookmark with this url already exists")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const selectBookmark = `
	SELECT b.id, b.url, b.title, b.description, b.category, b.position, b.created_at, b.updated_at,
		COALESCE((
			SELECT json_agg(json_build_object('id', t.id, 'name', t.name) ORDER BY bt.ordinal, t.name)
			FROM bookmark_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.bookmark_id = b.id
		), '[]'::json)
	FROM bookmarks b
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (Bookmark, error) {
	var (
		item        Bookmark
		description sql.NullString
		category    sql.NullString
		updatedAt   sql.NullTime
		tagsJSON    []byte
	)
	if err := row.Scan(&item.ID, &item.URL, &item.Title, &description, &category, &item.Position, &item.CreatedAt, &updatedAt, &tagsJSON); err != nil {
		return Bookmark{}, err
	}
	if description.Valid {
		item.Description = &description.String
	}
	if category.Valid {
		item.Category = &category.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		item.UpdatedAt = &t
	}
	item.Tags = []Tag{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &item.Tags); err != nil {
			return Bookmark{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return item, nil
}

func collectBookmarks(rows *sql.Rows) ([]Bookmark, error) {
	defer rows.Close()
	items := make([]Bookmark, 0)
	for rows.Next() {
		item, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListBookmarks returns one page in display order. An empty category lists
// every bookmark.
func (s *PostgresStore) ListBookmarks(ctx context.Context, category string, skip, limit int) ([]Bookmark, error) {
	query := selectBookmark
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += ` WHERE b.category = $1`
	}
	args = append(args, limit, skip)
	query += fmt.Sprintf(` ORDER BY b.position ASC, b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return collectBookmarks(rows)
}

// ListAllBookmarks returns every bookmark in display order.
func (s *PostgresStore) ListAllBookmarks(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, selectBookmark+` ORDER BY b.position ASC, b.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all bookmarks: %w", err)
	}
	return collectBookmarks(rows)
}

func (s *PostgresStore) GetBookmark(ctx context.Context, id int64) (Bookmark, error) {
	item, err := scanBookmark(s.db.QueryRowContext(ctx, selectBookmark+` WHERE b.id = $1`, id))
	if err != nil {
		return Bookmark{}, err
	}
	return item, nil
}

// GetBookmarksByIDs returns the bookmarks in the order of ids. Unknown ids
// are skipped.
func (s *PostgresStore) GetBookmarksByIDs(ctx context.Context, ids []int64) ([]Bookmark, error) {
	if len(ids) == 0 {
		return []Bookmark{}, nil
	}
	rows, err := s.db.QueryContext(ctx, selectBookmark+` WHERE b.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get bookmarks by id: %w", err)
	}
	found, err := collectBookmarks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Bookmark, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	ordered := make([]Bookmark, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// InsertBookmark appends the bookmark after the highest position in its
// category.
func (s *PostgresStore) InsertBookmark(ctx context.Context, item NewBookmark) (Bookmark, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Bookmark{}, fmt.Errorf("begin insert bookmark: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxPosition float64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM bookmarks WHERE category IS NOT DISTINCT FROM $1
	`, item.Category).Scan(&maxPosition); err != nil {
		return Bookmark{}, fmt.Errorf("read max position: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bookmarks (url, title, description, category, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, item.URL, item.Title, item.Description, item.Category, ordering.Next(maxPosition)).Scan(&id)
	if err != nil {
		return Bookmark{}, translateWriteError("insert bookmark", err)
	}

	if err := replaceTags(ctx, tx, id, item.Tags); err != nil {
		return Bookmark{}, err
	}
	if err := tx.Commit(); err != nil {
		return Bookmark{}, fmt.Errorf("commit insert bookmark: %w", err)
	}
	return s.GetBookmark(ctx, id)
}

// UpdateBookmark applies patch. sql.ErrNoRows reports an unknown id.
func (s *PostgresStore) UpdateBookmark(ctx context.Context, id int64, patch BookmarkPatch) (Bookmark, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Bookmark{}, fmt.Errorf("begin update bookmark: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.URL != nil {
		add("url", *patch.URL)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", nullIfEmpty(*patch.Description))
	}
	if patch.Category != nil {
		add("category", nullIfEmpty(*patch.Category))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}

	result, err := tx.ExecContext(ctx, `UPDATE bookmarks SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return Bookmark{}, translateWriteError("update bookmark", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return Bookmark{}, fmt.Errorf("update bookmark rows: %w", err)
	} else if affected == 0 {
		return Bookmark{}, sql.ErrNoRows
	}

	if patch.Tags != nil {
		if err := replaceTags(ctx, tx, id, *patch.Tags); err != nil {
			return Bookmark{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Bookmark{}, fmt.Errorf("commit update bookmark: %w", err)
	}
	return s.GetBookmark(ctx, id)
}

// ReorderBookmark stores a new position. A non-empty category also moves
// the bookmark into that category.
func (s *PostgresStore) ReorderBookmark(ctx context.Context, id int64, position float64, category string) (Bookmark, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET position = $2, category = COALESCE(NULLIF($3, ''), category), updated_at = NOW()
		WHERE id = $1
	`, id, position, category)
	if err != nil {
		return Bookmark{}, fmt.Errorf("reorder bookmark: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return Bookmark{}, fmt.Errorf("reorder bookmark rows: %w", err)
	} else if affected == 0 {
		return Bookmark{}, sql.ErrNoRows
	}
	return s.GetBookmark(ctx, id)
}

func (s *PostgresStore) DeleteBookmark(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bookmark rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM bookmarks WHERE category IS NOT NULL AND category <> '' ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *PostgresStore) LogInteraction(ctx context.Context, bookmarkID int64, action string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmark_interactions (bookmark_id, action) VALUES ($1, $2)
	`, bookmarkID, action); err != nil {
		return fmt.Errorf("log %s interaction: %w", action, err)
	}
	return nil
}

// LogViews records one view per id in a single statement.
func (s *PostgresStore) LogViews(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmark_interactions (bookmark_id, action)
		SELECT id, 'view' FROM bookmarks WHERE id = ANY($1)
	`, ids); err != nil {
		return fmt.Errorf("log views: %w", err)
	}
	return nil
}

// CategoryCounts keys bookmarks without a category as "Uncategorized".
func (s *PostgresStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return s.counts(ctx, "category counts", `
		SELECT COALESCE(NULLIF(category, ''), 'Uncategorized'), COUNT(*)
		FROM bookmarks
		GROUP BY 1
	`)
}

func (s *PostgresStore) TagCounts(ctx context.Context) (map[string]int, error) {
	return s.counts(ctx, "tag counts", `
		SELECT t.name, COUNT(bt.bookmark_id)
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_id = t.id
		GROUP BY t.name
	`)
}

func (s *PostgresStore) counts(ctx context.Context, label, query string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) RecentInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.bookmark_id, b.title, i.action, i.timestamp
		FROM bookmark_interactions i
		JOIN bookmarks b ON b.id = i.bookmark_id
		ORDER BY i.timestamp DESC, i.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent interactions: %w", err)
	}
	defer rows.Close()

	items := make([]Interaction, 0)
	for rows.Next() {
		var item Interaction
		if err := rows.Scan(&item.BookmarkID, &item.Title, &item.Action, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func replaceTags(ctx context.Context, tx *sql.Tx, bookmarkID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookmark_tags WHERE bookmark_id = $1`, bookmarkID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for ordinal, name := range NormalizeTags(names) {
		var tagID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("upsert tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookmark_tags (bookmark_id, tag_id, ordinal) VALUES ($1, $2, $3)
			ON CONFLICT (bookmark_id, tag_id) DO NOTHING
		`, bookmarkID, tagID, ordinal); err != nil {
			return fmt.Errorf("attach tag %q: %w", name, err)
		}
	}
	return nil
}

// NormalizeTags lower-cases and trims names and drops blanks and repeats,
// keeping first occurrence order.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateURL
	}
	return fmt.Errorf("%s: %w", op, err)
}
