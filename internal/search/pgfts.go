package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches the generated search vector or any tag name containing the
// text, ranked by ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]int64, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []int64{}, nil
	}

	args := []any{q.Text, normalizeLimit(q.Limit)}
	where := `(b.search_vector @@ plainto_tsquery('english', $1)
			OR EXISTS (
				SELECT 1 FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
				WHERE bt.bookmark_id = b.id AND t.name ILIKE '%' || $1 || '%'
			))`
	if q.Category != "" {
		args = append(args, q.Category)
		where += fmt.Sprintf(" AND b.category = $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id
		FROM bookmarks b
		WHERE `+where+`
		ORDER BY ts_rank(b.search_vector, plainto_tsquery('english', $1)) DESC, b.position ASC
		LIMIT $2`, args...)
	if err != nil {
		return nil, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadAllRecords returns every bookmark for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]BookmarkRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id, b.url, b.title, COALESCE(b.description, ''), COALESCE(b.category, ''),
			array_to_json(ARRAY(
				SELECT t.name FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
				WHERE bt.bookmark_id = b.id ORDER BY bt.ordinal
			))
		FROM bookmarks b
	`)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	defer rows.Close()

	records := make([]BookmarkRecord, 0)
	for rows.Next() {
		var r BookmarkRecord
		var tags []byte
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.Description, &r.Category, &tags); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		if err := json.Unmarshal(tags, &r.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %d: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return records, nil
}
