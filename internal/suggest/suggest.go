// Package suggest derives a title, tags and a category for a bookmark from
// the page it points at.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
)

var ErrNoSuggestion = errors.New("no suggestion available")

// Categories is the fixed label set tags and categories are drawn from.
var Categories = []string{
	"tech",
	"news",
	"research",
	"politics",
	"tutorial",
	"development",
	"science",
	"environment",
	"reviews",
}

var keywords = map[string][]string{
	"tech":        {"technology", "tech", "software", "hardware", "gadget", "device", "cloud", "ai", "startup", "computer", "smartphone", "internet"},
	"news":        {"news", "breaking", "report", "today", "headline", "announced", "update", "latest", "press"},
	"research":    {"research", "study", "paper", "journal", "abstract", "findings", "methodology", "dataset", "experiment", "university"},
	"politics":    {"politics", "election", "government", "policy", "senate", "parliament", "minister", "vote", "campaign", "law"},
	"tutorial":    {"tutorial", "guide", "how", "step", "learn", "beginner", "example", "walkthrough", "introduction", "lesson"},
	"development": {"code", "developer", "programming", "api", "library", "framework", "github", "golang", "javascript", "python", "function", "deploy"},
	"science":     {"science", "physics", "biology", "chemistry", "space", "nasa", "scientist", "theory", "quantum", "genome"},
	"environment": {"climate", "environment", "carbon", "emissions", "renewable", "energy", "sustainability", "pollution", "wildlife", "ocean"},
	"reviews":     {"review", "rating", "verdict", "pros", "cons", "tested", "hands-on", "comparison", "best", "recommend"},
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

type Service struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewService(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		maxBytes:  2 << 20,
	}
}

// Page is the parsed part of a fetched document we suggest from.
type Page struct {
	Title string
	Text  string
}

// Fetch downloads url and extracts its title and visible text.
func (s *Service) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}
	return Parse(io.LimitReader(resp.Body, s.maxBytes))
}

// Parse reads an HTML document, skipping script and style content.
func Parse(r io.Reader) (Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse page: %w", err)
	}

	var page Page
	var text []string
	var walk func(n *html.Node, inTitle bool)
	walk = func(n *html.Node, inTitle bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				inTitle = true
			}
		}
		if n.Type == html.TextNode {
			chunk := strings.TrimSpace(n.Data)
			if chunk != "" {
				if inTitle {
					if page.Title == "" {
						page.Title = chunk
					}
				} else {
					text = append(text, chunk)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTitle)
		}
	}
	walk(root, false)

	page.Text = strings.Join(text, " ")
	return page, nil
}

// Title returns the page's <title>.
func (s *Service) Title(ctx context.Context, url string) (string, error) {
	page, err := s.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if page.Title == "" {
		return "", ErrNoSuggestion
	}
	return page.Title, nil
}

// Tags returns up to n category labels ranked by how strongly the page text
// matches them, plus the strongest one as the category. A page with no
// usable text yields no tags and an empty category.
func (s *Service) Tags(ctx context.Context, url string, n int) ([]string, string, error) {
	page, err := s.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	tags, category := page.tags(n)
	return tags, category, nil
}

// Suggestion is everything derived from a single fetch of a page.
type Suggestion struct {
	Title    string
	Tags     []string
	Category string
}

// Describe fetches url once and derives its title, tags and category. Title
// is empty when the page has none.
func (s *Service) Describe(ctx context.Context, url string, n int) (Suggestion, error) {
	page, err := s.Fetch(ctx, url)
	if err != nil {
		return Suggestion{}, err
	}
	tags, category := page.tags(n)
	return Suggestion{Title: page.Title, Tags: tags, Category: category}, nil
}

func (p Page) tags(n int) ([]string, string) {
	tags := Classify(p.Title+" "+p.Text, n)
	if len(tags) == 0 {
		return []string{}, ""
	}
	return tags, tags[0]
}

// Classify scores text against each category's keywords and returns the
// top n categories with a positive score, best first. Ties keep the order
// of Categories.
func Classify(text string, n int) []string {
	if n <= 0 {
		n = 5
	}
	counts := map[string]int{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		counts[word]++
	}

	type scored struct {
		label string
		score int
	}
	scores := make([]scored, 0, len(Categories))
	for _, label := range Categories {
		score := 0
		for _, keyword := range keywords[label] {
			score += counts[keyword]
		}
		if score > 0 {
			scores = append(scores, scored{label, score})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]string, 0, n)
	for _, s := range scores {
		if len(out) == n {
			break
		}
		out = append(out, s.label)
	}
	return out
}
