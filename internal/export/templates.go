package export

import (
	"bytes"
	"embed"
	"html/template"
	"sort"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"join": strings.Join,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/*.html"))

const uncategorized = "Uncategorized"

// TemplateData holds data for export template rendering.
type TemplateData struct {
	Title       string
	Count       int
	GeneratedAt time.Time
	Groups      []TemplateGroup
}

type TemplateGroup struct {
	Name    string
	Entries []Entry
}

// GroupEntries splits entries by category. Categories are sorted by name
// with uncategorized entries last; each group keeps position order.
func GroupEntries(entries []Entry) []TemplateGroup {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	byName := map[string]*TemplateGroup{}
	names := []string{}
	for _, entry := range sorted {
		name := entry.Category
		if name == "" {
			name = uncategorized
		}
		group, ok := byName[name]
		if !ok {
			group = &TemplateGroup{Name: name}
			byName[name] = group
			names = append(names, name)
		}
		group.Entries = append(group.Entries, entry)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == uncategorized) != (names[j] == uncategorized) {
			return names[j] == uncategorized
		}
		return names[i] < names[j]
	})

	groups := make([]TemplateGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, *byName[name])
	}
	return groups
}

// RenderBookmarksHTML renders the Netscape bookmark file format.
func RenderBookmarksHTML(data TemplateData) (string, error) {
	return render("bookmarks.html", data)
}

// RenderPrintHTML renders the page that is printed to PDF.
func RenderPrintHTML(data TemplateData) (string, error) {
	return render("print.html", data)
}

func render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
