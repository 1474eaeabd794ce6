package htmlreport

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// manifestURL matches ".../<id>/master.mpd" and captures the id.
var manifestURL = regexp.MustCompile(`^https?://[^/]+/([^/?#]+)/master\.mpd(?:[?#].*)?$`)

// TokenPlaceholder is left in rewritten URLs; the page fills it in with the
// token the viewer enters.
const TokenPlaceholder = "{token}"

// DefaultPlayerTemplate is used when Options.PlayerTemplate is empty.
const DefaultPlayerTemplate = "https://madxapi-d0cbf6ac738c.herokuapp.com/{id}/master.m3u8?token=" + TokenPlaceholder

// PlayerDisabled as PlayerTemplate keeps manifest URLs as they are.
const PlayerDisabled = "none"

type Options struct {
	Title string
	// PlayerTemplate reroutes master.mpd manifests. "{id}" is replaced with
	// the manifest id; "{token}" is kept for the page. Empty means
	// DefaultPlayerTemplate.
	PlayerTemplate string
	GeneratedAt    time.Time
}

// Item is a single link as embedded in the page.
type Item struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	OriginalURL string `json:"originalUrl,omitempty"`
}

// Course is one accordion.
type Course struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Tab is one category with its courses sorted by name.
type Tab struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Courses  []Course `json:"courses"`
	Count    int      `json:"count"`
}

// Page is the template model.
type Page struct {
	Title       string
	GeneratedAt string
	Tabs        []Tab
	NeedsToken  bool
	Total       int
}

var tabLabels = map[Category]string{
	CategoryDocument: "PDF",
	CategoryVideo:    "Video",
	CategoryOther:    "Others",
}

// Group buckets entries by category and then by course name. Every entry
// lands in exactly one course of exactly one tab.
func Group(entries []Entry, opts Options) Page {
	byCat := map[Category]map[string][]Item{}
	needsToken := false

	for _, e := range entries {
		cat := Classify(e.URL)
		item := Item{Title: e.Title, URL: e.URL}
		if cat == CategoryVideo {
			if u, ok := playerURL(e.URL, opts.PlayerTemplate); ok {
				item.URL = u
				item.OriginalURL = e.URL
				needsToken = needsToken || strings.Contains(u, TokenPlaceholder)
			}
		}

		course := CourseName(e.Title)
		if byCat[cat] == nil {
			byCat[cat] = map[string][]Item{}
		}
		byCat[cat][course] = append(byCat[cat][course], item)
	}

	page := Page{
		Title:      opts.Title,
		NeedsToken: needsToken,
		Total:      len(entries),
	}
	if page.Title == "" {
		page.Title = "Batch Links"
	}
	if !opts.GeneratedAt.IsZero() {
		page.GeneratedAt = opts.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
	}

	for _, cat := range Categories {
		tab := Tab{Category: cat, Label: tabLabels[cat]}
		names := make([]string, 0, len(byCat[cat]))
		for name := range byCat[cat] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			items := byCat[cat][name]
			tab.Courses = append(tab.Courses, Course{Name: name, Items: items})
			tab.Count += len(items)
		}
		page.Tabs = append(page.Tabs, tab)
	}
	return page
}

func playerURL(raw, tmpl string) (string, bool) {
	switch tmpl {
	case "":
		tmpl = DefaultPlayerTemplate
	case PlayerDisabled:
		return "", false
	}
	m := manifestURL.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(tmpl, "{id}", m[1]), true
}

// Render writes the HTML page for entries to w.
func Render(w io.Writer, entries []Entry, opts Options) error {
	if err := pageTmpl.Execute(w, Group(entries, opts)); err != nil {
		return goerr.Wrap(err, "failed to render html report")
	}
	return nil
}

// Convert parses a text report and renders it. The returned count is the
// number of links embedded.
func Convert(text string, opts Options) ([]byte, int, error) {
	entries := Parse(text)
	var buf bytes.Buffer
	if err := Render(&buf, entries, opts); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(entries), nil
}
