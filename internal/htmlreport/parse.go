// Package htmlreport turns a "title: url" text report into a single
// self-contained HTML page. It performs no network calls.
package htmlreport

import (
	"bufio"
	"net/url"
	"path"
	"strings"
	"unicode"
)

// Entry is one parsed report line.
type Entry struct {
	Title string
	URL   string
}

type Category string

const (
	CategoryDocument Category = "pdf"
	CategoryVideo    Category = "video"
	CategoryOther    Category = "other"
)

// Categories lists the buckets in tab order.
var Categories = []Category{CategoryDocument, CategoryVideo, CategoryOther}

const otherCourse = "Other"

var videoExts = map[string]bool{
	".mpd":  true,
	".m3u8": true,
	".mp4":  true,
	".webm": true,
}

// Parse reads "title: url" lines. Blank lines, subject headers and lines
// without a separator are skipped.
func Parse(text string) []Entry {
	var out []Entry
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || isHeader(line) {
			continue
		}
		e, ok := parseLine(line)
		if ok {
			out = append(out, e)
		}
	}
	return out
}

func isHeader(line string) bool {
	return strings.HasPrefix(line, "===") && strings.HasSuffix(line, "===")
}

// parseLine splits at the colon that introduces the URL. Titles written by
// this module never contain one, but hand edited files might, so a colon
// followed by "scheme://" wins over an earlier one.
func parseLine(line string) (Entry, bool) {
	first := strings.Index(line, ":")
	if first < 0 {
		return Entry{}, false
	}

	split := first
	for i := first; i >= 0 && i < len(line); {
		if looksLikeURL(strings.TrimSpace(line[i+1:])) {
			split = i
			break
		}
		next := strings.Index(line[i+1:], ":")
		if next < 0 {
			break
		}
		i += next + 1
	}

	title := strings.TrimSpace(line[:split])
	u := strings.TrimSpace(line[split+1:])
	if u == "" {
		return Entry{}, false
	}
	return Entry{Title: title, URL: u}, true
}

func looksLikeURL(s string) bool {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	for _, r := range scheme {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Classify buckets a URL by the extension of its path. Query strings are
// ignored so tokens cannot change the bucket.
func Classify(raw string) Category {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.ToLower(p)

	if strings.Contains(p, ".pdf") {
		return CategoryDocument
	}
	if videoExts[path.Ext(p)] {
		return CategoryVideo
	}
	for ext := range videoExts {
		if strings.Contains(p, ext+"/") {
			return CategoryVideo
		}
	}
	return CategoryOther
}

// CourseName is the title text before the first standalone number, e.g.
// "Physics" for "Physics 12 Kinematics". Titles without a number, or with
// nothing before it, group under "Other".
func CourseName(title string) string {
	fields := strings.Fields(title)
	for i, f := range fields {
		if !isNumeral(f) {
			continue
		}
		if i == 0 {
			return otherCourse
		}
		return strings.Join(fields[:i], " ")
	}
	return otherCourse
}

func isNumeral(token string) bool {
	token = strings.TrimRight(token, ":.)-")
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
