// Package report assembles the plain text link report and manages the
// transient files it is delivered from.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
)

// Separator joins title and URL on a report line. Titles never contain it.
const Separator = ":"

// Builder accumulates report text. The zero value is ready to use.
type Builder struct {
	buf      bytes.Buffer
	sections int
	lines    int
}

// Section starts a new subject block.
func (b *Builder) Section(name string) {
	if b.buf.Len() > 0 {
		b.buf.WriteByte('\n')
	}
	fmt.Fprintf(&b.buf, "=== Subject: %s ===\n\n", strings.TrimSpace(name))
	b.sections++
}

// Line appends one "title: url" entry.
func (b *Builder) Line(title, url string) {
	fmt.Fprintf(&b.buf, "%s%s %s\n", CleanTitle(title), Separator, strings.TrimSpace(url))
	b.lines++
}

// Len is the number of item lines written so far.
func (b *Builder) Len() int { return b.lines }

func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

func (b *Builder) String() string { return b.buf.String() }

// CleanTitle replaces the line separator with spaces and collapses runs of
// whitespace.
func CleanTitle(title string) string {
	title = strings.Join(strings.Fields(strings.ReplaceAll(title, Separator, " ")), " ")
	if title == "" {
		return "Untitled"
	}
	return title
}

// Build renders sections in order, skipping sections without items. An
// empty aggregate yields domain.ErrNoContent.
func Build(sections []domain.Section) (*Builder, error) {
	b := &Builder{}
	for _, s := range sections {
		if len(s.Items) == 0 {
			continue
		}
		b.Section(s.Name)
		for _, it := range s.Items {
			b.Line(it.Title, it.URL)
		}
	}
	if b.Len() == 0 {
		return nil, domain.ErrNoContent
	}
	return b, nil
}
