package htmlreport_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/htmlreport"
	"github.com/set-night/batchtxt/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "=== Subject: Algebra ===\n\n" +
		"Algebra: https://cdn.x/doc1.pdf\n" +
		"   \n" +
		"no separator here\n" +
		"Physics 12: Kinematics: https://v.example/a/master.m3u8\n" +
		"Empty url:   \n"

	got := htmlreport.Parse(text)
	assert.Equal(t, []htmlreport.Entry{
		{Title: "Algebra", URL: "https://cdn.x/doc1.pdf"},
		{Title: "Physics 12: Kinematics", URL: "https://v.example/a/master.m3u8"},
	}, got)
}

func TestClassify(t *testing.T) {
	tests := map[string]htmlreport.Category{
		"https://x/a.pdf":                         htmlreport.CategoryDocument,
		"https://x/A.PDF?download=1":              htmlreport.CategoryDocument,
		"https://x/v/master.mpd":                  htmlreport.CategoryVideo,
		"https://x/v/master.m3u8?bcov_auth=a.pdf": htmlreport.CategoryVideo,
		"https://x/v.mp4":                         htmlreport.CategoryVideo,
		"https://x/v.webm":                        htmlreport.CategoryVideo,
		"https://www.youtube.com/embed/abc":       htmlreport.CategoryOther,
		"not a url":                               htmlreport.CategoryOther,
	}
	for u, want := range tests {
		assert.Equal(t, want, htmlreport.Classify(u), u)
	}
}

func TestCourseName(t *testing.T) {
	tests := map[string]string{
		"Physics 12: Kinematics": "Physics",
		"Physics 12 Kinematics":  "Physics",
		"Organic Chemistry 3":    "Organic Chemistry",
		"Lecture12 Intro":        "Other",
		"12 Angry Men":           "Other",
		"No numbers at all":      "Other",
		"":                       "Other",
	}
	for title, want := range tests {
		assert.Equal(t, want, htmlreport.CourseName(title), title)
	}
}

func TestGroup_EveryEntryInExactlyOneBucket(t *testing.T) {
	b, err := report.Build([]domain.Section{
		{Name: "Physics", Items: []domain.ContentItem{
			{Title: "Physics 1: Motion", URL: "https://cdn.x/p1.pdf"},
			{Title: "Physics 2", URL: "https://cdn.x/p2/master.mpd"},
			{Title: "Physics 3", URL: "https://www.youtube.com/embed/zz"},
		}},
		{Name: "Maths", Items: []domain.ContentItem{
			{Title: "Maths 1", URL: "https://cdn.x/m1.m3u8"},
			{Title: "Sets", URL: "https://cdn.x/sets.pdf"},
		}},
	})
	require.NoError(t, err)

	entries := htmlreport.Parse(b.String())
	require.Len(t, entries, b.Len())

	page := htmlreport.Group(entries, htmlreport.Options{})
	seen := map[string]int{}
	total := 0
	for _, tab := range page.Tabs {
		for _, c := range tab.Courses {
			for _, it := range c.Items {
				seen[it.Title]++
				total++
			}
		}
	}
	assert.Equal(t, len(entries), total)
	for _, e := range entries {
		assert.Equal(t, 1, seen[e.Title], e.Title)
	}

	require.Len(t, page.Tabs, 3)
	assert.Equal(t, 2, page.Tabs[0].Count)
	assert.Equal(t, 2, page.Tabs[1].Count)
	assert.Equal(t, 1, page.Tabs[2].Count)
}

func TestGroup_PlayerTemplate(t *testing.T) {
	entries := []htmlreport.Entry{
		{Title: "Lecture 1", URL: "https://d1.cloudfront.example/abc-123/master.mpd"},
		{Title: "Lecture 2", URL: "https://d1.cloudfront.example/abc-123/other.mpd"},
	}

	page := htmlreport.Group(entries, htmlreport.Options{
		PlayerTemplate: "https://player.example/{id}/master.m3u8?token={token}",
	})
	videos := page.Tabs[1].Courses
	require.Len(t, videos, 1)
	require.Len(t, videos[0].Items, 2)

	first := videos[0].Items[0]
	assert.Equal(t, "https://player.example/abc-123/master.m3u8?token={token}", first.URL)
	assert.Equal(t, entries[0].URL, first.OriginalURL)
	assert.True(t, page.NeedsToken)

	assert.Equal(t, entries[1].URL, videos[0].Items[1].URL)
	assert.Empty(t, videos[0].Items[1].OriginalURL)

	page = htmlreport.Group(entries, htmlreport.Options{PlayerTemplate: htmlreport.PlayerDisabled})
	assert.Equal(t, entries[0].URL, page.Tabs[1].Courses[0].Items[0].URL)
	assert.False(t, page.NeedsToken)
}

func TestConvert_DefaultPlayer(t *testing.T) {
	out, n, err := htmlreport.Convert("Lecture 1: https://d1.cloudfront.example/abc-123/master.mpd\n", htmlreport.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)

	video := doc.Find("#videoSection a")
	require.Equal(t, 1, video.Length())
	assert.Equal(t, "https://madxapi-d0cbf6ac738c.herokuapp.com/abc-123/master.m3u8?token={token}",
		video.AttrOr("data-template", ""))
	assert.Equal(t, 1, doc.Find("#tokenModal").Length())
}

func TestRender_HTML(t *testing.T) {
	text := "Physics 1: https://cdn.x/p1.pdf\n" +
		"Physics 2: https://d1.example/vid9/master.mpd\n" +
		"Chemistry 1: https://cdn.x/c1.pdf\n" +
		"<b>x</b> 1: https://cdn.x/evil.pdf\n"

	out, n, err := htmlreport.Convert(text, htmlreport.Options{
		Title:          "Math101",
		PlayerTemplate: "https://player.example/{id}/master.m3u8?token={token}",
		GeneratedAt:    time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, "Math101", doc.Find("title").Text())
	assert.Contains(t, doc.Find("header small").Text(), "2026-01-02 03:04 UTC")
	assert.Equal(t, 3, doc.Find(".tab").Length())

	pdf := doc.Find("#pdfSection .course-accordion")
	assert.Equal(t, 3, pdf.Length())
	var courses []string
	pdf.Each(func(_ int, s *goquery.Selection) {
		courses = append(courses, s.AttrOr("data-course", ""))
	})
	assert.Equal(t, []string{"<b>x</b>", "Chemistry", "Physics"}, courses)

	video := doc.Find("#videoSection a")
	require.Equal(t, 1, video.Length())
	assert.Equal(t, "https://d1.example/vid9/master.mpd", video.AttrOr("href", ""))
	assert.Equal(t, "https://player.example/vid9/master.m3u8?token={token}", video.AttrOr("data-template", ""))

	assert.Equal(t, 1, doc.Find("#otherSection .empty").Length())
	assert.Equal(t, 1, doc.Find("#tokenModal").Length())

	// Titles are escaped, never injected as markup.
	assert.Equal(t, 0, doc.Find("b").Length())
	assert.Equal(t, 1, doc.Find("script").Length())
	assert.Contains(t, doc.Find("script").Text(), "contentData")
}

func TestRender_Deterministic(t *testing.T) {
	text := "B 1: https://x/b.pdf\nA 1: https://x/a.pdf\nC: https://x/c.mp4\n"
	opts := htmlreport.Options{GeneratedAt: time.Unix(0, 0)}

	first, _, err := htmlreport.Convert(text, opts)
	require.NoError(t, err)
	second, _, err := htmlreport.Convert(text, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), "<!DOCTYPE html>"))
}
