package platform

import (
	"fmt"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	lessonBrightcove = "brightcove"
	lessonYouTube    = "youtube"
)

func brightcoveURL(version, account, videoID, auth string) string {
	return fmt.Sprintf("https://edge.api.brightcove.com/playback/%s/accounts/%s/videos/%s/master.m3u8?bcov_auth=%s",
		version, account, videoID, auth)
}

func youtubeURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// notesItems reads a "notesDetails" style array of {docTitle, docUrl}.
func notesItems(notes []gjson.Result, escape bool) []domain.ContentItem {
	out := make([]domain.ContentItem, 0, len(notes))
	for _, n := range notes {
		u := strings.TrimSpace(n.Get("docUrl").String())
		if u == "" {
			continue
		}
		if escape {
			u = escapeURL(u)
		}
		out = append(out, domain.ContentItem{
			Title: n.Get("docTitle").String(),
			URL:   u,
			Kind:  domain.ContentDocument,
		})
	}
	return out
}
