package platform

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
)

// KhanGS asks for the login method first, then the user id, then the
// password or token.
func KhanGS() *Platform {
	return &Platform{
		Key:     "kgs",
		Name:    "Khan Global Studies",
		BaseURL: "https://khanglobalstudies.com",
		Headers: func(token string) http.Header {
			h := http.Header{}
			h.Set("user-agent", "okhttp/3.9.1")
			if token != "" {
				h.Set("authorization", "Bearer "+token)
			}
			return h
		},
		LoginChoice: true,
		Prompt: "Welcome to KGS Extractor!\n\n" +
			"Choose Login Method:\n" +
			"1. Login with ID and Password\n" +
			"2. Login with Token",
		Login: &LoginSpec{
			Path: "/api/login-with-password",
			Body: func(id, secret string) map[string]string {
				return map[string]string{"phone": id, "password": secret}
			},
			Token: "token",
		},
		Batches: ListingSpec{
			Path: "/api/user/v2/courses",
			ID:   "id",
			Name: "title",
		},
		Extract: extractKGS,
	}
}

func extractKGS(ctx context.Context, c *Client, req ExtractRequest) ([]domain.Section, error) {
	path := expand("/api/user/courses/{batch}/v2-lessons", map[string]string{"batch": req.Batch.ID})
	resp, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(c.p, "v2-lessons", resp.Status)
	}

	section := domain.Section{Name: req.Batch.Name}
	for _, lesson := range resp.JSON.Array() {
		lessonID := lesson.Get("id").String()
		lr, err := c.Get(ctx, expand("/api/lessons/{lesson}", map[string]string{"lesson": lessonID}), nil)
		if err != nil {
			// One broken lesson does not abort the batch.
			slog.Warn("lesson fetch failed", "platform", c.p.Key, "lesson_id", lessonID, "error", err)
			continue
		}
		if !lr.OK() {
			continue
		}
		for _, v := range lr.JSON.Get("videos").Array() {
			u := strings.TrimSpace(v.Get("video_url").String())
			if u == "" {
				continue
			}
			title := v.Get("name").String()
			if title == "" {
				title = "Untitled"
			}
			section.Items = append(section.Items, domain.ContentItem{
				Title: title,
				URL:   c.p.Rewrite(u),
				Kind:  domain.ContentVideo,
			})
		}
	}
	return []domain.Section{section}, nil
}
