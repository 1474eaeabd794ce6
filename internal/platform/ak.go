package platform

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	akBrightcoveAccount = "6415636611001"

	AKClass = "class"
	AKNotes = "notes"
)

// ApniKaksha accepts a token or "email*password".
func ApniKaksha() *Platform {
	return &Platform{
		Key:     "ak",
		Name:    "Apni Kaksha",
		BaseURL: "https://spec.apnikaksha.net",
		Headers: func(token string) http.Header {
			h := http.Header{}
			h.Set("origintype", "web")
			h.Set("Accept", "application/json")
			if token != "" {
				h.Set("token", token)
				h.Set("user-agent", "Android")
				h.Set("usertype", "2")
			}
			return h
		},
		Prompt: "Choose your login method:\n\n" +
			"1. Login with Email and Password (format: `email*password`)\n" +
			"2. Login with Token (send the token directly)",
		Login: &LoginSpec{
			Path: "/api/v2/login-other",
			Body: func(id, secret string) map[string]string {
				return map[string]string{
					"email":         id,
					"password":      secret,
					"type":          "kkweb",
					"deviceType":    "web",
					"deviceVersion": "Chrome 133",
					"deviceModel":   "chrome",
				}
			},
			Token: "data.token",
			Accept: func(r *Response) bool {
				return r.JSON.Get("responseCode").Int() == 200
			},
		},
		Batches: ListingSpec{
			Path:  "/api/v2/my-batch",
			Items: "data.batchData",
			ID:    "id",
			Name:  "batchName",
		},
		Subjects: &ListingSpec{
			Path:  "/api/v2/batch-subject/{batch}",
			Items: "data.batch_subject",
			ID:    "id",
			Name:  "subjectName",
		},
		ContentTypes: []domain.ContentType{
			{Key: AKClass, Label: "Videos"},
			{Key: AKNotes, Label: "Notes"},
		},
		Extract: extractAK,
	}
}

func extractAK(ctx context.Context, c *Client, req ExtractRequest) ([]domain.Section, error) {
	sections := make([]domain.Section, 0, len(req.Subjects))

	for _, subject := range req.Subjects {
		section := domain.Section{Name: subject.Name}

		resp, err := c.Get(ctx, expand("/api/v2/batch-topic/{subject}", map[string]string{"subject": subject.ID}),
			url.Values{"type": {req.ContentType}})
		if err != nil {
			return nil, err
		}
		topics := resp.JSON.Get("data.batch_topic")
		if !resp.OK() || !topics.Exists() {
			sections = append(sections, section)
			continue
		}

		for _, topic := range topics.Array() {
			query := url.Values{
				"subjectId": {subject.ID},
				"topicId":   {topic.Get("id").String()},
			}

			var items []domain.ContentItem
			switch req.ContentType {
			case AKClass:
				items, err = akClasses(ctx, c, req.Batch.ID, query)
			case AKNotes:
				items, err = akNotes(ctx, c, req.Batch.ID, query)
			}
			if err != nil {
				return nil, err
			}
			section.Items = append(section.Items, items...)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func akClasses(ctx context.Context, c *Client, batchID string, query url.Values) ([]domain.ContentItem, error) {
	resp, err := c.Get(ctx, expand("/api/v2/batch-detail/{batch}", map[string]string{"batch": batchID}), query)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var out []domain.ContentItem
	for _, cls := range resp.JSON.Get("data.class_list.classes").Array() {
		item, ok, err := akClass(ctx, c, cls)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func akClass(ctx context.Context, c *Client, cls gjson.Result) (domain.ContentItem, bool, error) {
	lessonURL := strings.TrimSpace(cls.Get("lessonUrl").String())
	title := cls.Get("lessonName").String()
	if lessonURL == "" {
		return domain.ContentItem{}, false, nil
	}

	switch cls.Get("lessonExt").String() {
	case lessonBrightcove:
		// The class id is traded for a short lived playback token.
		resp, err := c.Get(ctx, "/api/v2/livestreamToken", url.Values{
			"base":   {"web"},
			"module": {"batch"},
			"type":   {lessonBrightcove},
			"vid":    {cls.Get("id").String()},
		})
		if err != nil {
			return domain.ContentItem{}, false, err
		}
		token := resp.JSON.Get("data.token").String()
		if !resp.OK() || token == "" {
			slog.Debug("no playback token for class", "platform", c.p.Key, "class_id", cls.Get("id").String())
			return domain.ContentItem{}, false, nil
		}
		return domain.ContentItem{
			Title: title,
			URL:   c.p.Rewrite(brightcoveURL("v2", akBrightcoveAccount, lessonURL, token)),
			Kind:  domain.ContentVideo,
		}, true, nil

	case lessonYouTube:
		return domain.ContentItem{Title: title, URL: youtubeURL(lessonURL), Kind: domain.ContentVideo}, true, nil
	}
	return domain.ContentItem{}, false, nil
}

func akNotes(ctx context.Context, c *Client, batchID string, query url.Values) ([]domain.ContentItem, error) {
	resp, err := c.Get(ctx, expand("/api/v2/batch-notes/{batch}", map[string]string{"batch": batchID}), query)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}
	return notesItems(resp.JSON.Get("data.notesDetails").Array(), false), nil
}
