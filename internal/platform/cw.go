package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
	"github.com/tidwall/gjson"
)

const cwBrightcoveAccount = "6206459123001"

// CareerWill accepts a token or "id*password" and exports every topic of a
// batch at once. The app key header ("cwkey") is operator supplied through
// PLATFORMS_FILE.
func CareerWill() *Platform {
	return &Platform{
		Key:     "cw",
		Name:    "CareerWill",
		BaseURL: "https://elearn.crwilladmin.com",
		Headers: func(token string) http.Header {
			h := http.Header{}
			h.Set("apptype", "android")
			h.Set("appver", "101")
			h.Set("user-agent", "okhttp/5.0.0-alpha.2")
			h.Set("token", token)
			if token != "" {
				h.Set("usertype", "2")
			}
			return h
		},
		Prompt: "Welcome to CareerWill Extractor!\n\n" +
			"Please enter your credentials in the following format:\n" +
			"1. For ID and Password: `id*password`\n" +
			"2. For Token: `token`",
		Login: &LoginSpec{
			Path: "/api/v8/login-other",
			JSON: true,
			Body: func(id, secret string) map[string]string {
				return map[string]string{
					"deviceType":    "android",
					"password":      secret,
					"deviceIMEI":    "47ec4ac17f45d738",
					"deviceModel":   "CPH1853",
					"deviceVersion": "27",
					"email":         id,
					"deviceToken":   "test_device_token",
				}
			},
			Token: "data.token",
		},
		Batches: ListingSpec{
			Path:  "/api/v8/my-batch",
			Items: "data.batchData",
			ID:    "id",
			Name:  "batchName",
		},
		Extract: extractCW,
	}
}

func extractCW(ctx context.Context, c *Client, req ExtractRequest) ([]domain.Section, error) {
	batch := map[string]string{"batch": req.Batch.ID}

	resp, err := c.Get(ctx, expand("/api/v8/batch-topic/{batch}", batch), url.Values{"type": {"class"}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(c.p, "batch-topic", resp.Status)
	}

	topics := resp.JSON.Get("data.batch_topic").Array()
	sections := make([]domain.Section, 0, len(topics))
	for _, topic := range topics {
		topicID := topic.Get("id").String()
		section := domain.Section{Name: strings.TrimSpace(topic.Get("topicName").String())}

		classes, err := cwClasses(ctx, c, batch, topicID)
		if err != nil {
			return nil, err
		}
		section.Items = append(section.Items, classes...)

		notesResp, err := c.Get(ctx, expand("/api/v8/batch-notes/{batch}", batch), url.Values{"topicId": {topicID}})
		if err != nil {
			return nil, err
		}
		if notesResp.OK() {
			section.Items = append(section.Items, notesItems(notesResp.JSON.Get("data.notesDetails").Array(), true)...)
		}

		sections = append(sections, section)
	}
	return sections, nil
}

func cwClasses(ctx context.Context, c *Client, batch map[string]string, topicID string) ([]domain.ContentItem, error) {
	resp, err := c.Get(ctx, expand("/api/v8/batch-detail/{batch}", batch), url.Values{
		"redirectBy": {"mybatch"},
		"topicId":    {topicID},
		"pToken":     {""},
		"chapterId":  {"0"},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var out []domain.ContentItem
	for _, cls := range resp.JSON.Get("data.class_list.classes").Array() {
		item, ok, err := cwClass(ctx, c, cls)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func cwClass(ctx context.Context, c *Client, cls gjson.Result) (domain.ContentItem, bool, error) {
	title := cls.Get("lessonName").String()

	switch cls.Get("lessonExt").String() {
	case lessonBrightcove:
		// The listing's lessonUrl is not the playable id; class-detail carries it.
		resp, err := c.Get(ctx, expand("/api/v8/class-detail/{class}", map[string]string{"class": cls.Get("id").String()}), nil)
		if err != nil {
			return domain.ContentItem{}, false, err
		}
		lessonURL := strings.TrimSpace(resp.JSON.Get("data.class_detail.lessonUrl").String())
		if !resp.OK() || lessonURL == "" {
			return domain.ContentItem{}, false, nil
		}
		return domain.ContentItem{
			Title: title,
			URL:   c.p.Rewrite(brightcoveURL("v1", cwBrightcoveAccount, lessonURL, c.token)),
			Kind:  domain.ContentVideo,
		}, true, nil

	case lessonYouTube:
		lessonURL := strings.TrimSpace(cls.Get("lessonUrl").String())
		if lessonURL == "" {
			return domain.ContentItem{}, false, nil
		}
		return domain.ContentItem{Title: title, URL: youtubeURL(lessonURL), Kind: domain.ContentVideo}, true, nil
	}
	return domain.ContentItem{}, false, nil
}
