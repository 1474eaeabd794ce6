package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/set-night/batchtxt/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	pwClientID = "5eb393ee95fab7468a79d189"

	PWLectures    = "exercises-notes-videos"
	PWNotes       = "notes"
	PWDppNotes    = "DppNotes"
	PWDppSolution = "DppSolution"
)

// pwPlayable turns DppSolution manifests from the source CDN into HLS
// playlists on the playback CDN. Operator rewrites are appended after it.
var pwPlayable = Rewrite{
	Match:   "d1d34p8vz63oiq",
	Replace: "d26g5bnklkwsh4",
	FromExt: ".mpd",
	ToExt:   ".m3u8",
}

// PhysicsWallah is token based; OTP login is offered when clientSecret is set.
func PhysicsWallah(clientSecret string) *Platform {
	p := &Platform{
		Key:     "pw",
		Name:    "Physics Wallah",
		BaseURL: "https://api.penpencil.xyz",
		Headers: func(token string) http.Header {
			h := http.Header{}
			h.Set("client-id", pwClientID)
			h.Set("user-agent", "Android")
			if token != "" {
				h.Set("authorization", "Bearer "+token)
			}
			return h
		},
		Prompt: "Send your PW authentication token:",
		Batches: ListingSpec{
			Path:  "/v3/batches/my-batches",
			Query: url.Values{"mode": {"1"}},
			Paged: true,
			Items: "data",
			ID:    "_id",
			Name:  "name",
			Price: "feeId.total",
		},
		Subjects: &ListingSpec{
			Path:  "/v3/batches/{batch}/details",
			Items: "data.subjects",
			ID:    "_id",
			Name:  "subject",
		},
		ContentTypes: []domain.ContentType{
			{Key: PWLectures, Label: "Exercises"},
			{Key: PWNotes, Label: "Notes"},
			{Key: PWDppNotes, Label: "DppNotes"},
			{Key: PWDppSolution, Label: "DppSolution"},
		},
		ContentButtons: true,
		Extract:        extractPW,
		Rewrites:       []Rewrite{pwPlayable},
	}

	if clientSecret != "" {
		p.Prompt = "Send your PW authentication token, or your phone number to log in with an OTP:"
		p.OTP = &OTPSpec{
			SendPath: "/v1/users/get-otp?smsType=0",
			SendBody: func(phone string) map[string]any {
				return map[string]any{
					"username":       phone,
					"countryCode":    "+91",
					"organizationId": pwClientID,
				}
			},
			VerifyPath: "/v3/oauth/token",
			VerifyBody: func(phone, otp string) map[string]any {
				return map[string]any{
					"username":       phone,
					"otp":            otp,
					"client_id":      "system-admin",
					"client_secret":  clientSecret,
					"grant_type":     "password",
					"organizationId": pwClientID,
					"latitude":       0,
					"longitude":      0,
				}
			},
			Token: "data.access_token",
		}
	}
	return p
}

func extractPW(ctx context.Context, c *Client, req ExtractRequest) ([]domain.Section, error) {
	sections := make([]domain.Section, 0, len(req.Subjects))

	for _, subject := range req.Subjects {
		path := expand("/v2/batches/{batch}/subject/{subject}/contents", map[string]string{
			"batch":   req.Batch.ID,
			"subject": subject.ID,
		})

		items, err := Paginate(ctx, func(ctx context.Context, page int) ([]gjson.Result, error) {
			resp, err := c.Get(ctx, path, url.Values{
				"page":        {strconv.Itoa(page)},
				"contentType": {req.ContentType},
			})
			if err != nil {
				return nil, err
			}
			if !resp.OK() {
				return nil, nil
			}
			return resp.JSON.Get("data").Array(), nil
		})
		if err != nil {
			return nil, err
		}

		section := domain.Section{Name: subject.Name}
		for _, item := range items {
			section.Items = append(section.Items, pwItems(c.p, req.ContentType, item)...)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func pwItems(p *Platform, contentType string, item gjson.Result) []domain.ContentItem {
	switch contentType {
	case PWLectures:
		u := strings.TrimSpace(item.Get("url").String())
		if u == "" {
			return nil
		}
		return []domain.ContentItem{{Title: item.Get("topic").String(), URL: p.Rewrite(u), Kind: domain.ContentVideo}}

	case PWNotes:
		hw := item.Get("homeworkIds.0")
		if att, ok := pwAttachment(hw); ok {
			return []domain.ContentItem{{Title: hw.Get("topic").String(), URL: att, Kind: domain.ContentDocument}}
		}

	case PWDppNotes:
		var out []domain.ContentItem
		for _, hw := range item.Get("homeworkIds").Array() {
			if att, ok := pwAttachment(hw); ok {
				out = append(out, domain.ContentItem{Title: hw.Get("topic").String(), URL: att, Kind: domain.ContentDocument})
			}
		}
		return out

	case PWDppSolution:
		u := strings.TrimSpace(item.Get("url").String())
		if u == "" {
			return nil
		}
		return []domain.ContentItem{{Title: item.Get("topic").String(), URL: p.Rewrite(u), Kind: domain.ContentVideo}}
	}
	return nil
}

// pwAttachment joins base URL and key of a homework's first attachment.
func pwAttachment(hw gjson.Result) (string, bool) {
	att := hw.Get("attachmentIds.0")
	if !att.Exists() {
		return "", false
	}
	u := att.Get("baseUrl").String() + att.Get("key").String()
	if u == "" {
		return "", false
	}
	return strings.TrimSpace(u), true
}
