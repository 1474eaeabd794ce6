// Package platform talks to the upstream e-learning APIs. Every platform is a
// Platform definition driven by one generic Client: the definitions only carry
// endpoints, header shapes, JSON paths and the per-platform extraction walk.
package platform

import (
	"context"
	"net/http"
	"sort"

	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
)

// ExtractRequest is everything an extraction walk needs from the session.
type ExtractRequest struct {
	Batch       domain.BatchSummary
	Subjects    []domain.SubjectSummary
	ContentType string
}

// Extractor walks a batch and returns the report sections in display order.
type Extractor func(ctx context.Context, c *Client, req ExtractRequest) ([]domain.Section, error)

type Platform struct {
	Key     string
	Name    string
	BaseURL string

	// Headers builds the request headers; token is empty for login calls.
	Headers func(token string) http.Header
	// Extra are operator supplied headers added to every call.
	Extra map[string]string

	Login *LoginSpec
	OTP   *OTPSpec
	// LoginChoice asks "1 password / 2 token", then the user id, then the secret.
	LoginChoice bool
	Prompt      string

	Batches  ListingSpec
	Subjects *ListingSpec

	ContentTypes []domain.ContentType
	// ContentButtons offers ContentTypes as inline buttons instead of typed text.
	ContentButtons bool

	Extract  Extractor
	Rewrites []Rewrite
}

// FindContentType reports whether key is one of the platform's content types.
func (p *Platform) FindContentType(key string) (domain.ContentType, bool) {
	for _, ct := range p.ContentTypes {
		if ct.Key == key {
			return ct, true
		}
	}
	return domain.ContentType{}, false
}

// Rewrite applies every rewrite rule of the platform to u.
func (p *Platform) Rewrite(u string) string {
	for _, r := range p.Rewrites {
		u = r.Apply(u)
	}
	return u
}

func (p *Platform) header(token string) http.Header {
	h := http.Header{}
	if p.Headers != nil {
		h = p.Headers(token)
	}
	for k, v := range p.Extra {
		h.Set(k, v)
	}
	return h
}

// Registry holds the enabled platforms keyed by their command name.
type Registry struct {
	platforms map[string]*Platform
}

// NewRegistry builds the built-in platforms and applies operator overrides.
func NewRegistry(cfg *config.Config, overrides map[string]config.PlatformOverride) *Registry {
	all := []*Platform{
		PhysicsWallah(cfg.PWOAuthClientSecret),
		ApniKaksha(),
		CareerWill(),
		KhanGS(),
	}

	r := &Registry{platforms: make(map[string]*Platform, len(all))}
	for _, p := range all {
		o, ok := overrides[p.Key]
		if ok {
			if o.Disabled {
				continue
			}
			applyOverride(p, o)
		}
		r.platforms[p.Key] = p
	}
	return r
}

func applyOverride(p *Platform, o config.PlatformOverride) {
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	if len(o.Headers) > 0 {
		if p.Extra == nil {
			p.Extra = map[string]string{}
		}
		for k, v := range o.Headers {
			p.Extra[k] = v
		}
	}
	for _, rr := range o.Rewrites {
		p.Rewrites = append(p.Rewrites, Rewrite{
			Match:   rr.Match,
			Replace: rr.Replace,
			FromExt: rr.FromExt,
			ToExt:   rr.ToExt,
		})
	}
}

func (r *Registry) Get(key string) (*Platform, bool) {
	p, ok := r.platforms[key]
	return p, ok
}

// Keys returns the enabled platform keys in stable order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.platforms))
	for k := range r.platforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
