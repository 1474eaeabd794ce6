package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/tidwall/gjson"
)

// Observer receives one call per upstream response (status 0 on transport error).
type Observer interface {
	ObserveUpstream(platform string, status int)
}

// Response is an upstream reply with its body parsed for gjson lookups.
type Response struct {
	Status int
	JSON   gjson.Result
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client performs authenticated calls against one platform. A Client is
// bound to a single session's token and is cheap to create.
type Client struct {
	p     *Platform
	hc    *http.Client
	token string
	obs   Observer
}

func NewClient(p *Platform, hc *http.Client, obs Observer) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{p: p, hc: hc, obs: obs}
}

// WithToken returns a copy of c authenticated with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Platform() *Platform { return c.p }

func (c *Client) Token() string { return c.token }

// Get issues an authenticated GET. path is relative to the platform base URL
// unless it is absolute.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "", c.token)
}

// PostForm issues an unauthenticated form POST, as login endpoints expect.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "")
}

// PostJSON issues an unauthenticated JSON POST.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode request body", goerr.V("path", path))
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", "")
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = strings.TrimRight(c.p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType, token string) (*Response, error) {
	target := c.resolve(path, query)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("platform", c.p.Key), goerr.V("path", path))
	}
	req.Header = c.p.header(token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.observe(0)
		return nil, goerr.Wrap(err, "upstream request failed",
			goerr.T(domain.TagUpstream),
			goerr.V("platform", c.p.Key),
			goerr.V("path", path))
	}
	defer resp.Body.Close()
	c.observe(resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read upstream response",
			goerr.T(domain.TagUpstream),
			goerr.V("platform", c.p.Key),
			goerr.V("path", path))
	}

	out := &Response{Status: resp.StatusCode}
	if gjson.ValidBytes(data) {
		out.JSON = gjson.ParseBytes(data)
	}
	return out, nil
}

func (c *Client) observe(status int) {
	if c.obs != nil {
		c.obs.ObserveUpstream(c.p.Key, status)
	}
}

// expand substitutes {name} placeholders in path with escaped values.
func expand(path string, vars map[string]string) string {
	for k, v := range vars {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	return path
}

func statusError(p *Platform, path string, status int) error {
	return goerr.New(fmt.Sprintf("unexpected status %d", status),
		goerr.T(domain.TagUpstream),
		goerr.V("platform", p.Key),
		goerr.V("path", path))
}
