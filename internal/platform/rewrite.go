package platform

import (
	"net/url"
	"strings"
)

// Rewrite swaps a source host fragment and optionally the path extension.
// It fires only when Match occurs in the URL, so applying it to its own
// output changes nothing.
type Rewrite struct {
	Match   string
	Replace string
	FromExt string
	ToExt   string
}

func (r Rewrite) Apply(u string) string {
	u = strings.TrimSpace(u)
	if r.Match == "" || !strings.Contains(u, r.Match) {
		return u
	}
	out := strings.ReplaceAll(u, r.Match, r.Replace)
	if r.FromExt != "" && r.ToExt != "" {
		out = swapExt(out, r.FromExt, r.ToExt)
	}
	return out
}

// swapExt replaces a trailing path extension, leaving query and fragment
// untouched.
func swapExt(raw, from, to string) string {
	parsed, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(parsed.Path, from) {
		return raw
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, from) + to
	parsed.RawPath = ""
	return parsed.String()
}

// escapeURL percent-encodes characters such as spaces that upstreams leave
// raw in document links.
func escapeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ReplaceAll(raw, " ", "%20")
	}
	return parsed.String()
}
