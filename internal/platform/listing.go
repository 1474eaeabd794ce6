package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ListingSpec describes a JSON listing endpoint. Items, ID, Name and Price
// are gjson paths; an empty Items path means the body itself is the array.
type ListingSpec struct {
	Path  string
	Query url.Values
	Paged bool
	Items string
	ID    string
	Name  string
	Price string
}

func (s ListingSpec) items(body gjson.Result) []gjson.Result {
	if s.Items == "" {
		return body.Array()
	}
	return body.Get(s.Items).Array()
}

// Paginate calls fetch with pages 1, 2, ... and stops at the first empty
// page or the first error. Whatever was accumulated is always returned.
func Paginate[T any](ctx context.Context, fetch func(ctx context.Context, page int) ([]T, error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, goerr.Wrap(err, "pagination cancelled", goerr.V("page", page))
		}
		items, err := fetch(ctx, page)
		if err != nil {
			return all, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}

// ListBatches returns the user's batches. A 401 yields ErrInvalidToken; any
// other non-success status ends the listing with what was gathered so far.
func (c *Client) ListBatches(ctx context.Context) ([]domain.BatchSummary, error) {
	spec := c.p.Batches

	fetch := func(ctx context.Context, page int) ([]domain.BatchSummary, error) {
		query := cloneQuery(spec.Query)
		if spec.Paged {
			query.Set("page", strconv.Itoa(page))
		}
		resp, err := c.Get(ctx, spec.Path, query)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized {
			return nil, goerr.Wrap(domain.ErrInvalidToken, "batch listing rejected token",
				goerr.T(domain.TagAuthFailure),
				goerr.V("platform", c.p.Key))
		}
		if !resp.OK() {
			return nil, nil
		}
		return decodeBatches(spec, spec.items(resp.JSON)), nil
	}

	if !spec.Paged {
		return fetch(ctx, 1)
	}
	return Paginate(ctx, fetch)
}

// ListSubjects fetches a batch's subjects in one call. Failures read as "no
// subjects".
func (c *Client) ListSubjects(ctx context.Context, batchID string) ([]domain.SubjectSummary, error) {
	if c.p.Subjects == nil {
		return nil, nil
	}
	spec := *c.p.Subjects

	resp, err := c.Get(ctx, expand(spec.Path, map[string]string{"batch": batchID}), cloneQuery(spec.Query))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return []domain.SubjectSummary{}, nil
	}

	items := spec.items(resp.JSON)
	subjects := make([]domain.SubjectSummary, 0, len(items))
	for _, it := range items {
		id := it.Get(spec.ID).String()
		if id == "" {
			continue
		}
		subjects = append(subjects, domain.SubjectSummary{
			ID:   id,
			Name: strings.TrimSpace(it.Get(spec.Name).String()),
		})
	}
	return subjects, nil
}

func decodeBatches(spec ListingSpec, items []gjson.Result) []domain.BatchSummary {
	out := make([]domain.BatchSummary, 0, len(items))
	for _, it := range items {
		id := it.Get(spec.ID).String()
		if id == "" {
			continue
		}
		b := domain.BatchSummary{
			ID:   id,
			Name: strings.TrimSpace(it.Get(spec.Name).String()),
		}
		if spec.Price != "" {
			if p := it.Get(spec.Price); p.Exists() && p.Type != gjson.Null {
				if d, err := decimal.NewFromString(p.String()); err == nil {
					b.Price = decimal.NewNullDecimal(d)
				}
			}
		}
		out = append(out, b)
	}
	return out
}

func cloneQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
