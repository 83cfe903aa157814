package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// =============================================================================
// PAGINATION STRATEGIES
// =============================================================================

// Paginator produces successive page requests.
type Paginator interface {
	// FirstPage returns the request for the first page.
	FirstPage() *Request
	// NextPage returns the next request given the last response and the
	// number of items it carried, or nil when there are no more pages.
	NextPage(resp *Response, received int) (*Request, error)
}

// Collect walks pages until the paginator is exhausted, a page comes back
// empty, or limit items have been gathered. limit <= 0 means no limit.
func Collect[T any](ctx context.Context, c *Client, p Paginator, limit int, parse func(*Response) ([]T, error)) ([]T, error) {
	var out []T
	req := p.FirstPage()
	for req != nil {
		resp, err := c.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		items, err := parse(resp)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		out = append(out, items...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if req, err = p.NextPage(resp, len(items)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// =============================================================================
// OFFSET PAGINATION
// =============================================================================

// OffsetPaginator uses offset/limit pagination with a server-reported total
// (Jira's startAt/maxResults/total).
type OffsetPaginator struct {
	Path      string
	PageSize  int
	Offset    int
	Query     url.Values // extra query parameters sent on every page
	OffsetKey string     // Query param name (default: "startAt")
	LimitKey  string     // Query param name (default: "maxResults")
	TotalKey  string     // JSON field with the total count (default: "total")
	total     int
}

// NewOffsetPaginator creates a new offset-based paginator.
func NewOffsetPaginator(path string, pageSize int, query url.Values) *OffsetPaginator {
	return &OffsetPaginator{
		Path:      path,
		PageSize:  pageSize,
		Query:     query,
		OffsetKey: "startAt",
		LimitKey:  "maxResults",
		TotalKey:  "total",
	}
}

// FirstPage returns the request for the current offset.
func (p *OffsetPaginator) FirstPage() *Request {
	query := cloneValues(p.Query)
	query.Set(p.OffsetKey, strconv.Itoa(p.Offset))
	query.Set(p.LimitKey, strconv.Itoa(p.PageSize))
	return &Request{
		Method: http.MethodGet,
		Path:   p.Path,
		Query:  query,
	}
}

// NextPage advances the offset and stops once it reaches the reported total.
func (p *OffsetPaginator) NextPage(resp *Response, received int) (*Request, error) {
	var data map[string]any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, err
	}
	if total, ok := data[p.TotalKey].(float64); ok {
		p.total = int(total)
	}

	p.Offset += received
	if p.Offset >= p.total {
		return nil, nil
	}
	return p.FirstPage(), nil
}

// Total returns the last total reported by the server.
func (p *OffsetPaginator) Total() int { return p.total }

// =============================================================================
// PAGE-NUMBER PAGINATION
// =============================================================================

// PagePaginator uses 1-based page/per_page pagination (GitHub, GitLab).
// It stops when a page comes back empty.
type PagePaginator struct {
	Path     string
	PerPage  int
	Page     int
	Query    url.Values
	PageKey  string // default: "page"
	LimitKey string // default: "per_page"
}

// NewPagePaginator creates a page-number paginator starting at page 1.
func NewPagePaginator(path string, perPage int, query url.Values) *PagePaginator {
	return &PagePaginator{
		Path:     path,
		PerPage:  perPage,
		Page:     1,
		Query:    query,
		PageKey:  "page",
		LimitKey: "per_page",
	}
}

// FirstPage returns the request for the current page.
func (p *PagePaginator) FirstPage() *Request {
	query := cloneValues(p.Query)
	query.Set(p.PageKey, strconv.Itoa(p.Page))
	query.Set(p.LimitKey, strconv.Itoa(p.PerPage))
	return &Request{
		Method: http.MethodGet,
		Path:   p.Path,
		Query:  query,
	}
}

// NextPage requests the following page.
func (p *PagePaginator) NextPage(_ *Response, received int) (*Request, error) {
	if received == 0 {
		return nil, nil
	}
	p.Page++
	return p.FirstPage(), nil
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// PageSize caps limit to ceiling, treating limit <= 0 as ceiling.
func PageSize(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}
