package canvas

import (
	"context"
	"net/url"

	"github.com/tomnomnom/linkheader"
)

// Pages is a forward-only sequence over the pages of a Canvas collection.
//
// Usage:
//
//	pages := client.FetchPages(url)
//	for pages.Next(ctx) {
//	    handle(pages.Page())
//	}
//	if err := pages.Err(); err != nil {
//	    return err
//	}
//
// Pages are fetched strictly one after another because each page's URL comes
// from the previous response. A Pages value cannot be restarted.
type Pages struct {
	client *Client
	next   string
	query  url.Values
	seen   map[string]struct{}
	page   *Response
	err    error
}

// FetchPages returns the page sequence starting at rawURL. Nothing is
// fetched until the first call to Next.
func (c *Client) FetchPages(rawURL string) *Pages {
	p := &Pages{
		client: c,
		next:   rawURL,
		seen:   make(map[string]struct{}),
	}
	if u, err := url.Parse(rawURL); err == nil {
		p.query = u.Query()
	}
	return p
}

// Next fetches the next page. It returns false when the collection is
// exhausted or a fetch failed; check Err to tell the two apart.
func (p *Pages) Next(ctx context.Context) bool {
	if p.err != nil || p.next == "" {
		p.page = nil
		return false
	}

	current := p.next
	p.seen[current] = struct{}{}
	p.next = ""

	resp, err := p.client.FetchOne(ctx, current)
	if err != nil {
		p.err = err
		p.page = nil
		return false
	}
	p.page = resp
	p.next = p.nextURL(resp)
	return true
}

// Page returns the page fetched by the last successful call to Next.
func (p *Pages) Page() *Response {
	return p.page
}

// Err returns the error that stopped the sequence, if any.
func (p *Pages) Err() error {
	return p.err
}

// nextURL reads the Link header of resp and returns the URL of the next
// page, or "" when resp is the last page.
//
// The sequence ends when there is no rel="next", or when rel="current" equals
// rel="last". Canvas omits rel="last" on collections too expensive to count,
// so a missing "last" does not end the sequence; a next URL that was already
// fetched does.
func (p *Pages) nextURL(resp *Response) string {
	links := linkheader.ParseMultiple(resp.Header.Values("Link"))

	next := firstRel(links, "next")
	if next == "" {
		return ""
	}
	current := firstRel(links, "current")
	last := firstRel(links, "last")
	if current != "" && last != "" && current == last {
		return ""
	}

	next = mergeQuery(next, p.query)
	if _, dup := p.seen[next]; dup {
		p.client.logger.Warn("pagination loop detected, stopping", "url", resp.URL, "next", next)
		return ""
	}
	return next
}

func firstRel(links linkheader.Links, rel string) string {
	for _, l := range links.FilterByRel(rel) {
		if l.URL != "" {
			return l.URL
		}
	}
	return ""
}

// mergeQuery adds every parameter of orig that next does not already carry.
// Canvas drops some parameters (e.g. include[]) from its pagination links.
func mergeQuery(next string, orig url.Values) string {
	if len(orig) == 0 {
		return next
	}
	u, err := url.Parse(next)
	if err != nil {
		return next
	}
	q := u.Query()
	changed := false
	for k, vs := range orig {
		if _, ok := q[k]; ok {
			continue
		}
		q[k] = vs
		changed = true
	}
	if !changed {
		return next
	}
	u.RawQuery = q.Encode()
	return u.String()
}
