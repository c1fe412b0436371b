package crawler

import (
	"context"
	"html"
	"path/filepath"

	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// pages mirrors the wiki pages of a course into dir/pages, one directory
// per page.
func (c *Crawler) pages(courseURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.Page](ctx, c, courseURL+"pages", "pages")
		if len(items) == 0 {
			return err
		}
		pagesDir := filepath.Join(dir, "pages")
		if !c.ensureDir(pagesDir) {
			return err
		}
		c.writeJSON(filepath.Join(pagesDir, "pages.json"), mergedJSON(bodies))

		for _, p := range items {
			pageDir := filepath.Join(pagesDir, mirror.Sanitize(p.URL))
			if !c.ensureDir(pageDir) {
				continue
			}
			c.stats.Add(model.CategoryPages, 1)
			c.spawn(ctx, "page body", c.pageBody(courseURL+"pages/"+p.URL, p.URL, pageDir))
		}
		return err
	}
}

// pageBody stores one page as <name>.json and <url>.html in dir and
// follows the links in its body.
func (c *Crawler) pageBody(rawURL, name, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		body, raw, ok, err := fetchObject[model.PageBody](ctx, c, rawURL, "page body")
		if err != nil {
			return err
		}
		if raw != nil {
			c.writeJSON(filepath.Join(dir, mirror.Sanitize(name)+".json"), raw)
		}
		if !ok {
			return nil
		}
		htmlName := body.URL
		if htmlName == "" {
			htmlName = name
		}
		c.writeFile(filepath.Join(dir, mirror.Sanitize(htmlName)+".html"), wrapHTML(body.Title, body.Body))
		c.spawn(ctx, "links", c.links(body.Body, dir))
		return nil
	}
}

// wrapHTML wraps a rich content fragment in a minimal document.
func wrapHTML(title, body string) []byte {
	return []byte("<html><head><title>" + html.EscapeString(title) + "</title></head><body>" + body + "</body></html>")
}
