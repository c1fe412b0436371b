package crawler

import (
	"context"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// links follows the Canvas file links and images of an HTML body and
// queues them into dir. dir is created only if something is queued.
//
// Each reference is resolved by its own task so that every request holds a
// permit.
func (c *Crawler) links(body, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		if c.parser == nil || strings.TrimSpace(body) == "" {
			return nil
		}
		refs, err := c.parser.Parse(strings.NewReader(body))
		if err != nil {
			c.logger.Warn("failed to parse HTML", "path", dir, "error", err)
			return nil
		}
		for _, id := range refs.FileIDs {
			c.spawn(ctx, "linked file", c.fileByID(id, dir, model.CategoryLinkedFiles))
		}
		for _, src := range refs.Images {
			c.spawn(ctx, "linked image", c.image(src, dir))
		}
		return nil
	}
}

// image resolves an image served by Canvas with a HEAD request. The file
// URL of an embedded image is often not readable by students, while the
// image URL itself is.
func (c *Crawler) image(src, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		resp, err := c.client.Head(ctx, src)
		if err != nil {
			c.logger.Debug("failed to resolve image", "url", src, "error", err)
			return nil
		}

		lm, dated := resp.LastModified()
		if !dated {
			lm = time.Now()
		}
		f := model.RemoteFile{
			DisplayName: imageName(src, resp.Header.Get("Content-Disposition")),
			Size:        resp.ContentLength(),
			URL:         src,
			UpdatedAt:   lm.UTC().Format(time.RFC3339),
			Undated:     !dated,
		}
		c.stats.Add(model.CategoryLinkedFiles, 1)
		c.queueInto(dir, []model.RemoteFile{f})
		return nil
	}
}

// imageName picks a file name from Content-Disposition, falling back to the
// last path segment of src.
func imageName(src, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if u, err := url.Parse(src); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return "unknown"
}
