package crawler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strconv"

	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

//go:embed templates/discussion.html.tmpl
var templateFS embed.FS

var discussionTemplate = template.Must(template.ParseFS(templateFS, "templates/discussion.html.tmpl"))

// discussionPage is the data rendered into a discussion's HTML file.
// Messages are Canvas rich content and are inserted unescaped.
type discussionPage struct {
	Title    string
	Author   string
	PostedAt string
	Message  template.HTML
	Comments []discussionComment
}

type discussionComment struct {
	Author    string
	CreatedAt string
	Message   template.HTML
}

// discussions mirrors the discussion topics, or the announcements, of a
// course into dir/discussions or dir/announcements. The directory is only
// created when the course has at least one topic.
func (c *Crawler) discussions(courseURL, dir string, announcements bool) scheduler.Task {
	kind, category, query := "discussions", model.CategoryDiscussions, ""
	if announcements {
		kind, category, query = "announcements", model.CategoryAnnouncements, "?only_announcements=true"
	}
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.Discussion](ctx, c, courseURL+"discussion_topics"+query, kind)
		if len(items) == 0 {
			return err
		}
		kindDir := filepath.Join(dir, kind)
		if !c.ensureDir(kindDir) {
			return err
		}
		c.writeJSON(filepath.Join(dir, kind+".json"), mergedJSON(bodies))

		for _, d := range items {
			c.stats.Add(category, 1)
			topicDir := filepath.Join(kindDir, mirror.Sanitize(d.Title))
			c.queueInto(topicDir, prefixWithID(d.Attachments))
			c.spawn(ctx, "links", c.links(d.Message, topicDir))
			viewURL := courseURL + "discussion_topics/" + itoa(d.ID) + "/view"
			c.spawn(ctx, "discussion view", c.discussionView(viewURL, kindDir, d))
		}
		return err
	}
}

// discussionView stores the threaded view of a topic as JSON and HTML,
// and queues the attachments of every entry.
func (c *Crawler) discussionView(rawURL, dir string, d model.Discussion) scheduler.Task {
	return func(ctx context.Context) error {
		name := mirror.Sanitize(d.Title)
		topicDir := filepath.Join(dir, name)

		view, raw, ok, err := fetchObject[model.DiscussionView](ctx, c, rawURL, "discussion view")
		if err != nil {
			return err
		}
		if raw != nil {
			c.writeJSON(filepath.Join(dir, name+".json"), raw)
		}
		if !ok {
			return nil
		}
		view.ResolveNames()

		var files []model.RemoteFile
		for _, comment := range view.View {
			if comment.Message != nil {
				c.spawn(ctx, "links", c.links(*comment.Message, topicDir))
			}
			files = append(files, comment.Files()...)
		}

		page, err := renderDiscussion(d, view.View)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", d.Title, err)
		}
		c.writeFile(filepath.Join(dir, name+".html"), page)
		c.queueInto(topicDir, prefixWithID(files))
		return nil
	}
}

// renderDiscussion renders a topic and its entries as a standalone page.
// Entries without a message (deleted ones) are left out.
func renderDiscussion(d model.Discussion, comments []model.Comment) ([]byte, error) {
	page := discussionPage{
		Title:   d.Title,
		Message: template.HTML(d.Message), //nolint:gosec // Canvas rich content
	}
	if d.Author != nil && d.Author.DisplayName != nil {
		page.Author = *d.Author.DisplayName
	}
	if d.PostedAt != nil {
		page.PostedAt = *d.PostedAt
	}
	for _, cm := range comments {
		if cm.Message == nil {
			continue
		}
		entry := discussionComment{Message: template.HTML(*cm.Message)} //nolint:gosec // Canvas rich content
		if cm.UserName != nil {
			entry.Author = *cm.UserName
		}
		if cm.CreatedAt != nil {
			entry.CreatedAt = *cm.CreatedAt
		}
		page.Comments = append(page.Comments, entry)
	}

	var buf bytes.Buffer
	if err := discussionTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// prefixWithID prefixes display names with the file ID. Attachments of
// different entries often share a name ("image.png").
func prefixWithID(files []model.RemoteFile) []model.RemoteFile {
	out := make([]model.RemoteFile, len(files))
	for i, f := range files {
		f.DisplayName = strconv.FormatInt(f.ID, 10) + "_" + f.DisplayName
		out[i] = f
	}
	return out
}
