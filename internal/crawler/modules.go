package crawler

import (
	"context"
	"path/filepath"

	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// modules mirrors the modules of a course into dir/modules, one directory
// per module.
func (c *Crawler) modules(courseURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.Module](ctx, c, courseURL+"modules", "modules")
		if len(items) == 0 {
			return err
		}
		modulesDir := filepath.Join(dir, "modules")
		if !c.ensureDir(modulesDir) {
			return err
		}
		c.writeJSON(filepath.Join(modulesDir, "modules.json"), mergedJSON(bodies))

		for _, m := range items {
			moduleDir := filepath.Join(modulesDir, mirror.Sanitize(m.Name))
			if !c.ensureDir(moduleDir) {
				continue
			}
			c.stats.Add(model.CategoryModules, 1)
			c.spawn(ctx, "module items", c.moduleItems(courseURL, m.ItemsURL, moduleDir))
		}
		return err
	}
}

// moduleItems writes module_items.json and mirrors what each item points at.
func (c *Crawler) moduleItems(courseURL, rawURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.ModuleItem](ctx, c, rawURL, "module items")
		if len(bodies) > 0 {
			c.writeJSON(filepath.Join(dir, "module_items.json"), mergedJSON(bodies))
		}
		for _, item := range items {
			c.moduleItem(ctx, courseURL, dir, item)
		}
		return err
	}
}

func (c *Crawler) moduleItem(ctx context.Context, courseURL, dir string, item model.ModuleItem) {
	switch item.Type {
	case model.ModuleItemFile:
		if item.ContentID != nil {
			c.spawn(ctx, "module file", c.fileByID(*item.ContentID, dir, model.CategoryFiles))
		}
	case model.ModuleItemPage:
		if item.PageURL == nil {
			return
		}
		itemDir := filepath.Join(dir, mirror.Sanitize(item.Title))
		if c.ensureDir(itemDir) {
			c.spawn(ctx, "page body", c.pageBody(courseURL+"pages/"+*item.PageURL, item.Title, itemDir))
		}
	case model.ModuleItemExternalURL:
		if item.ExternalURL == nil {
			return
		}
		path := filepath.Join(dir, mirror.Sanitize(item.Title)+".url")
		if c.layout.Matcher().Ignored(path, false) {
			return
		}
		if err := c.layout.WriteShortcut(path, *item.ExternalURL); err != nil {
			c.logger.Error("failed to write shortcut", "path", path, "error", err)
		}
	case model.ModuleItemSubHeader:
		c.ensureDir(filepath.Join(dir, mirror.Sanitize(item.Title)))
	case model.ModuleItemAssignment, model.ModuleItemDiscussion:
		c.logger.Debug("module item is mirrored with the course "+item.Type+"s", "title", item.Title)
	default:
		c.logger.Debug("unsupported module item type", "type", item.Type, "title", item.Title)
	}
}
