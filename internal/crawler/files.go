package crawler

import (
	"context"
	"path/filepath"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// folders lists the folders at rawURL and mirrors each one below dir.
// The course root folder maps onto dir itself.
func (c *Crawler) folders(rawURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		return c.eachPage(ctx, rawURL, func(resp *canvas.Response) {
			for _, folder := range decodeList[model.Folder](c, resp, "folders") {
				path := dir
				if !folder.IsRoot() {
					path = filepath.Join(dir, mirror.Sanitize(folder.Name))
				}
				if !c.ensureDir(path) {
					continue
				}
				c.stats.Add(model.CategoryFolders, 1)
				c.spawn(ctx, "files", c.files(folder.FilesURL, path))
				c.spawn(ctx, "folders", c.folders(folder.FoldersURL, path))
			}
		})
	}
}

// files lists the files of one folder and queues the ones to download.
func (c *Crawler) files(rawURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		return c.eachPage(ctx, rawURL, func(resp *canvas.Response) {
			files := decodeList[model.RemoteFile](c, resp, "files")
			c.stats.Add(model.CategoryFiles, len(files))
			c.queueFiles(dir, files)
		})
	}
}

// fileByID resolves a file ID through /api/v1/files/:id and queues it
// into dir, creating dir when needed.
func (c *Crawler) fileByID(id int64, dir string, category model.Category) scheduler.Task {
	return func(ctx context.Context) error {
		f, _, ok, err := fetchObject[model.RemoteFile](ctx, c, c.api("files/%d", id), "file")
		if err != nil || !ok {
			return err
		}
		c.stats.Add(category, 1)
		c.queueInto(dir, []model.RemoteFile{f})
		return nil
	}
}
