package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nao1215/canvasmirror/internal/model"
)

// Opener starts a download. It returns the body and its declared length,
// 0 when unknown.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Downloader writes remote files to their LocalPath atomically.
type Downloader struct {
	fs       afero.Fs
	opener   Opener
	progress Progress
	logger   *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithProgress reports download progress to p.
func WithProgress(p Progress) DownloaderOption {
	return func(d *Downloader) {
		d.progress = p
	}
}

// WithDownloaderLogger sets the logger.
func WithDownloaderLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader writing to fsys.
func NewDownloader(fsys afero.Fs, opener Opener, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		fs:       fsys,
		opener:   opener,
		progress: NoProgress{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Download fetches f into f.LocalPath and returns the number of bytes written.
//
// The body is streamed into a temporary file next to the destination, named
// by TempName. On failure the temporary file is removed and the destination
// is left untouched. On success the temporary file gets the remote
// modification time and is renamed over the destination; the rename keeps
// that time. Failing to set the time is logged and otherwise ignored.
func (d *Downloader) Download(ctx context.Context, f model.RemoteFile) (int64, error) {
	if f.LocalPath == "" {
		return 0, fmt.Errorf("%w: %s", ErrNoLocalPath, f.DisplayName)
	}
	tmp := filepath.Join(filepath.Dir(f.LocalPath), TempName(f.DisplayName))

	n, err := d.fetch(ctx, tmp, f)
	if err != nil {
		d.discard(tmp, f)
		return n, err
	}

	if modified, err := f.Modified(); err != nil {
		d.logger.Warn("failed to parse updated_at, keeping download time",
			"path", f.LocalPath, "updated_at", f.UpdatedAt, "error", err)
	} else if err := d.fs.Chtimes(tmp, modified, modified); err != nil {
		d.logger.Warn("failed to set modification time",
			"path", tmp, "updated_at", f.UpdatedAt, "error", err)
	}

	if err := d.fs.Rename(tmp, f.LocalPath); err != nil {
		d.discard(tmp, f)
		return n, fmt.Errorf("failed to move %s into place: %w", f.LocalPath, err)
	}
	return n, nil
}

func (d *Downloader) fetch(ctx context.Context, tmp string, f model.RemoteFile) (int64, error) {
	body, size, err := d.opener.Open(ctx, f.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", f.DisplayName, err)
	}
	defer body.Close()

	out, err := d.fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("unable to create temporary file for %s: %w", f.LocalPath, err)
	}

	tracker := d.progress.Track(f.DisplayName, size)
	n, err := io.Copy(out, tracker.Wrap(body))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	tracker.Done(err == nil)
	if err != nil {
		return n, fmt.Errorf("could not write to file %s: %w", f.LocalPath, err)
	}
	return n, nil
}

func (d *Downloader) discard(tmp string, f model.RemoteFile) {
	if err := d.fs.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.logger.Error("failed to remove temporary file",
			"path", tmp, "file", f.DisplayName, "error", err)
	}
}
