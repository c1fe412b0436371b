package mirror

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/nao1215/canvasmirror/internal/model"
)

// Selector filters remote files down to the ones that must be downloaded.
type Selector struct {
	fs             afero.Fs
	ignore         *Matcher
	overwriteNewer bool
	logger         *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithOverwriteNewer replaces local files whose remote copy is newer.
func WithOverwriteNewer(enabled bool) SelectorOption {
	return func(s *Selector) {
		s.overwriteNewer = enabled
	}
}

// WithMatcher excludes files matched by an ignore file.
func WithMatcher(m *Matcher) SelectorOption {
	return func(s *Selector) {
		s.ignore = m
	}
}

// WithSelectorLogger sets the logger.
func WithSelectorLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector creates a Selector reading local state from fsys.
func NewSelector(fsys afero.Fs, opts ...SelectorOption) *Selector {
	s := &Selector{fs: fsys}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Select resolves each candidate's local path below dir and returns the
// candidates that need downloading.
//
// A candidate is dropped when it is locked, when its updated_at does not
// parse (one warning per file), or when it is ignored. It is kept when no
// local file exists, or when the local file is older than the remote and
// overwriting newer files is enabled. Undated candidates are only kept when
// missing. Select only reads the filesystem.
func (s *Selector) Select(dir string, candidates []model.RemoteFile) []model.RemoteFile {
	selected := make([]model.RemoteFile, 0, len(candidates))
	for _, f := range candidates {
		f.LocalPath = filepath.Join(dir, Sanitize(f.DisplayName))

		if f.Locked {
			s.logger.Debug("skipping locked file", "file", f.DisplayName)
			continue
		}
		remote, err := f.Modified()
		if f.Undated {
			// Never newer than a local copy: fetched only when missing.
			remote, err = time.Time{}, nil
		}
		if err != nil {
			s.logger.Warn("failed to parse updated_at, skipping file",
				"file", f.DisplayName,
				"updated_at", f.UpdatedAt,
				"error", err,
			)
			continue
		}
		if s.ignore.Ignored(f.LocalPath, false) {
			s.logger.Debug("skipping ignored file", "path", f.LocalPath)
			continue
		}

		info, err := s.fs.Stat(f.LocalPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			selected = append(selected, f)
		case err != nil:
			s.logger.Warn("failed to stat local file, skipping", "path", f.LocalPath, "error", err)
		case info.ModTime().Before(remote):
			if s.overwriteNewer {
				selected = append(selected, f)
				continue
			}
			s.logger.Info("found update, use -n to download updated files", "path", f.LocalPath)
		}
	}
	return selected
}
