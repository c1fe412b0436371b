package mirror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Layout creates the mirror's directories and writes its metadata files.
type Layout struct {
	fs     afero.Fs
	ignore *Matcher
}

// NewLayout creates a Layout on fsys. m may be nil.
func NewLayout(fsys afero.Fs, m *Matcher) *Layout {
	return &Layout{fs: fsys, ignore: m}
}

// Fs returns the underlying filesystem.
func (l *Layout) Fs() afero.Fs {
	return l.fs
}

// Matcher returns the ignore matcher, possibly nil.
func (l *Layout) Matcher() *Matcher {
	return l.ignore
}

// EnsureDir creates dir and its parents unless dir is ignored.
// It reports whether dir exists afterwards.
func (l *Layout) EnsureDir(dir string) (bool, error) {
	if l.ignore.Ignored(dir, true) {
		return false, nil
	}
	if err := l.fs.MkdirAll(dir, dirPerm); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return true, nil
}

// WriteFile writes data to path, replacing any existing file.
func (l *Layout) WriteFile(path string, data []byte) error {
	if l.ignore.Ignored(path, false) {
		return fmt.Errorf("%w: %s", ErrIgnored, path)
	}
	if err := afero.WriteFile(l.fs, path, data, filePerm); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes a raw API response to path, indented. Bodies that are not
// valid JSON are written unchanged.
func (l *Layout) WriteJSON(path string, raw []byte) error {
	return l.WriteFile(path, prettyJSON(raw))
}

// WriteShortcut writes an Internet Shortcut (.url) file pointing at target.
func (l *Layout) WriteShortcut(path, target string) error {
	return l.WriteFile(path, []byte("[InternetShortcut]\nURL="+target+"\n"))
}

// AppendJSON concatenates several raw JSON arrays into one indented array.
// Paginated endpoints deliver one array per page.
func AppendJSON(pages [][]byte) []byte {
	merged := make([]json.RawMessage, 0)
	for _, p := range pages {
		var items []json.RawMessage
		if err := json.Unmarshal(p, &items); err != nil {
			continue
		}
		merged = append(merged, items...)
	}
	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return []byte("[]")
	}
	return out
}

func prettyJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return raw
	}
	return buf.Bytes()
}
