package mirror

import (
	"fmt"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Matcher reports whether local paths are excluded by a gitignore-style file.
// Patterns are relative to the mirror's destination directory.
//
// A nil *Matcher ignores nothing.
type Matcher struct {
	gi   *ignore.GitIgnore
	base string
}

// LoadMatcher compiles the ignore file at path. Patterns apply below base.
func LoadMatcher(path, base string) (*Matcher, error) {
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ignore file %s: %w", path, err)
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", base, err)
	}
	return &Matcher{gi: gi, base: abs}, nil
}

// Ignored reports whether path is excluded. Directories also match
// patterns with a trailing slash.
func (m *Matcher) Ignored(path string, isDir bool) bool {
	if m == nil || m.gi == nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(m.base, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if m.gi.MatchesPath(rel) {
		return true
	}
	return isDir && m.gi.MatchesPath(rel+"/")
}
