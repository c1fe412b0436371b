package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLayoutEnsureDir(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := NewLayout(fs, nil)

	ok, err := l.EnsureDir("/m/CS101/files")
	require.NoError(t, err)
	require.True(t, ok)

	isDir, err := afero.IsDir(fs, "/m/CS101/files")
	require.NoError(t, err)
	require.True(t, isDir)

	ok, err = l.EnsureDir("/m/CS101/files")
	require.NoError(t, err)
	require.True(t, ok, "existing directory")
}

func TestLayoutEnsureDirIgnored(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	ignorePath := filepath.Join(t.TempDir(), "ignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("*/discussions/\n"), 0o644))
	m, err := LoadMatcher(ignorePath, base)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	l := NewLayout(fs, m)
	dir := filepath.Join(base, "CS101", "discussions")

	ok, err := l.EnsureDir(dir)
	require.NoError(t, err)
	require.False(t, ok)

	exists, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	require.False(t, exists)

	require.ErrorIs(t, l.WriteFile(filepath.Join(dir, "x.json"), []byte("{}")), ErrIgnored)
}

func TestLayoutWriteJSON(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := NewLayout(fs, nil)

	require.NoError(t, l.WriteJSON("/m/a.json", []byte(`{"a":1}`)))
	data, err := afero.ReadFile(fs, "/m/a.json")
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1\n}", string(data))

	require.NoError(t, l.WriteJSON("/m/b.json", []byte("not json")))
	data, err = afero.ReadFile(fs, "/m/b.json")
	require.NoError(t, err)
	require.Equal(t, "not json", string(data))
}

func TestLayoutWriteShortcut(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := NewLayout(fs, nil)
	require.NoError(t, l.WriteShortcut("/m/Docs.url", "https://example.com/docs"))

	data, err := afero.ReadFile(fs, "/m/Docs.url")
	require.NoError(t, err)
	require.Equal(t, "[InternetShortcut]\nURL=https://example.com/docs\n", string(data))
}

func TestAppendJSON(t *testing.T) {
	t.Parallel()

	got := AppendJSON([][]byte{[]byte(`[{"id":1}]`), []byte(`[{"id":2},{"id":3}]`), []byte(`{"status":"x"}`)})
	require.JSONEq(t, `[{"id":1},{"id":2},{"id":3}]`, string(got))
	require.JSONEq(t, `[]`, string(AppendJSON(nil)))
}
