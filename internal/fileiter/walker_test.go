package fileiter

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/langregistry"
)

func collect(t *testing.T, it *Iterator) []FileRecord {
	t.Helper()
	var out []FileRecord
	for rec := range it.Walk() {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AbsolutePath < out[j].AbsolutePath })
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkYieldsSupportedFilesWithLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "b.rb"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# hi\n")

	registry := langregistry.NewRegistry()
	it, err := New(dir, registry)
	require.NoError(t, err)

	recs := collect(t, it)
	require.Len(t, recs, 2, "unsupported extensions must be skipped")

	byLang := map[string]string{}
	for _, r := range recs {
		byLang[filepath.Base(r.AbsolutePath)] = r.Language
	}
	assert.Equal(t, "python", byLang["a.py"])
	assert.Equal(t, "ruby", byLang["b.rb"])
}

func TestWalkSkipsIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node_modules", "pkg", "index.js"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "src", "main.py"), "x = 1\n")

	registry := langregistry.NewRegistry()
	it, err := New(dir, registry)
	require.NoError(t, err)

	recs := collect(t, it)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(dir, "src", "main.py"), recs[0].AbsolutePath)
}

func TestWalkSkipsGeneratedAndTestFixtureFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bundle.min.js"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "__tests__", "fixtures", "sample.js"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "real.js"), "x = 1\n")

	registry := langregistry.NewRegistry()
	it, err := New(dir, registry)
	require.NoError(t, err)

	recs := collect(t, it)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(dir, "real.js"), recs[0].AbsolutePath)
}

func TestWalkHonorsBlarignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".blarignore"), "vendored/lib.py\n*.generated.py\n")
	writeFile(t, filepath.Join(dir, "vendored", "lib.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "model.generated.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "keep.py"), "x = 1\n")

	registry := langregistry.NewRegistry()
	it, err := New(dir, registry)
	require.NoError(t, err)

	recs := collect(t, it)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(dir, "keep.py"), recs[0].AbsolutePath)
}

func TestNewToleratesMissingBlarignore(t *testing.T) {
	dir := t.TempDir()
	registry := langregistry.NewRegistry()
	_, err := New(dir, registry)
	assert.NoError(t, err)
}
