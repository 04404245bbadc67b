// Package fileiter walks a repository root and yields (path, language)
// pairs for the Hierarchy Builder, honoring name/extension skip-lists and
// a .blarignore file (spec §4.2).
package fileiter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blarApp/blargraph/internal/langregistry"
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "venv": true,
	"__pycache__": true, ".next": true, ".nuxt": true, "dist": true,
	"build": true, "out": true, "target": true, ".cache": true,
	".parcel-cache": true, "coverage": true, ".nyc_output": true,
	".pytest_cache": true, ".tox": true, ".venv": true, "env": true,
	"__mocks__": true, ".idea": true, ".vscode": true,
}

var generatedSuffixes = []string{
	".min.js", ".bundle.js", ".generated.ts", ".generated.js",
	".pb.js", ".pb.ts", ".d.ts", "_pb.js", "_pb.ts",
}

var testFixtureDirs = []string{
	"/__tests__/fixtures/", "/__mocks__/", "/test/fixtures/",
	"/tests/fixtures/", "/spec/fixtures/",
}

// FileRecord is one yielded (path, language) pair.
type FileRecord struct {
	AbsolutePath string
	Language     string
}

// Iterator is a lazy, finite, non-restartable sequence of FileRecord values
// (spec §4.2). A fresh Iterator must be constructed per walk.
type Iterator struct {
	rootPath string
	registry *langregistry.Registry
	ignore   *blarIgnore
}

// New constructs an Iterator rooted at rootPath. It reads (but does not
// watch) a .blarignore file at the root if present.
func New(rootPath string, registry *langregistry.Registry) (*Iterator, error) {
	ignore, err := loadBlarIgnore(filepath.Join(rootPath, ".blarignore"))
	if err != nil {
		return nil, err
	}
	return &Iterator{rootPath: rootPath, registry: registry, ignore: ignore}, nil
}

// Walk emits every supported source file under the root onto the returned
// channel and closes it when the walk completes.
func (it *Iterator) Walk() <-chan FileRecord {
	out := make(chan FileRecord, 100)
	go func() {
		defer close(out)
		filepath.WalkDir(it.rootPath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, relErr := filepath.Rel(it.rootPath, path)
			if relErr != nil {
				rel = path
			}
			if d.IsDir() {
				if path != it.rootPath && (skipDirs[d.Name()] || it.ignore.MatchDir(rel)) {
					return filepath.SkipDir
				}
				return nil
			}
			if it.ignore.MatchFile(rel) {
				return nil
			}
			def := it.registry.ForExtension(filepath.Ext(path))
			if def == nil {
				return nil
			}
			if isGenerated(path) || isTestFixture(path) {
				return nil
			}
			out <- FileRecord{AbsolutePath: path, Language: def.Name}
			return nil
		})
	}()
	return out
}

func isGenerated(path string) bool {
	for _, suf := range generatedSuffixes {
		if strings.HasSuffix(path, suf) {
			return true
		}
	}
	return false
}

func isTestFixture(path string) bool {
	for _, dir := range testFixtureDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}
