package fileiter

import (
	"bufio"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

// blarIgnore holds the compiled glob patterns from a .blarignore file
// (spec §6.4: newline-separated glob patterns, simple glob-per-line
// semantics per §4.2).
type blarIgnore struct {
	patterns []glob.Glob
}

func loadBlarIgnore(path string) (*blarIgnore, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &blarIgnore{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bi := &blarIgnore{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := glob.Compile(line, '/')
		if err != nil {
			continue // malformed pattern: skip rather than abort the walk
		}
		bi.patterns = append(bi.patterns, g)
	}
	return bi, scanner.Err()
}

func (bi *blarIgnore) MatchFile(relPath string) bool {
	if bi == nil {
		return false
	}
	for _, g := range bi.patterns {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

func (bi *blarIgnore) MatchDir(relPath string) bool {
	return bi.MatchFile(relPath)
}
