package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser handles parsing and matching .gitignore files
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string // Original line
	Negate    bool
	Directory bool // Only matches directories (trailing slash)
	Absolute  bool // Anchored to the root (contains a slash)

	glob string // doublestar pattern derived from Pattern
}

// NewGitignoreParser creates a new gitignore parser
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	return gp.Parse(file)
}

// Parse reads patterns from r, one per line
func (gp *GitignoreParser) Parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := parsePattern(line); ok {
			gp.patterns = append(gp.patterns, p)
		}
	}
	return scanner.Err()
}

// PatternCount returns the number of loaded patterns
func (gp *GitignoreParser) PatternCount() int {
	return len(gp.patterns)
}

func parsePattern(line string) (GitignorePattern, bool) {
	p := GitignorePattern{Pattern: line}

	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.Absolute = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return p, false
	}

	if p.Absolute {
		p.glob = line
	} else {
		p.glob = "**/" + line
	}
	return p, doublestar.ValidatePattern(p.glob)
}

// ShouldIgnore reports whether relPath (slash separated, relative to the root) is ignored.
// A path inside an ignored directory is ignored too.
func (gp *GitignoreParser) ShouldIgnore(relPath string, isDir bool) bool {
	if len(gp.patterns) == 0 {
		return false
	}
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")

	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		if gp.match(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return gp.match(relPath, isDir)
}

// match applies patterns in order; the last matching pattern decides
func (gp *GitignoreParser) match(relPath string, isDir bool) bool {
	ignored := false
	for _, p := range gp.patterns {
		if p.Directory && !isDir {
			continue
		}
		if ok, _ := doublestar.Match(p.glob, relPath); ok {
			ignored = !p.Negate
		}
	}
	return ignored
}
