package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/scriptref/internal/config"
	"github.com/standardbeagle/scriptref/internal/debug"
	"github.com/standardbeagle/scriptref/internal/types"
)

// Enumerator lists every document in the corpus
type Enumerator interface {
	Enumerate(ctx context.Context) ([]types.DocumentKey, error)
}

// documentGlob builds the doublestar pattern for the configured extensions, e.g. **/*.{prefab,unity}
func documentGlob(extensions []string) string {
	names := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		names = append(names, strings.TrimPrefix(ext, "."))
	}
	if len(names) == 1 {
		return "**/*." + names[0]
	}
	return "**/*.{" + strings.Join(names, ",") + "}"
}

// pathFilter decides which directories and documents under root take part in the index.
// It is shared by the enumerator and the watcher so both agree on the corpus.
type pathFilter struct {
	root       string
	glob       string
	extensions []string
	exclude    []string
	useIgnore  bool
	gitignore  atomic.Pointer[config.GitignoreParser]
}

func newPathFilter(cfg *config.Config) *pathFilter {
	pf := &pathFilter{
		root:       cfg.Project.Root,
		glob:       documentGlob(cfg.Index.Extensions),
		extensions: cfg.Index.Extensions,
		exclude:    cfg.Exclude,
		useIgnore:  cfg.Index.RespectGitignore,
	}
	pf.reloadGitignore()
	return pf
}

// reloadGitignore re-reads the root .gitignore
func (pf *pathFilter) reloadGitignore() {
	if !pf.useIgnore {
		return
	}
	gp := config.NewGitignoreParser()
	if err := gp.LoadGitignore(pf.root); err != nil {
		debug.LogIndexing("failed to read .gitignore in %s: %v\n", pf.root, err)
	}
	pf.gitignore.Store(gp)
}

// rel returns path relative to root with forward slashes, ok=false when outside root
func (pf *pathFilter) rel(path string) (string, bool) {
	r, err := filepath.Rel(pf.root, path)
	if err != nil {
		return "", false
	}
	r = filepath.ToSlash(r)
	if r == ".." || strings.HasPrefix(r, "../") {
		return "", false
	}
	return r, true
}

func (pf *pathFilter) excluded(rel string, isDir bool) bool {
	for _, pattern := range pf.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// **/Library/** should prune the Library directory itself
		if isDir && strings.HasSuffix(pattern, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
				return true
			}
		}
	}
	if gp := pf.gitignore.Load(); gp != nil && gp.ShouldIgnore(rel, isDir) {
		return true
	}
	return false
}

// skipDir reports whether a directory should not be descended into or watched
func (pf *pathFilter) skipDir(path string) bool {
	rel, ok := pf.rel(path)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	return pf.excluded(rel, true)
}

// isDocument reports whether path is an indexable document
func (pf *pathFilter) isDocument(path string) bool {
	if !types.HasExtension(path, pf.extensions) {
		return false
	}
	rel, ok := pf.rel(path)
	if !ok || rel == "." {
		return false
	}
	if matched, _ := doublestar.Match(pf.glob, rel); !matched {
		return false
	}
	return !pf.excluded(rel, false)
}

// FSEnumerator walks the project tree on disk
type FSEnumerator struct {
	filter         *pathFilter
	followSymlinks bool
}

// NewFSEnumerator creates an enumerator for cfg.Project.Root
func NewFSEnumerator(cfg *config.Config) *FSEnumerator {
	return &FSEnumerator{
		filter:         newPathFilter(cfg),
		followSymlinks: cfg.Index.FollowSymlinks,
	}
}

// Enumerate implements Enumerator. The .gitignore is re-read on every call.
func (e *FSEnumerator) Enumerate(ctx context.Context) ([]types.DocumentKey, error) {
	root := e.filter.root
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot enumerate %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot enumerate %s: not a directory", root)
	}

	e.filter.reloadGitignore()

	var keys []types.DocumentKey
	visited := make(map[string]bool)
	if err := e.walk(ctx, root, visited, &keys); err != nil {
		return nil, err
	}

	debug.LogIndexing("enumerated %d documents under %s\n", len(keys), root)
	return keys, nil
}

func (e *FSEnumerator) walk(ctx context.Context, dir string, visited map[string]bool, keys *[]types.DocumentKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Symlink cycles
	realPath, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	if visited[realPath] {
		return nil
	}
	visited[realPath] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		// An unreadable root is fatal; unreadable subdirectories are skipped
		if dir == e.filter.root {
			return fmt.Errorf("cannot read %s: %w", dir, err)
		}
		debug.LogIndexing("skipping unreadable directory %s: %v\n", dir, err)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				continue
			}
			if target.IsDir() {
				if !e.followSymlinks {
					continue
				}
				isDir = true
			}
		}

		if isDir {
			if e.filter.skipDir(path) {
				continue
			}
			if err := e.walk(ctx, path, visited, keys); err != nil {
				return err
			}
			continue
		}

		if e.filter.isDocument(path) {
			*keys = append(*keys, types.NewDocumentKey(path))
		}
	}
	return nil
}

// StaticEnumerator returns a fixed list of keys
type StaticEnumerator []types.DocumentKey

// Enumerate implements Enumerator
func (s StaticEnumerator) Enumerate(ctx context.Context) ([]types.DocumentKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]types.DocumentKey(nil), s...), nil
}
