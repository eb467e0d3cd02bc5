// Package pathutil converts between the absolute paths used as index keys and the
// root-relative paths shown to users.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir. Paths that are
// already relative, outside the root, or not convertible come back unchanged (cleaned).
//
//   - ToRelative("/proj/Assets/a.prefab", "/proj") → "Assets/a.prefab"
//   - ToRelative("/other/a.prefab", "/proj") → "/other/a.prefab"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	relPath, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		// e.g. different volumes on Windows
		return absPath
	}
	if IsOutside(relPath) {
		return absPath
	}
	return relPath
}

// ToSlashRelative is ToRelative for slash-separated paths such as document keys.
// The root itself maps to "".
func ToSlashRelative(slashPath, rootDir string) string {
	rel := filepath.ToSlash(ToRelative(filepath.FromSlash(slashPath), filepath.FromSlash(rootDir)))
	if rel == "." {
		return ""
	}
	return rel
}

// IsOutside reports whether a relative path climbs out of its base
func IsOutside(relPath string) bool {
	return relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) ||
		strings.HasPrefix(relPath, "../")
}
