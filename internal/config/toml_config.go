package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlConfig mirrors the KDL layout:
//
//	[project]
//	root = "."
//	[index]
//	extensions = [".prefab", ".unity"]
//	max_line_bytes = "16MB"
//	exclude = ["**/Library/**"]
type tomlConfig struct {
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Index struct {
		Extensions        []string `toml:"extensions"`
		MaxLineBytes      *string  `toml:"max_line_bytes"`
		DocumentTimeoutMs *int     `toml:"document_timeout_ms"`
		RespectGitignore  *bool    `toml:"respect_gitignore"`
		FollowSymlinks    *bool    `toml:"follow_symlinks"`
		WatchMode         *bool    `toml:"watch_mode"`
		WatchDebounceMs   *int     `toml:"watch_debounce_ms"`
	} `toml:"index"`
	Performance struct {
		ParallelFileWorkers *int `toml:"parallel_file_workers"`
	} `toml:"performance"`
	Companion struct {
		MetaExtension    string   `toml:"meta_extension"`
		SourceExtensions []string `toml:"source_extensions"`
	} `toml:"companion"`
	Exclude []string `toml:"exclude"`
}

// LoadTOML attempts to load configuration from .scriptref.toml in projectRoot.
// Returns nil, nil when the file does not exist.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, TOMLFileName)

	content, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}

	cfg, err := parseTOML(content)
	if err != nil {
		return nil, err
	}

	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func parseTOML(content []byte) (*Config, error) {
	var raw tomlConfig
	if err := toml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default()
	cfg.Project.Root = raw.Project.Root
	cfg.Project.Name = raw.Project.Name

	if len(raw.Index.Extensions) > 0 {
		cfg.Index.Extensions = normalizeExtensions(raw.Index.Extensions)
	}
	if raw.Index.MaxLineBytes != nil {
		size, err := parseSize(*raw.Index.MaxLineBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid max_line_bytes %q: %w", *raw.Index.MaxLineBytes, err)
		}
		cfg.Index.MaxLineBytes = size
	}
	if raw.Index.DocumentTimeoutMs != nil {
		cfg.Index.DocumentTimeoutMs = *raw.Index.DocumentTimeoutMs
	}
	if raw.Index.RespectGitignore != nil {
		cfg.Index.RespectGitignore = *raw.Index.RespectGitignore
	}
	if raw.Index.FollowSymlinks != nil {
		cfg.Index.FollowSymlinks = *raw.Index.FollowSymlinks
	}
	if raw.Index.WatchMode != nil {
		cfg.Index.WatchMode = *raw.Index.WatchMode
	}
	if raw.Index.WatchDebounceMs != nil {
		cfg.Index.WatchDebounceMs = *raw.Index.WatchDebounceMs
	}
	if raw.Performance.ParallelFileWorkers != nil {
		cfg.Performance.ParallelFileWorkers = *raw.Performance.ParallelFileWorkers
	}
	if raw.Companion.MetaExtension != "" {
		cfg.Companion.MetaExtension = raw.Companion.MetaExtension
	}
	if len(raw.Companion.SourceExtensions) > 0 {
		cfg.Companion.SourceExtensions = normalizeExtensions(raw.Companion.SourceExtensions)
	}
	if raw.Exclude != nil {
		cfg.Exclude = raw.Exclude
	}

	return cfg, nil
}
