package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// KDLFileName is the project config file name
	KDLFileName = ".scriptref.kdl"
	// TOMLFileName is the alternative project config file name
	TOMLFileName = ".scriptref.toml"

	DefaultMaxLineBytes      = 16 * 1024 * 1024
	DefaultDocumentTimeoutMs = 10000
	DefaultWatchDebounceMs   = 200
	DefaultMetaExtension     = ".meta"
)

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Companion   Companion
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	Extensions        []string // Document extensions, including the dot
	MaxLineBytes      int64    // Longest line considered for matching; longer lines are truncated
	DocumentTimeoutMs int      // Per-document read timeout, 0 disables it
	RespectGitignore  bool     // Skip documents ignored by the project's .gitignore
	FollowSymlinks    bool
	WatchMode         bool // Watch the project tree for document changes
	WatchDebounceMs   int  // Coalesce bursts of events per path, 0 forwards immediately
}

type Performance struct {
	ParallelFileWorkers int // 0 = auto-detect (NumCPU-1)
}

type Companion struct {
	MetaExtension    string   // Suffix appended to a source path to find its metadata file
	SourceExtensions []string // Source kinds that carry a script GUID
}

// Load reads configuration for a project rooted at rootDir. A global ~/.scriptref.kdl is
// used as the base and the project's .scriptref.kdl (or .scriptref.toml) overrides it.
func Load(rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	absDir, err := filepath.Abs(searchDir)
	if err == nil {
		searchDir = absDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := loadProjectConfig(searchDir)
	if err != nil {
		return nil, err
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cfg := Default()
	cfg.Project.Root = searchDir
	cfg.Project.Name = filepath.Base(searchDir)
	return cfg, nil
}

// LoadFile reads an explicit config file. The format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg *Config
	switch filepath.Ext(path) {
	case ".toml":
		cfg, err = parseTOML(content)
	default:
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, err
	}

	resolveRoot(cfg, filepath.Dir(path))
	return cfg, nil
}

func loadProjectConfig(dir string) (*Config, error) {
	if cfg, err := LoadKDL(dir); err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(dir)
}

// Default returns the built-in configuration
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Version: 1,
		Project: Project{
			Root: cwd,
			Name: filepath.Base(cwd),
		},
		Index: Index{
			Extensions:        []string{".prefab", ".unity"},
			MaxLineBytes:      DefaultMaxLineBytes,
			DocumentTimeoutMs: DefaultDocumentTimeoutMs,
			RespectGitignore:  true,
			FollowSymlinks:    false,
			WatchMode:         true,
			WatchDebounceMs:   DefaultWatchDebounceMs,
		},
		Performance: Performance{
			ParallelFileWorkers: runtime.NumCPU(),
		},
		Companion: Companion{
			MetaExtension:    DefaultMetaExtension,
			SourceExtensions: []string{".cs"},
		},
		Exclude: DefaultExclusions(),
	}
}

// DefaultExclusions lists directories that Unity regenerates and never holds authored documents
func DefaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/Library/**",
		"**/Temp/**",
		"**/Obj/**",
		"**/obj/**",
		"**/Logs/**",
		"**/UserSettings/**",
		"**/Build/**",
		"**/Builds/**",
	}
}

// resolveRoot makes cfg.Project.Root absolute, relative to the directory holding the config file
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = configDir
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
	}
	if abs, err := filepath.Abs(cfg.Project.Root); err == nil {
		cfg.Project.Root = abs
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrence order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
