// Package testhelpers provides shared utilities for testing scriptref
package testhelpers

import (
	"github.com/standardbeagle/scriptref/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(projectPath).
//		WithExclusions("**/Sandbox/**").
//		WithWatch(true, 0).
//		Build()
type TestConfigBuilder struct {
	projectRoot      string
	extensions       []string
	exclusions       []string
	workers          int
	watch            bool
	debounceMs       int
	respectGitignore bool
	timeoutMs        int
}

// NewTestConfigBuilder creates a config builder for a project path. Watching is off by
// default so tests only see the events they produce.
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	return &TestConfigBuilder{
		projectRoot:      projectRoot,
		extensions:       []string{".prefab", ".unity"},
		exclusions:       config.DefaultExclusions(),
		workers:          2,
		respectGitignore: true,
		timeoutMs:        5000,
	}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.exclusions = append(b.exclusions, patterns...)
	return b
}

// WithExtensions replaces the document extensions
func (b *TestConfigBuilder) WithExtensions(exts ...string) *TestConfigBuilder {
	b.extensions = exts
	return b
}

// WithWorkers sets the parallel scan worker count
func (b *TestConfigBuilder) WithWorkers(n int) *TestConfigBuilder {
	b.workers = n
	return b
}

// WithWatch enables the file watcher with the given debounce
func (b *TestConfigBuilder) WithWatch(enabled bool, debounceMs int) *TestConfigBuilder {
	b.watch = enabled
	b.debounceMs = debounceMs
	return b
}

// WithGitignore toggles .gitignore handling
func (b *TestConfigBuilder) WithGitignore(enabled bool) *TestConfigBuilder {
	b.respectGitignore = enabled
	return b
}

// Build creates the final test config with all settings
func (b *TestConfigBuilder) Build() *config.Config {
	return &config.Config{
		Version: 1,
		Project: config.Project{
			Root: b.projectRoot,
			Name: "test-project",
		},
		Index: config.Index{
			Extensions:        b.extensions,
			MaxLineBytes:      config.DefaultMaxLineBytes,
			DocumentTimeoutMs: b.timeoutMs,
			RespectGitignore:  b.respectGitignore,
			WatchMode:         b.watch,
			WatchDebounceMs:   b.debounceMs,
		},
		Performance: config.Performance{
			ParallelFileWorkers: b.workers,
		},
		Companion: config.Companion{
			MetaExtension:    config.DefaultMetaExtension,
			SourceExtensions: []string{".cs"},
		},
		Exclude: b.exclusions,
	}
}
