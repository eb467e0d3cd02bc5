package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/standardbeagle/scriptref/internal/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Project.Root = "/test/root"
	return cfg
}

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Performance.ParallelFileWorkers = 0
	cfg.Index.MaxLineBytes = 0
	cfg.Companion.MetaExtension = ""
	cfg.Companion.SourceExtensions = nil

	require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))

	assert.GreaterOrEqual(t, cfg.Performance.ParallelFileWorkers, 1)
	assert.Equal(t, int64(DefaultMaxLineBytes), cfg.Index.MaxLineBytes)
	assert.Equal(t, DefaultMetaExtension, cfg.Companion.MetaExtension)
	assert.Equal(t, []string{".cs"}, cfg.Companion.SourceExtensions)
}

func TestValidateConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"no extensions", func(c *Config) { c.Index.Extensions = nil }, "index"},
		{"extension without dot", func(c *Config) { c.Index.Extensions = []string{"prefab"} }, "index"},
		{"extension with glob", func(c *Config) { c.Index.Extensions = []string{".pre*"} }, "index"},
		{"negative line limit", func(c *Config) { c.Index.MaxLineBytes = -1 }, "index"},
		{"negative timeout", func(c *Config) { c.Index.DocumentTimeoutMs = -5 }, "index"},
		{"negative debounce", func(c *Config) { c.Index.WatchDebounceMs = -5 }, "index"},
		{"negative workers", func(c *Config) { c.Performance.ParallelFileWorkers = -1 }, "performance"},
		{"meta without dot", func(c *Config) { c.Companion.MetaExtension = "meta" }, "companion"},
		{"bad exclude glob", func(c *Config) { c.Exclude = []string{"**/[Lib/**"} }, "exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var cfgErr *scerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.section, cfgErr.Field)
		})
	}
}

func TestValidateConfig_ZeroTimeoutAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Index.DocumentTimeoutMs = 0
	cfg.Index.WatchDebounceMs = 0
	assert.NoError(t, ValidateConfig(cfg))
}
