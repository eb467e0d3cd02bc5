package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	scerrors "github.com/standardbeagle/scriptref/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return scerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return scerrors.NewConfigError("index", strings.Join(cfg.Index.Extensions, ","), err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return scerrors.NewConfigError("performance", strconv.Itoa(cfg.Performance.ParallelFileWorkers), err)
	}

	if err := v.validateCompanionConfig(&cfg.Companion); err != nil {
		return scerrors.NewConfigError("companion", cfg.Companion.MetaExtension, err)
	}

	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return scerrors.NewConfigError("exclude", pattern, errors.New("invalid glob pattern"))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if len(index.Extensions) == 0 {
		return errors.New("at least one document extension is required")
	}
	for _, ext := range index.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
		if strings.ContainsAny(ext, "/\\{},*?[]") {
			return fmt.Errorf("extension %q contains glob or path characters", ext)
		}
	}

	if index.MaxLineBytes < 0 {
		return fmt.Errorf("MaxLineBytes cannot be negative, got %d", index.MaxLineBytes)
	}

	if index.DocumentTimeoutMs < 0 {
		return fmt.Errorf("DocumentTimeoutMs cannot be negative, got %d", index.DocumentTimeoutMs)
	}

	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}

	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// ParallelFileWorkers: 0 means auto-detect (will be set by smart defaults)
	if perf.ParallelFileWorkers < 0 {
		return fmt.Errorf("ParallelFileWorkers cannot be negative, got %d", perf.ParallelFileWorkers)
	}
	return nil
}

func (v *Validator) validateCompanionConfig(c *Companion) error {
	if c.MetaExtension != "" && !strings.HasPrefix(c.MetaExtension, ".") {
		return fmt.Errorf("meta extension %q must start with a dot", c.MetaExtension)
	}
	return nil
}

// setSmartDefaults applies defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core for the editor and the OS
	if cfg.Performance.ParallelFileWorkers == 0 {
		cfg.Performance.ParallelFileWorkers = max(1, runtime.NumCPU()-1)
	}

	if cfg.Index.MaxLineBytes == 0 {
		cfg.Index.MaxLineBytes = DefaultMaxLineBytes
	}

	if cfg.Companion.MetaExtension == "" {
		cfg.Companion.MetaExtension = DefaultMetaExtension
	}

	if len(cfg.Companion.SourceExtensions) == 0 {
		cfg.Companion.SourceExtensions = []string{".cs"}
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
