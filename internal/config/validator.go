package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/mbrgrep/internal/command"
	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
	"github.com/standardbeagle/mbrgrep/internal/remote"
	"github.com/standardbeagle/mbrgrep/internal/search"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// Validator validates configuration and fills in defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults normalizes cfg in place. After it returns nil every
// field holds a usable value and no caller needs to apply defaults again.
// Every failing section is reported, not just the first.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	var errs []error
	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		errs = append(errs, mbrerrors.NewConfigError("search", "", err))
	}

	if err := v.validateConnectionConfig(&cfg.Connection); err != nil {
		errs = append(errs, mbrerrors.NewConfigError("connection", "", err))
	}

	if err := v.validateExclude(cfg); err != nil {
		errs = append(errs, mbrerrors.NewConfigError("exclude", "", err))
	}

	return mbrerrors.NewMultiError(errs).ErrorOrNil()
}

func (v *Validator) validateSearchConfig(s *Search) error {
	if s.MaxParallelSearches == 0 {
		s.MaxParallelSearches = search.DefaultMaxParallel
	}
	if s.MaxParallelSearches < 1 || s.MaxParallelSearches > search.MaxParallelLimit {
		return fmt.Errorf("max_parallel_searches must be between 1 and %d, got %d",
			search.MaxParallelLimit, s.MaxParallelSearches)
	}

	if s.AfterContext < 0 || s.AfterContext > searchtypes.MaxAfterContext {
		return fmt.Errorf("after_context must be between 0 and %d, got %d",
			searchtypes.MaxAfterContext, s.AfterContext)
	}

	if s.MaxMatches < 0 {
		return fmt.Errorf("max_matches cannot be negative, got %d", s.MaxMatches)
	}

	if s.GrepPath == "" {
		s.GrepPath = command.DefaultGrepPath
	}
	if !strings.HasPrefix(s.GrepPath, "/") {
		return fmt.Errorf("grep_path must be absolute, got %q", s.GrepPath)
	}

	env, err := remote.ParseEnvironment(s.Environment)
	if err != nil {
		return err
	}
	if env == remote.EnvCL {
		return errors.New("environment 'cl' cannot run the search utility, use 'pase' or 'qsh'")
	}
	s.Environment = env.String()

	if s.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %v", s.CacheTTL)
	}

	return nil
}

func (v *Validator) validateConnectionConfig(c *Connection) error {
	c.Host = strings.TrimSpace(c.Host)

	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout cannot be negative, got %v", c.ConnectTimeout)
	}

	if c.Host != "" && c.User == "" {
		return fmt.Errorf("user is required when host %q is set", c.Host)
	}

	c.KeyFile = expandHome(c.KeyFile)
	c.KnownHosts = expandHome(c.KnownHosts)
	return nil
}

func (v *Validator) validateExclude(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Exclude))
	out := make([]string, 0, len(cfg.Exclude))
	for _, pattern := range cfg.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || seen[pattern] {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
		seen[pattern] = true
		out = append(out, pattern)
	}
	cfg.Exclude = out
	return nil
}

// expandHome replaces a leading ~/ with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
