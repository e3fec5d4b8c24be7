package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/standardbeagle/mbrgrep/internal/cache"
	"github.com/standardbeagle/mbrgrep/internal/command"
	"github.com/standardbeagle/mbrgrep/internal/debug"
	"github.com/standardbeagle/mbrgrep/internal/remote"
	"github.com/standardbeagle/mbrgrep/internal/search"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// Settings file names, looked up in the project directory and the home directory
const (
	KDLFileName  = ".mbrgrep.kdl"
	TOMLFileName = ".mbrgrep.toml"
)

const (
	DefaultPort           = 22
	DefaultConnectTimeout = 15 * time.Second
	DefaultEnvironment    = "pase"
)

type Config struct {
	Version    int
	Search     Search
	Connection Connection
	Exclude    []string // Glob patterns over resource paths, matched case-insensitively

	// Unknown keys found while parsing, with suggestions
	Warnings []string
	// File the settings were read from, empty for built-in defaults
	Source string
}

// Search holds the default search options and dispatch settings
type Search struct {
	MaxParallelSearches int
	CaseSensitive       bool
	UseRegex            bool
	AfterContext        int
	MaxMatches          int // 0 = unlimited
	GrepPath            string
	Environment         string        // pase or qsh
	CacheTTL            time.Duration // 0 disables the output cache
}

// Connection describes how to reach the IBM i. An empty Host runs commands
// on the local machine, which is how the tool runs inside PASE itself.
type Connection struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	PasswordEnv    string // Name of the environment variable holding the password
	KnownHosts     string
	ConnectTimeout time.Duration
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Version: 1,
		Search: Search{
			MaxParallelSearches: search.DefaultMaxParallel,
			CaseSensitive:       false,
			UseRegex:            false,
			AfterContext:        0,
			MaxMatches:          0,
			GrepPath:            command.DefaultGrepPath,
			Environment:         DefaultEnvironment,
			CacheTTL:            cache.DefaultTTL,
		},
		Connection: Connection{
			Port:           DefaultPort,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Exclude: []string{},
	}
}

// Load reads the global settings from the home directory, then the settings
// in dir, merges them and validates the result. Missing files are not an error.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}

	// Step 1: global base settings, ignored when unreadable
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadDir(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		} else if err != nil {
			debug.LogConfig("ignoring global settings in %s: %v\n", homeDir, err)
		}
	}

	// Step 2: project settings
	projectConfig, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		cfg = baseConfig
	default:
		cfg = Default()
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir reads the settings file in dir. KDL is preferred over TOML.
// Returns nil, nil when neither file exists.
func LoadDir(dir string) (*Config, error) {
	for _, name := range []string{KDLFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		return LoadFile(path)
	}
	return nil, nil
}

// LoadFile reads one settings file, choosing the format by extension.
// The result is not validated.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kdl":
		cfg, err = parseKDL(string(content))
	case ".toml":
		cfg, err = parseTOML(content)
	default:
		return nil, fmt.Errorf("unsupported settings format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.Source = path
	for _, w := range cfg.Warnings {
		debug.LogConfig("%s: %s\n", path, w)
	}
	return cfg, nil
}

// mergeConfigs merges global settings under project settings.
// The project wins, exclusions are unioned and a project without a host
// inherits the global connection.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	seen := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
	merged.Exclude = make([]string, 0, len(base.Exclude)+len(project.Exclude))
	for _, list := range [][]string{base.Exclude, project.Exclude} {
		for _, pattern := range list {
			if !seen[pattern] {
				seen[pattern] = true
				merged.Exclude = append(merged.Exclude, pattern)
			}
		}
	}

	if project.Connection.Host == "" && base.Connection.Host != "" {
		merged.Connection = base.Connection
	}

	merged.Warnings = append(append([]string{}, base.Warnings...), project.Warnings...)
	return &merged
}

// SearchOptions returns the default options for a request
func (c *Config) SearchOptions() searchtypes.SearchOptions {
	return searchtypes.SearchOptions{
		CaseSensitive: c.Search.CaseSensitive,
		UseRegex:      c.Search.UseRegex,
		AfterContext:  c.Search.AfterContext,
		MaxMatches:    c.Search.MaxMatches,
	}
}

// Env returns the parsed command environment, defaulting to PASE
func (c *Config) Env() remote.Environment {
	env, err := remote.ParseEnvironment(c.Search.Environment)
	if err != nil {
		return remote.EnvPASE
	}
	return env
}

// IsRemote reports whether commands go over SSH
func (c *Config) IsRemote() bool {
	return c.Connection.Host != ""
}

// SSHConfig builds the executor settings. The password is read from the
// environment variable named by PasswordEnv.
func (c *Config) SSHConfig() remote.SSHConfig {
	cfg := remote.SSHConfig{
		Host:           c.Connection.Host,
		Port:           c.Connection.Port,
		User:           c.Connection.User,
		KeyFile:        c.Connection.KeyFile,
		KnownHosts:     c.Connection.KnownHosts,
		ConnectTimeout: c.Connection.ConnectTimeout,
	}
	if c.Connection.PasswordEnv != "" {
		cfg.Password = os.Getenv(c.Connection.PasswordEnv)
	}
	return cfg
}

// OrchestratorConfig returns the dispatch settings. oc may be nil.
func (c *Config) OrchestratorConfig(oc *cache.OutputCache) search.Config {
	return search.Config{
		MaxParallel: c.Search.MaxParallelSearches,
		GrepPath:    c.Search.GrepPath,
		Environment: c.Env(),
		Exclude:     append([]string{}, c.Exclude...),
		Cache:       oc,
	}
}

// CacheConfig returns the output cache settings, ok is false when caching is off
func (c *Config) CacheConfig() (cache.CacheConfig, bool) {
	if c.Search.CacheTTL <= 0 {
		return cache.CacheConfig{}, false
	}
	cc := cache.DefaultCacheConfig()
	cc.TTL = c.Search.CacheTTL
	return cc, true
}
