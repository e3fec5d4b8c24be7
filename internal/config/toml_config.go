package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// parseTOML reads a .mbrgrep.toml document over the built-in defaults.
// The layout mirrors the KDL file:
//
//	exclude = ["/QSYS.LIB/QGPL.LIB/**"]
//
//	[search]
//	max_parallel_searches = 4
//	cache_ttl = "5m"
//
//	[connection]
//	host = "ibmi.example.com"
func parseTOML(content []byte) (*Config, error) {
	cfg := Default()

	var doc map[string]any
	if err := toml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for _, key := range sortedKeys(doc) {
		value := doc[key]
		switch key {
		case "search":
			table, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("'search' must be a table")
			}
			if err := applySearchTable(cfg, table); err != nil {
				return nil, err
			}
		case "connection":
			table, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("'connection' must be a table")
			}
			if err := applyConnectionTable(cfg, table); err != nil {
				return nil, err
			}
		case "exclude":
			list, err := stringList(key, value)
			if err != nil {
				return nil, err
			}
			cfg.Exclude = append(cfg.Exclude, list...)
		default:
			cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("", key, topLevelKeys))
		}
	}

	return cfg, nil
}

func applySearchTable(cfg *Config, table map[string]any) error {
	var err error
	for _, key := range sortedKeys(table) {
		value := table[key]
		switch key {
		case "max_parallel_searches":
			cfg.Search.MaxParallelSearches, err = intValue(key, value)
		case "case_sensitive":
			cfg.Search.CaseSensitive, err = boolValue(key, value)
		case "use_regex":
			cfg.Search.UseRegex, err = boolValue(key, value)
		case "after_context":
			cfg.Search.AfterContext, err = intValue(key, value)
		case "max_matches":
			cfg.Search.MaxMatches, err = intValue(key, value)
		case "grep_path":
			cfg.Search.GrepPath, err = stringValue(key, value)
		case "environment":
			cfg.Search.Environment, err = stringValue(key, value)
		case "cache_ttl":
			cfg.Search.CacheTTL, err = durationValue(key, value)
		default:
			cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("search", key, searchKeys))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyConnectionTable(cfg *Config, table map[string]any) error {
	var err error
	for _, key := range sortedKeys(table) {
		value := table[key]
		switch key {
		case "host":
			cfg.Connection.Host, err = stringValue(key, value)
		case "port":
			cfg.Connection.Port, err = intValue(key, value)
		case "user":
			cfg.Connection.User, err = stringValue(key, value)
		case "key_file":
			cfg.Connection.KeyFile, err = stringValue(key, value)
		case "password_env":
			cfg.Connection.PasswordEnv, err = stringValue(key, value)
		case "known_hosts":
			cfg.Connection.KnownHosts, err = stringValue(key, value)
		case "connect_timeout":
			cfg.Connection.ConnectTimeout, err = durationValue(key, value)
		default:
			cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("connection", key, connectionKeys))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intValue(key string, v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("'%s' must be a number, got %T", key, v)
	}
}

func boolValue(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("'%s' must be true or false, got %T", key, v)
	}
	return b, nil
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string, got %T", key, v)
	}
	return s, nil
}

func durationValue(key string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for '%s': %w", key, err)
		}
		return parsed, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	default:
		return 0, fmt.Errorf("'%s' must be a duration string or seconds, got %T", key, v)
	}
}

func stringList(key string, v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("'%s' must be a list of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("'%s' must be a list of strings, got %T", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}
