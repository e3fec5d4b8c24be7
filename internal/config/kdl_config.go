package config

import (
	"fmt"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// parseKDL reads a .mbrgrep.kdl document over the built-in defaults:
//
//	search {
//	    max_parallel_searches 4
//	    after_context 2
//	    environment "pase"
//	    cache_ttl "5m"
//	}
//	connection {
//	    host "ibmi.example.com"
//	    user "DEVUSER"
//	    key_file "~/.ssh/id_ed25519"
//	}
//	exclude { "/QSYS.LIB/QGPL.LIB/**" }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch name := nodeName(n); name {
		case "search":
			for _, cn := range n.Children {
				if err := parseSearchNode(cfg, cn); err != nil {
					return nil, err
				}
			}
		case "connection":
			for _, cn := range n.Children {
				if err := parseConnectionNode(cfg, cn); err != nil {
					return nil, err
				}
			}
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, collectStringArgs(n)...)
		default:
			cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("", name, topLevelKeys))
		}
	}

	return cfg, nil
}

func parseSearchNode(cfg *Config, cn *document.Node) error {
	switch name := nodeName(cn); name {
	case "max_parallel_searches":
		if v, ok := firstIntArg(cn); ok {
			cfg.Search.MaxParallelSearches = v
		}
	case "case_sensitive":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Search.CaseSensitive = b
		}
	case "use_regex":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Search.UseRegex = b
		}
	case "after_context":
		if v, ok := firstIntArg(cn); ok {
			cfg.Search.AfterContext = v
		}
	case "max_matches":
		if v, ok := firstIntArg(cn); ok {
			cfg.Search.MaxMatches = v
		}
	case "grep_path":
		if s, ok := firstStringArg(cn); ok {
			cfg.Search.GrepPath = s
		}
	case "environment":
		if s, ok := firstStringArg(cn); ok {
			cfg.Search.Environment = s
		}
	case "cache_ttl":
		d, err := durationArg(cn)
		if err != nil {
			return err
		}
		cfg.Search.CacheTTL = d
	default:
		cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("search", name, searchKeys))
	}
	return nil
}

func parseConnectionNode(cfg *Config, cn *document.Node) error {
	switch name := nodeName(cn); name {
	case "host":
		assignSimpleString(cn, func(v string) { cfg.Connection.Host = v })
	case "port":
		if v, ok := firstIntArg(cn); ok {
			cfg.Connection.Port = v
		}
	case "user":
		assignSimpleString(cn, func(v string) { cfg.Connection.User = v })
	case "key_file":
		assignSimpleString(cn, func(v string) { cfg.Connection.KeyFile = v })
	case "password_env":
		assignSimpleString(cn, func(v string) { cfg.Connection.PasswordEnv = v })
	case "known_hosts":
		assignSimpleString(cn, func(v string) { cfg.Connection.KnownHosts = v })
	case "connect_timeout":
		d, err := durationArg(cn)
		if err != nil {
			return err
		}
		cfg.Connection.ConnectTimeout = d
	default:
		cfg.Warnings = append(cfg.Warnings, unknownKeyWarning("connection", name, connectionKeys))
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// durationArg accepts a Go duration string ("90s", "5m") or a whole
// number of seconds
func durationArg(n *document.Node) (time.Duration, error) {
	if s, ok := firstStringArg(n); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for '%s': %w", nodeName(n), err)
		}
		return d, nil
	}
	if v, ok := firstIntArg(n); ok {
		return time.Duration(v) * time.Second, nil
	}
	return 0, fmt.Errorf("missing duration for '%s'", nodeName(n))
}

// collectStringArgs supports both the inline form (exclude "a" "b") and the
// block form (exclude { "a"; "b" }) where each string is a child node name
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, set func(string)) {
	if s, ok := firstStringArg(n); ok {
		set(s)
	}
}
