package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mbrgrep/internal/cache"
	"github.com/standardbeagle/mbrgrep/internal/config"
	"github.com/standardbeagle/mbrgrep/internal/debug"
	"github.com/standardbeagle/mbrgrep/internal/remote"
	"github.com/standardbeagle/mbrgrep/internal/search"
	"github.com/standardbeagle/mbrgrep/internal/version"
)

// newExecutor picks the executor for cfg. Replaced in tests.
var newExecutor = func(cfg *config.Config, forceLocal bool) (remote.Executor, func(), error) {
	if forceLocal || !cfg.IsRemote() {
		debug.LogRemote("running commands on the local machine\n")
		return remote.NewLocalExecutor(), func() {}, nil
	}
	exec, err := remote.NewSSHExecutor(cfg.SSHConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up connection to %s: %w", cfg.Connection.Host, err)
	}
	return exec, func() {
		if err := exec.Close(); err != nil {
			debug.LogRemote("close failed: %v\n", err)
		}
	}, nil
}

// loadConfigWithOverrides loads settings and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		cfg = loaded
	} else {
		root := settingsDir(c)
		loaded, err := config.Load(root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", root, err)
		}
		cfg = loaded
	}

	// Apply CLI flag overrides
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if host := c.String("host"); host != "" {
		cfg.Connection.Host = host
	}
	if user := c.String("user"); user != "" {
		cfg.Connection.User = user
	}
	if c.IsSet("max-parallel") {
		cfg.Search.MaxParallelSearches = c.Int("max-parallel")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settingsDir is the directory searched for settings files
func settingsDir(c *cli.Context) string {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// openOrchestrator builds the executor, optional output cache and
// orchestrator for cfg. The returned func releases all of them.
func openOrchestrator(cfg *config.Config, forceLocal bool) (*search.Orchestrator, func(), error) {
	exec, closeExec, err := newExecutor(cfg, forceLocal)
	if err != nil {
		return nil, nil, err
	}

	var oc *cache.OutputCache
	if cc, ok := cfg.CacheConfig(); ok {
		oc = cache.NewOutputCache(cc)
	}
	cleanup := func() {
		oc.Close()
		closeExec()
	}

	orch, err := search.New(exec, cfg.OrchestratorConfig(oc))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "mbrgrep",
		Usage:                  "Search IBM i source members from the command line or an AI assistant",
		Version:                version.Full(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Settings file path (default: .mbrgrep.kdl or .mbrgrep.toml in --root)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory searched for settings files",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "IBM i host to connect to over SSH (overrides settings)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "SSH user (overrides settings)",
			},
			&cli.IntFlag{
				Name:  "max-parallel",
				Usage: "Maximum patterns searched at once (overrides settings)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Drop hits whose path matches a glob (e.g., --exclude '/QSYS.LIB/QGPL.LIB/**')",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search source members for a term",
				ArgsUsage: "TERM LOCATION [LOCATION...]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "patterns",
						Aliases: []string{"p"},
						Usage:   "Locations to search (LIB, LIB/FILE, LIB/FILE/MEMBER, ALL), comma separated or repeated",
					},
					&cli.BoolFlag{
						Name:    "case-sensitive",
						Aliases: []string{"s"},
						Usage:   "Match case exactly",
					},
					&cli.BoolFlag{
						Name:    "ignore-case",
						Aliases: []string{"i"},
						Usage:   "Ignore case (the default unless settings say otherwise)",
					},
					&cli.BoolFlag{
						Name:    "regex",
						Aliases: []string{"E"},
						Usage:   "Treat TERM as an extended regular expression",
					},
					&cli.IntFlag{
						Name:    "after-context",
						Aliases: []string{"A"},
						Usage:   "Lines of context after each match (0-50)",
					},
					&cli.IntFlag{
						Name:    "max-count",
						Aliases: []string{"m"},
						Usage:   "Stop after this many matches per member",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, compact or json",
						Value:   "text",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON (same as --format json)",
					},
					&cli.BoolFlag{
						Name:  "paths",
						Usage: "Show IFS paths instead of LIB/FILE/MEMBER",
					},
					&cli.IntFlag{
						Name:  "max-lines",
						Usage: "Lines shown per member in text output, 0 = all",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress on stderr",
					},
					&cli.BoolFlag{
						Name:  "local",
						Usage: "Run commands on this machine even when a host is configured",
					},
					&cli.StringFlag{
						Name:  "search-id",
						Usage: "Identifier for the search, generated when omitted",
					},
				},
				Action: searchCommand,
			},
			{
				Name:      "resolve",
				Usage:     "Show the path and command each location resolves to without running anything",
				ArgsUsage: "TERM LOCATION [LOCATION...]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "patterns",
						Aliases: []string{"p"},
						Usage:   "Locations to resolve",
					},
					&cli.BoolFlag{
						Name:    "case-sensitive",
						Aliases: []string{"s"},
						Usage:   "Match case exactly",
					},
					&cli.BoolFlag{
						Name:    "regex",
						Aliases: []string{"E"},
						Usage:   "Treat TERM as an extended regular expression",
					},
					&cli.IntFlag{
						Name:    "after-context",
						Aliases: []string{"A"},
						Usage:   "Lines of context after each match (0-50)",
					},
					&cli.IntFlag{
						Name:    "max-count",
						Aliases: []string{"m"},
						Usage:   "Stop after this many matches per member",
					},
				},
				Action: resolveCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP server on stdio",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Manage settings files",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a settings file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Settings format: kdl or toml",
								Value:   "kdl",
							},
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file (default: .mbrgrep.kdl or .mbrgrep.toml in --root)",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
						Action: configInitCommand,
					},
					{
						Name:  "show",
						Usage: "Print the effective settings",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Output format: kdl or table",
								Value:   "kdl",
							},
						},
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Check the settings files for errors and unknown keys",
						Action: configValidateCommand,
					},
				},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 && isMCPMode() {
				return mcpCommand(c)
			}
			return cli.ShowAppHelp(c)
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
