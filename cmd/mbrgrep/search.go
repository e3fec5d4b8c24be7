package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mbrgrep/internal/config"
	"github.com/standardbeagle/mbrgrep/internal/display"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// buildRequest reads TERM and locations from the arguments and applies
// option flags over the settings defaults
func buildRequest(c *cli.Context, cfg *config.Config) (searchtypes.SearchRequest, error) {
	if c.NArg() < 1 {
		return searchtypes.SearchRequest{}, errors.New("search term is required")
	}
	term := c.Args().First()

	patterns := append([]string{}, c.StringSlice("patterns")...)
	patterns = append(patterns, c.Args().Tail()...)
	if len(patterns) == 0 {
		return searchtypes.SearchRequest{}, errors.New("at least one location is required (e.g., ACME/QRPGLESRC)")
	}

	opts := cfg.SearchOptions()
	if c.Bool("case-sensitive") && c.Bool("ignore-case") {
		return searchtypes.SearchRequest{}, errors.New("--case-sensitive and --ignore-case cannot be combined")
	}
	if c.IsSet("case-sensitive") {
		opts.CaseSensitive = c.Bool("case-sensitive")
	}
	if c.Bool("ignore-case") {
		opts.CaseSensitive = false
	}
	if c.IsSet("regex") {
		opts.UseRegex = c.Bool("regex")
	}
	if c.IsSet("after-context") {
		opts.AfterContext = c.Int("after-context")
	}
	if c.IsSet("max-count") {
		opts.MaxMatches = c.Int("max-count")
	}

	return searchtypes.SearchRequest{
		SearchID: c.String("search-id"),
		Term:     term,
		Patterns: patterns,
		Options:  opts,
	}, nil
}

func determineFormat(c *cli.Context) (string, error) {
	if c.Bool("json") {
		return display.FormatJSON, nil
	}
	format := strings.ToLower(c.String("format"))
	switch format {
	case display.FormatText, display.FormatCompact, display.FormatJSON:
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q, expected text, compact or json", c.String("format"))
}

func searchCommand(c *cli.Context) error {
	format, err := determineFormat(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	req, err := buildRequest(c, cfg)
	if err != nil {
		return err
	}

	orch, cleanup, err := openOrchestrator(cfg, c.Bool("local"))
	if err != nil {
		return err
	}
	defer cleanup()

	// Ctrl-C cancels the search but still prints what was found
	ctx, stop := withSignals(c.Context)
	defer stop()

	var progress searchtypes.ProgressFunc
	if c.Bool("progress") {
		progress = func(completed, total int, snapshot *searchtypes.SearchResult) {
			fmt.Fprintln(c.App.ErrWriter, display.FormatProgress(completed, total, snapshot))
		}
	}

	result, err := orch.Execute(ctx, req, progress)
	if err != nil {
		return err
	}

	formatter := display.NewResultFormatter(display.FormatterOptions{
		Format:      format,
		ShowContext: true,
		ShowPaths:   c.Bool("paths"),
		MaxLines:    c.Int("max-lines"),
	})
	fmt.Fprint(c.App.Writer, formatter.Format(result))
	if format == display.FormatJSON {
		fmt.Fprintln(c.App.Writer)
	}

	return searchExitError(result)
}

// searchExitError turns failed locations into a command error. Hits from
// the other locations have already been printed.
func searchExitError(result *searchtypes.SearchResult) error {
	if summary := result.FailureSummary(); summary != "" {
		return errors.New(summary)
	}
	return nil
}

func resolveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	req, err := buildRequest(c, cfg)
	if err != nil {
		return err
	}

	// Planning never sends a command, so the local executor is enough
	orch, cleanup, err := openOrchestrator(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := orch.Plan(req)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, display.FormatPlan(plan))
	return nil
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
