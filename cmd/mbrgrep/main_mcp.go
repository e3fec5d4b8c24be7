package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mbrgrep/internal/debug"
	"github.com/standardbeagle/mbrgrep/internal/mcp"
)

func mcpCommand(c *cli.Context) error {
	// Enable MCP mode to suppress all debug output
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	orch, cleanup, err := openOrchestrator(cfg, false)
	if err != nil {
		return debug.Fatal("failed to set up search: %v\n", err)
	}
	defer cleanup()

	mcpServer, err := mcp.NewServer(orch, cfg)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An explicit --config file is not watched, only the settings directory
	if c.String("config") == "" {
		mcpServer.WatchSettings(ctx, settingsDir(c))
	}

	sigCtx, stop := withSignals(ctx)
	defer stop()

	// Start MCP server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- mcpServer.Start(ctx)
	}()

	// Wait for either server error or shutdown signal
	select {
	case err := <-errChan:
		cancel()
		mcpServer.Shutdown()
		if err != nil {
			return debug.Fatal("MCP server error: %v\n", err)
		}
		return nil
	case <-sigCtx.Done():
		debug.LogMCP("Received signal, shutting down gracefully...\n")
		cancel()

		// Give the server a moment to shutdown gracefully
		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()

		select {
		case <-errChan:
			debug.LogMCP("Server shutdown completed\n")
		case <-shutdownTimer.C:
			debug.LogMCP("Server shutdown timeout, forcing exit\n")
		}
		mcpServer.Shutdown()
		return nil
	}
}

// isMCPMode detects when the binary was started by an MCP client without
// the mcp subcommand
func isMCPMode() bool {
	// Priority 1: Explicit environment variable (for MCP clients to set)
	if v := os.Getenv("MBRGREP_MCP_MODE"); v == "1" || v == "true" {
		return true
	}

	// Priority 2: Non-terminal stdin (pipes, redirects) - likely JSON-RPC
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return true
	}

	// Priority 3: Check if running as MCP server binary
	if len(os.Args) > 0 {
		arg0 := strings.ToLower(filepath.Base(os.Args[0]))
		if strings.Contains(arg0, "mcp") {
			return true
		}
	}

	return isParentMCPClient()
}

// isParentMCPClient checks if parent process suggests MCP usage (Linux-specific)
func isParentMCPClient() bool {
	ppid := os.Getppid()
	if ppid <= 1 {
		return false
	}

	parentCmd, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", ppid))
	if err != nil {
		return false
	}
	parentName := strings.ToLower(strings.TrimSpace(string(parentCmd)))
	for _, client := range []string{"mcp-tui", "mcp-client", "claude", "cursor", "vscode"} {
		if strings.Contains(parentName, client) {
			return true
		}
	}
	return false
}
