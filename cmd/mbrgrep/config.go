package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mbrgrep/internal/config"
)

func configInitCommand(c *cli.Context) error {
	format := strings.ToLower(c.String("format"))
	output := c.String("output")

	var content string
	switch format {
	case "kdl":
		content = kdlTemplate
		if output == "" {
			output = filepath.Join(settingsDir(c), config.KDLFileName)
		}
	case "toml":
		content = tomlTemplate
		if output == "" {
			output = filepath.Join(settingsDir(c), config.TOMLFileName)
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("settings file %s already exists (use --force to overwrite)", output)
		}
	}

	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Settings file created: %s\n", output)
	fmt.Fprintf(w, "\nCommon customizations:\n")
	fmt.Fprintf(w, "  - Connect to an IBM i over SSH: connection.host and connection.user\n")
	fmt.Fprintf(w, "  - Search more locations at once: search.max_parallel_searches\n")
	fmt.Fprintf(w, "  - Skip libraries: exclude { \"/QSYS.LIB/QGPL.LIB/**\" }\n")
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch strings.ToLower(c.String("format")) {
	case "table":
		displayConfigTable(c.App.Writer, cfg)
	case "kdl", "":
		fmt.Fprint(c.App.Writer, configToKDL(cfg))
	default:
		return fmt.Errorf("unsupported format: %s", c.String("format"))
	}
	return nil
}

func configValidateCommand(c *cli.Context) error {
	w := c.App.Writer

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Fprintf(w, "Configuration validation failed: %v\n", err)
		return err
	}

	source := cfg.Source
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(w, "Configuration is valid\n")
	fmt.Fprintf(w, "Source: %s\n", source)
	target := "local commands"
	if cfg.IsRemote() {
		target = fmt.Sprintf("%s@%s", cfg.Connection.User, cfg.SSHConfig().Addr())
	}
	fmt.Fprintf(w, "Settings: %s, %d parallel searches, %s environment\n",
		target, cfg.Search.MaxParallelSearches, cfg.Search.Environment)

	if len(cfg.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range cfg.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	return nil
}

// configToKDL renders the effective settings as a .mbrgrep.kdl document
func configToKDL(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("// Current mbrgrep settings\n\n")

	fmt.Fprintf(&sb, `search {
    max_parallel_searches %d
    case_sensitive %t
    use_regex %t
    after_context %d
    max_matches %d
    grep_path %q
    environment %q
    cache_ttl %q
}
`,
		cfg.Search.MaxParallelSearches,
		cfg.Search.CaseSensitive,
		cfg.Search.UseRegex,
		cfg.Search.AfterContext,
		cfg.Search.MaxMatches,
		cfg.Search.GrepPath,
		cfg.Search.Environment,
		cfg.Search.CacheTTL.String(),
	)

	if cfg.IsRemote() {
		sb.WriteString("\nconnection {\n")
		fmt.Fprintf(&sb, "    host %q\n", cfg.Connection.Host)
		fmt.Fprintf(&sb, "    port %d\n", cfg.Connection.Port)
		fmt.Fprintf(&sb, "    user %q\n", cfg.Connection.User)
		writeOptionalString(&sb, "key_file", cfg.Connection.KeyFile)
		writeOptionalString(&sb, "password_env", cfg.Connection.PasswordEnv)
		writeOptionalString(&sb, "known_hosts", cfg.Connection.KnownHosts)
		fmt.Fprintf(&sb, "    connect_timeout %q\n", cfg.Connection.ConnectTimeout.String())
		sb.WriteString("}\n")
	}

	if len(cfg.Exclude) > 0 {
		sb.WriteString("\nexclude {\n")
		for _, pattern := range cfg.Exclude {
			fmt.Fprintf(&sb, "    %q\n", pattern)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

func writeOptionalString(sb *strings.Builder, key, value string) {
	if value != "" {
		fmt.Fprintf(sb, "    %s %q\n", key, value)
	}
}

func displayConfigTable(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "mbrgrep Configuration\n")
	fmt.Fprintf(w, "=====================\n\n")

	source := cfg.Source
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(w, "Source: %s\n\n", source)

	fmt.Fprintf(w, "Search Settings:\n")
	fmt.Fprintf(w, "  Max parallel:      %d\n", cfg.Search.MaxParallelSearches)
	fmt.Fprintf(w, "  Case sensitive:    %t\n", cfg.Search.CaseSensitive)
	fmt.Fprintf(w, "  Regex:             %t\n", cfg.Search.UseRegex)
	fmt.Fprintf(w, "  After context:     %d\n", cfg.Search.AfterContext)
	fmt.Fprintf(w, "  Max matches:       %d\n", cfg.Search.MaxMatches)
	fmt.Fprintf(w, "  Grep path:         %s\n", cfg.Search.GrepPath)
	fmt.Fprintf(w, "  Environment:       %s\n", cfg.Search.Environment)
	fmt.Fprintf(w, "  Cache TTL:         %s\n", cfg.Search.CacheTTL)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Connection:\n")
	if cfg.IsRemote() {
		fmt.Fprintf(w, "  Address:           %s\n", cfg.SSHConfig().Addr())
		fmt.Fprintf(w, "  User:              %s\n", cfg.Connection.User)
		fmt.Fprintf(w, "  Connect timeout:   %s\n", cfg.Connection.ConnectTimeout)
	} else {
		fmt.Fprintf(w, "  local\n")
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Exclude Patterns (%d):\n", len(cfg.Exclude))
	for _, pattern := range cfg.Exclude {
		fmt.Fprintf(w, "  %s\n", pattern)
	}
}

const kdlTemplate = `// mbrgrep settings
// Global defaults may also live in ~/.mbrgrep.kdl, this file wins over them.

search {
    max_parallel_searches 4        // Locations searched at once (1-32)
    case_sensitive false
    use_regex false
    after_context 0                // Lines after each match (0-50)
    max_matches 0                  // Per member, 0 = unlimited
    grep_path "/QOpenSys/pkgs/bin/grep"
    environment "pase"             // pase or qsh
    cache_ttl "5m"                 // "0s" disables the output cache
}

// Leave out the connection block to run commands on this machine (inside PASE)
// connection {
//     host "ibmi.example.com"
//     user "DEVELOPER"
//     key_file "~/.ssh/id_ed25519"
//     known_hosts "~/.ssh/known_hosts"
// }

// Drop hits whose path matches a glob
// exclude {
//     "/QSYS.LIB/QGPL.LIB/**"
// }
`

const tomlTemplate = `# mbrgrep settings
# Global defaults may also live in ~/.mbrgrep.toml, this file wins over them.

# exclude = ["/QSYS.LIB/QGPL.LIB/**"]

[search]
max_parallel_searches = 4
case_sensitive = false
use_regex = false
after_context = 0
max_matches = 0
grep_path = "/QOpenSys/pkgs/bin/grep"
environment = "pase"
cache_ttl = "5m"

# [connection]
# host = "ibmi.example.com"
# user = "DEVELOPER"
# key_file = "~/.ssh/id_ed25519"
`
