package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/logging"
	"github.com/GergesShamon/convenient-discussions/internal/mcp"
	"github.com/GergesShamon/convenient-discussions/internal/mwapi"
	"github.com/GergesShamon/convenient-discussions/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"locate": true, "reply": true, "add-subsection": true,
	"move": true, "moves": true,
	"anchor": true, "timestamp": true,
	"visit": true, "visits": true,
	"watch": true, "unwatch": true, "watched": true, "rename-watched": true,
	"import": true, "suggest": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a short banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  cdtool: talk page discussions from the command line

  Usage: cdtool <command> [options]
         cdtool --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".cdtool")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadEnv(cfg, filepath.Join(baseDir, ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load env: %v\n", err)
		os.Exit(1)
	}

	// stdout carries MCP traffic, so logs go to stderr.
	logger := logging.Setup(cfg, os.Stderr)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", "types", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	deps, err := buildDeps(database, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cdtool --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildDeps connects to the wiki when an API URL is configured and logs in
// when bot credentials are set.
func buildDeps(database *sql.DB, cfg *config.Config, logger *slog.Logger) (*ops.Deps, error) {
	var client *mwapi.Client
	if cfg.APIURL != "" {
		c, err := mwapi.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("wiki client: %w", err)
		}
		if cfg.BotUser != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := c.Login(ctx, cfg.BotUser, cfg.BotPassword); err != nil {
				return nil, fmt.Errorf("login as %s: %w", cfg.BotUser, err)
			}
		}
		client = c
	} else {
		logger.Info("api_url not set, wiki operations are disabled")
	}
	return ops.NewDeps(database, cfg, client, logger)
}
