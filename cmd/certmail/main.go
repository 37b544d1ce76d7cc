package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/db"
	"github.com/hpungsan/certmail/internal/logger"
	"github.com/hpungsan/certmail/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// EnvHome overrides the default ~/.certmail home directory.
const EnvHome = "CERTMAIL_HOME"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"names": true, "render": true, "check": true, "send": true,
	"extract": true, "run": true, "history": true,
	"help": true,
}

// firstCommand returns the first argument that is not the global --home flag.
func firstCommand(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--home" || arg == "-home":
			i++
		case strings.HasPrefix(arg, "--home=") || strings.HasPrefix(arg, "-home="):
		default:
			return arg
		}
	}
	return ""
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	arg := firstCommand(os.Args)
	if arg == "" {
		return false // No command → MCP server
	}
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	arg := firstCommand(os.Args)
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// homeFromArgs resolves the home directory: --home, then $CERTMAIL_HOME,
// then ~/.certmail.
func homeFromArgs(args []string) (string, error) {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--home" || arg == "-home" {
			if i+1 < len(args) {
				return args[i+1], nil
			}
			return "", fmt.Errorf("--home needs a directory")
		}
		if v, ok := strings.CutPrefix(arg, "--home="); ok {
			return v, nil
		}
		if v, ok := strings.CutPrefix(arg, "-home="); ok {
			return v, nil
		}
		if !strings.HasPrefix(arg, "-") {
			break // flags after the subcommand belong to it
		}
	}
	if v := os.Getenv(EnvHome); v != "" {
		return v, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".certmail"), nil
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ ___ ___ _____ __  __   _   ___ _
  / __| __| _ \_   _|  \/  | /_\ |_ _| |
 | (__| _||   / | | | |\/| |/ _ \ | || |__
  \___|___|_|_\ |_| |_|  |_/_/ \_\___|____|

  Certificates, rendered and mailed

  Usage: certmail <command> [options]
         certmail --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if firstCommand(os.Args) == "" && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, "")
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	home, err := homeFromArgs(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWithRepo(home, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.Secrets, err = config.LoadSecrets(filepath.Join(cwd, ".env"), filepath.Join(home, ".env"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to read .env: %v\n", err)
		os.Exit(1)
	}

	log, logFile, err := logger.Open(home, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	database, err := db.Init(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.IntoContext(ctx, log)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, home)
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			stop()
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", firstCommand(os.Args))
		fmt.Fprintf(os.Stderr, "Run 'certmail --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, home, Version, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
