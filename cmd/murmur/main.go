package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/kvfile"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/mcp"
	"github.com/hpungsan/murmur/internal/notes"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "list": true, "show": true, "delete": true,
	"record": true, "export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  murmur

  Quick notes, typed or dictated

  Usage: murmur <command> [options]
         murmur --help

  MCP server mode requires piped input.`)
}

// env holds what every command needs once storage is open.
type env struct {
	baseDir string
	cfg     *config.Config
	store   *notes.Store
	log     *slog.Logger
}

// openStore loads the note collection from the configured backend.
// The returned func releases the backend.
func openStore(ctx context.Context, baseDir string, cfg *config.Config, logger *slog.Logger) (*notes.Store, func() error, error) {
	var (
		kv      notes.Storage
		closeFn = func() error { return nil }
	)

	switch cfg.StorageBackend {
	case config.BackendFile:
		fileKV, err := kvfile.Open(filepath.Join(baseDir, "kv"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		kv = fileKV
	case config.BackendSQLite, "":
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		kv = db.NewKV(database)
		closeFn = database.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage_backend %q (want %q or %q)", cfg.StorageBackend, config.BackendSQLite, config.BackendFile)
	}

	store := notes.New(kv,
		notes.WithKey(cfg.StorageKey),
		notes.WithLocale(cfg.Locale),
		notes.WithMaxChars(cfg.NoteMaxChars),
		notes.WithLogger(logger),
	)
	store.Load(ctx)
	return store, closeFn, nil
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before storage init
	if isHelpOrVersion(args) {
		if err := newCLIApp(nil).Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) >= 2 && !isCLIMode(args) && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'murmur --help' for usage.\n")
		return 1
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}
	baseDir := filepath.Join(homeDir, ".murmur")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	// stdout belongs to CLI output and the MCP transport
	logger := logging.New(os.Stderr, cfg.LogLevel)

	store, closeStore, err := openStore(context.Background(), baseDir, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close storage", slog.Any("error", err))
		}
	}()

	e := &env{baseDir: baseDir, cfg: cfg, store: store, log: logger}

	if isCLIMode(args) {
		if err := newCLIApp(e).Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	if err := mcp.Run(store, cfg, Version, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
