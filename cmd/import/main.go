package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/scoutstat/internal/adapters/repository"
	"github.com/okian/scoutstat/internal/config"
	"github.com/okian/scoutstat/internal/importer"
	"github.com/okian/scoutstat/pkg/logger"
)

func main() {
	var (
		dbPath  = flag.String("db", "", "SQLite database path (default: db_path from config)")
		dir     = flag.String("dir", "", "Directory of {season}-{event}-{matches|scores}.json files")
		watch   = flag.Bool("watch", false, "Keep watching -dir and import new or changed files")
		tz      = flag.String("tz", "", "Timezone match start times were recorded in (default: timezone from config)")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, options{
		dbPath: *dbPath,
		dir:    *dir,
		watch:  *watch,
		tz:     *tz,
		files:  flag.Args(),
	})
	stop()
	if err != nil {
		os.Stderr.WriteString("import failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

type options struct {
	dbPath string
	dir    string
	watch  bool
	tz     string
	files  []string
}

func run(ctx context.Context, opts options) error {
	log := logger.Get().Named("import")

	if opts.dir == "" && len(opts.files) == 0 {
		return fmt.Errorf("nothing to import: pass -dir or file arguments")
	}
	if opts.watch && opts.dir == "" {
		return fmt.Errorf("-watch requires -dir")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if opts.tz != "" {
		cfg.Timezone = opts.tz
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, cfg.DBPath,
		repository.WithAutoMigrate(true),
		repository.WithLocation(loc),
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	im, err := importer.New(store, importer.WithLogger(log))
	if err != nil {
		return err
	}

	var total importer.Summary
	for _, f := range opts.files {
		sum, err := im.ImportFile(ctx, f)
		if err != nil {
			return err
		}
		total.Add(sum)
	}
	if opts.dir != "" {
		sum, err := im.ImportDir(ctx, opts.dir)
		if err != nil {
			return err
		}
		total.Add(sum)
	}

	log.Info(ctx, "import finished",
		logger.String("db", cfg.DBPath),
		logger.Int("files", total.Files),
		logger.Int("skipped", total.Skipped),
		logger.Int("matches", total.Matches),
		logger.Int("scores", total.Scores))

	if opts.watch {
		return im.Watch(ctx, opts.dir)
	}
	return nil
}

// showHelp prints usage information for the import tool.
func showHelp() {
	os.Stdout.WriteString(`scoutstat import
================

Loads FTC Event API match and score dumps into the scoutstat database.

Usage:
  go run ./cmd/import [options] [file ...]

Files must be named {season}-{event}-matches.json or
{season}-{event}-scores.json, for example 2024-USTXHOU-matches.json.

Options:
  -db string
        SQLite database path (default: db_path from config)
  -dir string
        Directory to import
  -watch
        Keep watching -dir and import new or changed files
  -tz string
        Timezone match start times were recorded in
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Import one event
  go run ./cmd/import 2024-USTXHOU-matches.json 2024-USTXHOU-scores.json

  # Import a directory and keep watching it
  go run ./cmd/import -dir data/ftc -watch
`)
}
