// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yzzyx/imap-mirror/config"
	"github.com/yzzyx/imap-mirror/imap"
	"github.com/yzzyx/imap-mirror/journal"
	"github.com/yzzyx/imap-mirror/sync"
)

// Exit codes
const (
	exitOK             = 0
	exitUsage          = 1
	exitConfigNotFound = 2
	exitIOError        = 3
)

type options struct {
	Config    string   `short:"c" long:"config" default:"config.yml" description:"Config file location"`
	DryRun    bool     `short:"n" long:"dry-run" description:"Do not change the target stores, only log what would be done"`
	Accounts  []string `short:"a" long:"account" description:"Only synchronize the named account. Use this option multiple times to specify multiple accounts"`
	Mirror    bool     `long:"mirror" description:"Remove target messages that no longer exist in the source, for every account"`
	Debug     bool     `short:"d" long:"debug" description:"Enable debug logs. Overrides the log level in the configuration file"`
	DebugIMAP bool     `long:"debug-imap" description:"Write the IMAP protocol trace to stderr"`
	JSON      bool     `long:"json" description:"Log in JSON format"`
	Progress  bool     `short:"p" long:"progress" description:"Show a progress bar while copying messages"`
	History   int      `long:"history" description:"Show the last N runs from the journal and exit"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newLogger(opts *options, w io.Writer) zerolog.Logger {
	if opts.JSON {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	_, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	logger := newLogger(&opts, stderr)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logger.Error().Err(err).Msg("cannot load configuration")
		if errors.Is(err, config.ErrNotFound) {
			return exitConfigNotFound
		}
		return exitIOError
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Error().Err(err).Msg("invalid log level")
		return exitUsage
	}
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *journal.DB
	if cfg.Journal != "" {
		db, err = journal.New(ctx, cfg.Journal)
		if err != nil {
			logger.Error().Err(err).Msg("cannot open journal")
			return exitIOError
		}
		defer db.Close()
	}

	if opts.History > 0 {
		if db == nil {
			logger.Error().Msg("no journal configured")
			return exitUsage
		}
		err = printHistory(ctx, db, opts.History, stdout)
		if err != nil {
			logger.Error().Err(err).Msg("cannot read journal")
			return exitIOError
		}
		return exitOK
	}

	accounts, err := selectAccounts(cfg, opts.Accounts)
	if err != nil {
		logger.Error().Err(err).Msg("invalid account selection")
		return exitUsage
	}

	driver := &sync.Driver{
		Dialer:      &imap.Dialer{Logger: logger},
		Logger:      logger,
		DryRun:      opts.DryRun,
		Mirror:      opts.Mirror,
		Concurrency: cfg.Concurrency,
	}
	if opts.DebugIMAP {
		driver.Dialer = &imap.Dialer{Logger: logger, Debug: stderr}
	}
	// Progress bars of parallel accounts would overwrite each other
	if opts.Progress && cfg.Concurrency == 1 {
		driver.Progress = stdout
	}

	report := driver.Run(ctx, accounts)

	if db != nil {
		err = db.Record(ctx, report)
		if err != nil {
			logger.Error().Err(err).Msg("cannot record run in journal")
			return exitIOError
		}
	}

	logger.Info().Int("copied", report.Copied()).Msg("Done! Bye...")
	return exitOK
}

// selectAccounts returns the configured accounts, restricted to names if given
func selectAccounts(cfg *config.Config, names []string) ([]config.Account, error) {
	if len(names) == 0 {
		return cfg.Accounts, nil
	}

	accounts := make([]config.Account, 0, len(names))
	for _, name := range names {
		a, ok := cfg.Account(name)
		if !ok {
			return nil, errors.Errorf("unknown account %q", name)
		}
		accounts = append(accounts, *a)
	}
	return accounts, nil
}

func printHistory(ctx context.Context, db *journal.DB, limit int, w io.Writer) error {
	runs, err := db.Runs(ctx, limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		dryRun := ""
		if r.DryRun {
			dryRun = " (dry run)"
		}
		fmt.Fprintf(w, "%s  %s  copied %d, flagged %d, failed %d%s\n",
			r.Started.Format(time.RFC3339), r.ID, r.Copied, r.Flagged, r.Failed, dryRun)
		for _, a := range r.Accounts {
			switch {
			case a.Skipped:
				fmt.Fprintf(w, "    %-20s skipped\n", a.Account)
			case a.Error != "":
				fmt.Fprintf(w, "    %-20s failed: %s\n", a.Account, a.Error)
			default:
				fmt.Fprintf(w, "    %-20s %d folders, %d copied, %d flagged\n", a.Account, a.Folders, a.Copied, a.Flagged)
			}
		}
	}
	return nil
}
