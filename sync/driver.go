// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yzzyx/imap-mirror/config"
)

// AccountOutcome is the result of synchronizing one account
type AccountOutcome struct {
	Account  string
	Skipped  bool
	Err      error
	Tally    *Tally
	Started  time.Time
	Finished time.Time
}

// Failed returns true if the account could not be fully synchronized
func (o *AccountOutcome) Failed() bool {
	return o.Err != nil
}

// BatchReport collects the outcome of every account of a run
type BatchReport struct {
	RunID    string
	DryRun   bool
	Started  time.Time
	Finished time.Time
	Accounts []AccountOutcome
}

// Copied returns the total number of messages copied in the run
func (r *BatchReport) Copied() int {
	n := 0
	for _, o := range r.Accounts {
		if o.Tally != nil {
			n += o.Tally.Copied()
		}
	}
	return n
}

// Flagged returns the total number of messages flagged for deletion in the run
func (r *BatchReport) Flagged() int {
	n := 0
	for _, o := range r.Accounts {
		if o.Tally != nil {
			n += o.Tally.Flagged()
		}
	}
	return n
}

// Failed returns the number of accounts that failed
func (r *BatchReport) Failed() int {
	n := 0
	for i := range r.Accounts {
		if r.Accounts[i].Failed() {
			n++
		}
	}
	return n
}

// Skipped returns the number of disabled accounts
func (r *BatchReport) Skipped() int {
	n := 0
	for _, o := range r.Accounts {
		if o.Skipped {
			n++
		}
	}
	return n
}

// Driver synchronizes a list of accounts.
// A failing account never stops the others.
type Driver struct {
	Dialer Dialer
	Logger zerolog.Logger

	DryRun bool
	// Mirror forces mirror mode for every account
	Mirror bool
	// Concurrency is the number of accounts processed at the same time
	Concurrency int
	Progress    io.Writer
}

// Run synchronizes every enabled account and returns the batch report.
// Outcomes are listed in the same order as accounts.
func (d *Driver) Run(ctx context.Context, accounts []config.Account) *BatchReport {
	report := &BatchReport{
		RunID:    uuid.NewString(),
		DryRun:   d.DryRun,
		Started:  time.Now(),
		Accounts: make([]AccountOutcome, len(accounts)),
	}

	limit := d.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range accounts {
		i := i
		g.Go(func() error {
			report.Accounts[i] = d.runAccount(ctx, &accounts[i])
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = time.Now()
	d.Logger.Info().
		Str("run", report.RunID).
		Int("copied", report.Copied()).
		Int("flagged", report.Flagged()).
		Int("failed", report.Failed()).
		Int("skipped", report.Skipped()).
		Msg("done")
	return report
}

func (d *Driver) runAccount(ctx context.Context, a *config.Account) (out AccountOutcome) {
	out.Account = a.Name
	log := d.Logger.With().Str("account", a.Name).Logger()

	if !a.IsEnabled() {
		log.Info().Msg("skip account, because it is disabled")
		out.Skipped = true
		return out
	}

	out.Started = time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.Errorf("panic: %v", r)
		}
		out.Finished = time.Now()

		if out.Err != nil {
			log.Error().Err(out.Err).Msg("account synchronization failed")
			return
		}
		log.Info().
			Int("copied", out.Tally.Copied()).
			Int("flagged", out.Tally.Flagged()).
			Int("folders", out.Tally.Visited).
			Msg("account synchronized")
	}()

	out.Tally, out.Err = d.syncAccount(ctx, a, log)
	return out
}

func (d *Driver) syncAccount(ctx context.Context, a *config.Account, log zerolog.Logger) (*Tally, error) {
	include, exclude, err := a.FolderPatterns()
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", a.Source.String()).Str("target", a.Target.String()).Msg("synchronizing account")

	src, err := d.Dialer.Dial(ctx, a.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to source %s", a.Source.Address())
	}
	defer closeStore(src, log)
	log.Info().Str("source", a.Source.Address()).Msg("connected source")

	dst, err := d.Dialer.Dial(ctx, a.Target)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to target %s", a.Target.Address())
	}
	defer closeStore(dst, log)
	log.Info().Str("target", a.Target.Address()).Msg("connected target")

	srcRoot, err := src.Root(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get source root folder")
	}
	dstRoot, err := dst.Root(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get target root folder")
	}

	w := &Walker{
		Target:        dst,
		ReplicateOnly: a.ReplicateOnly() && !d.Mirror,
		DryRun:        d.DryRun,
		Include:       include,
		Exclude:       exclude,
		Progress:      d.Progress,
		Logger:        log,
	}
	if a.RateLimit > 0 {
		w.Limiter = rate.NewLimiter(rate.Limit(a.RateLimit), 1)
	}

	return w.Walk(ctx, srcRoot, dstRoot)
}

func closeStore(s Store, log zerolog.Logger) {
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("cannot close store")
	}
}
