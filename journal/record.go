package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/yzzyx/imap-mirror/sync"
)

// Run is a journal entry for one batch
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	DryRun   bool
	Copied   int
	Flagged  int
	Failed   int
	Accounts []AccountEntry
}

// AccountEntry is the journaled outcome of one account
type AccountEntry struct {
	Account    string
	Skipped    bool
	Error      string
	Folders    int
	Created    int
	Copied     int
	Flagged    int
	Duplicates int
	Started    time.Time
	Finished   time.Time
}

// Record stores a batch report
func (db *DB) Record(ctx context.Context, report *sync.BatchReport) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction failed")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs(id, started, finished, dry_run, copied, flagged, failed) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Started, report.Finished, report.DryRun, report.Copied(), report.Flagged(), report.Failed())
	if err != nil {
		return errors.Wrap(err, "cannot insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accounts(run_id, account, skipped, error, folders, created, copied, flagged, duplicates, started, finished)
  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "db prepare statement failed for accounts insert")
	}
	defer stmt.Close()

	for _, o := range report.Accounts {
		e := entryFromOutcome(o)
		_, err = stmt.ExecContext(ctx, report.RunID, e.Account, e.Skipped, e.Error, e.Folders, e.Created,
			e.Copied, e.Flagged, e.Duplicates, e.Started, e.Finished)
		if err != nil {
			return errors.Wrapf(err, "cannot insert account %s", o.Account)
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "transaction commit failed")
	}
	return nil
}

func entryFromOutcome(o sync.AccountOutcome) AccountEntry {
	e := AccountEntry{
		Account:  o.Account,
		Skipped:  o.Skipped,
		Started:  o.Started,
		Finished: o.Finished,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	if o.Tally != nil {
		e.Folders = o.Tally.Visited
		e.Created = len(o.Tally.Created)
		e.Copied = o.Tally.Copied()
		e.Flagged = o.Tally.Flagged()
		e.Duplicates = o.Tally.Duplicates()
	}
	return e
}

// Runs returns the last limit runs, most recent first
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, started, finished, dry_run, copied, flagged, failed FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err = rows.Scan(&r.ID, &r.Started, &r.Finished, &r.DryRun, &r.Copied, &r.Flagged, &r.Failed)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		runs[i].Accounts, err = db.accounts(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (db *DB) accounts(ctx context.Context, runID string) ([]AccountEntry, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT account, skipped, error, folders, created, copied, flagged, duplicates, started, finished
  FROM accounts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot query accounts of run %s", runID)
	}
	defer rows.Close()

	var entries []AccountEntry
	for rows.Next() {
		var e AccountEntry
		var errText sql.NullString
		err = rows.Scan(&e.Account, &e.Skipped, &errText, &e.Folders, &e.Created, &e.Copied,
			&e.Flagged, &e.Duplicates, &e.Started, &e.Finished)
		if err != nil {
			return nil, err
		}
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
