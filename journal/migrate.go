package journal

import (
	"context"

	"github.com/pkg/errors"
)

func (db *DB) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS 'runs' (
id varchar(36) PRIMARY KEY,
started datetime,
finished datetime,
dry_run boolean,
copied int,
flagged int,
failed int
);`,
		`CREATE TABLE IF NOT EXISTS 'accounts' (
run_id varchar(36) REFERENCES runs(id),
account string,
skipped boolean,
error text,
folders int,
created int,
copied int,
flagged int,
duplicates int,
started datetime,
finished datetime
);`,
		`CREATE INDEX IF NOT EXISTS accounts_run_id ON accounts(run_id);`,
	}

	for _, m := range migrations {
		_, err := db.db.ExecContext(ctx, m)
		if err != nil {
			return errors.Wrapf(err, "while executing %q", m)
		}
	}
	return nil
}
