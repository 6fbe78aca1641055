package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
)

// DB is the run journal. Every batch report is stored in it,
// so that past runs can be inspected.
type DB struct {
	dbpath string
	db     *sql.DB
}

// New opens the journal located at dbPath, creating it if necessary,
// and applies all migrations
func New(ctx context.Context, dbPath string) (*DB, error) {
	err := os.MkdirAll(filepath.Dir(dbPath), 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create journal directory for %s", dbPath)
	}

	sqliteDatabase, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database at %s", dbPath)
	}

	db := &DB{
		dbpath: dbPath,
		db:     sqliteDatabase,
	}

	err = db.migrate(ctx)
	if err != nil {
		db.db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the underlying database
func (db *DB) Close() {
	if db.db != nil {
		db.db.Close()
	}
}
