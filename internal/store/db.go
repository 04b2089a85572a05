package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DB is a profile's history database. It persists legacy
// interactions, cached peers, the outbox and event checkpoints.
type DB struct {
	*sql.DB
	path string
}

// Open opens the history database at path, creating it when missing.
// Writes go through WAL so readers never block the event journal.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping history %s", path)
	}
	return &DB{DB: db, path: path}, nil
}

func (db *DB) Path() string { return db.path }

// Tx runs fn in a transaction and commits when it returns nil.
func (db *DB) Tx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
