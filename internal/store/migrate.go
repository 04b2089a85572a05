package store

import (
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/matheus3301/ringcore/internal/store/migrations"
)

// ErrDirty means an earlier migration stopped halfway. The history
// database must be repaired or removed before the host can start.
var ErrDirty = errors.New("history schema is dirty")

// Migration is the schema version before and after Migrate.
type Migration struct {
	From uint
	To   uint
}

// Applied reports whether Migrate changed the schema.
func (m Migration) Applied() bool { return m.From != m.To }

// Migrate brings the history schema up to date.
func (db *DB) Migrate() (Migration, error) {
	var res Migration
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return res, errors.Wrap(err, "migration source")
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return res, errors.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return res, errors.Wrap(err, "migration instance")
	}

	if res.From, err = version(m); err != nil {
		return res, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return res, errors.Wrap(err, "migration up")
	}
	res.To, err = version(m)
	return res, err
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, errors.Wrap(err, "schema version")
	case dirty:
		return v, errors.Wrapf(ErrDirty, "version %d", v)
	}
	return v, nil
}
