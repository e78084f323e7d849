package postgres

import (
	"database/sql"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

// Migration directions accepted by Migrate.
const (
	Up   = "up"
	Down = "down"
)

// Migrate applies (up) or rolls back (down) every migration in files.
// It reports whether anything changed.
func Migrate(db *sql.DB, files fs.FS, direction string) (bool, error) {
	src, err := iofs.New(files, ".")
	if err != nil {
		return false, errors.Wrap(err, "open migrations")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return false, errors.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return false, errors.Wrap(err, "init migrate")
	}

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return false, errors.Errorf("unknown migration direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "migrate %s", direction)
	}
	return true, nil
}
