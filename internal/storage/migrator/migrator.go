// Package migrator applies the embedded SQL migrations with golang-migrate.
package migrator

import (
	"errors"
	"fmt"
	"strings"

	"food-delivery/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

var (
	ErrUnknownDialect   = errors.New("unknown sql dialect")
	ErrUnknownDirection = errors.New("direction must be up or down")
	ErrEmptyDSN         = errors.New("dsn is empty")
)

// Run migrates the database of the given dialect ("sqlite" or "postgres")
// in direction. Being already at the target version is not an error.
func Run(dialect, dsn, direction string) error {
	const op = "migrator.Run"

	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("%s: %w, got %q", op, ErrUnknownDirection, direction)
	}

	url, err := databaseURL(dialect, dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	src, err := iofs.New(migrations.FS, dialect)
	if err != nil {
		return fmt.Errorf("%s: source: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == DirectionUp {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %s: %w", op, direction, err)
	}

	return nil
}

// databaseURL turns a driver DSN into the URL form golang-migrate expects.
func databaseURL(dialect, dsn string) (string, error) {
	if dsn == "" {
		return "", ErrEmptyDSN
	}

	switch dialect {
	case "sqlite":
		return "sqlite3://" + strings.TrimPrefix(dsn, "file:"), nil
	case "postgres":
		for _, scheme := range []string{"postgres://", "postgresql://"} {
			if rest, ok := strings.CutPrefix(dsn, scheme); ok {
				return "pgx5://" + rest, nil
			}
		}
		return "", fmt.Errorf("%w: postgres dsn must be a URL", ErrUnknownDialect)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
}
