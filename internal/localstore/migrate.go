package localstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// ErrSchemaTooNew is returned when the database was written by a newer build.
// Schema versions only grow, so the store refuses to open rather than downgrade.
var ErrSchemaTooNew = errors.New("store schema is newer than this build")

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return p, nil
}

// LatestVersion is the newest schema version this build knows about.
func LatestVersion() (int64, error) {
	sources, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, name := range sources {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", name, err)
		}
		latest = max(latest, v)
	}
	return latest, nil
}

// migrate applies every pending migration in one pass, so a client that
// skipped releases still reaches the current schema on a single open.
func migrate(ctx context.Context, db *sql.DB) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	if current > latest {
		return fmt.Errorf("%w: database is at version %d, newest known is %d", ErrSchemaTooNew, current, latest)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	for _, r := range results {
		slog.Debug("applied store migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}
