// Package store opens the configured database and brings its schema up to date.
package store

import (
	"context"
	"fmt"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/config"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/postgres"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/sqlite"
)

// Open connects to cfg.StoreDriver, applies pending migrations and returns the
// handle with its release func.
func Open(ctx context.Context, cfg config.Config) (*dbx.DB, func(), error) {
	var (
		db    *dbx.DB
		release func()
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		db, release = dbx.New(pg.DB), pg.Close
	default:
		lite, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		db, release = dbx.New(lite), func() { _ = lite.Close() }
	}
	if err := dbx.Migrate(ctx, db.DB); err != nil {
		release()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, release, nil
}
