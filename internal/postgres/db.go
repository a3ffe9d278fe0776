// Package postgres opens the shared Postgres pool used by every component.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
)

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Store pairs the pool with the database/sql view used by the repositories.
type Store struct {
	Pool *pgxpool.Pool
	DB   *sqlx.DB
}

// Open connects to Postgres and exposes the pool through sqlx under the "pgx" driver.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), dbx.DriverPostgres)
	return &Store{Pool: pool, DB: db}, nil
}

// Close releases the sql handle and the pool.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
