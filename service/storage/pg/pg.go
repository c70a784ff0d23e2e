package pg

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	pgOnce sync.Once
	pgMgr  *Manager
)

type Manager struct {
	pool *pgxpool.Pool
}

// Init connects the shared pgx pool. The URL is a standard postgres DSN.
func Init(ctx context.Context, databaseURL string) error {
	var initErr error
	pgOnce.Do(func() {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			initErr = errors.Wrap(err, "pgxpool new")
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			initErr = errors.Wrap(err, "pg ping")
			return
		}

		pgMgr = &Manager{pool: pool}
	})
	return initErr
}

// Pool returns the shared pgx pool.
func Pool() *pgxpool.Pool {
	if pgMgr == nil {
		panic("postgres not initialized, call pg.Init first")
	}
	return pgMgr.pool
}

// Close releases the shared pool.
func Close() {
	if pgMgr != nil && pgMgr.pool != nil {
		pgMgr.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		username        TEXT NOT NULL UNIQUE,
		password_sha256 TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id         BIGSERIAL PRIMARY KEY,
		device_id  TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		location   TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL DEFAULT 'sensor',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		owner_id   BIGINT NOT NULL REFERENCES users (id),
		last_seen  TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS devices_owner_idx ON devices (owner_id)`,
}

// Migrate applies the table definitions. Statements are idempotent so the
// call is safe on every startup.
func Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := Pool().Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "pg migrate")
		}
	}
	return nil
}
