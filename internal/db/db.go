package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations creates the profile and daily attempt tables plus the leaderboard view.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS daily_attempts (
			user_id UUID NOT NULL,
			date DATE NOT NULL,
			target_key TEXT NOT NULL,
			attempts_used INTEGER NOT NULL DEFAULT 0 CHECK (attempts_used BETWEEN 0 AND 5),
			solved BOOLEAN NOT NULL DEFAULT FALSE,
			solved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_attempts_date ON daily_attempts(date);

		CREATE OR REPLACE VIEW daily_leaderboard AS
			SELECT a.date, a.user_id, COALESCE(p.username, '') AS username,
				a.solved, a.attempts_used, a.solved_at
			FROM daily_attempts a
			LEFT JOIN profiles p ON p.user_id = a.user_id;
	`)
	return err
}
