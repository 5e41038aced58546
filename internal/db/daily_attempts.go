package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/susu3304/ruesquiz/internal/daily"
)

// dateValue turns a YYYY-MM-DD key into the value bound to a DATE column.
func dateValue(key string) (time.Time, error) {
	t, err := time.Parse(daily.DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", daily.ErrInvalidDate, key)
	}
	return t, nil
}

// GetAttempt returns nil when the user has not played that day.
func (db *DB) GetAttempt(ctx context.Context, userID uuid.UUID, date string) (*daily.Attempt, error) {
	day, err := dateValue(date)
	if err != nil {
		return nil, err
	}

	var a daily.Attempt
	var stored time.Time
	err = db.pool.QueryRow(ctx,
		`SELECT user_id, date, target_key, attempts_used, solved, solved_at
		 FROM daily_attempts
		 WHERE user_id = $1 AND date = $2`,
		userID, day,
	).Scan(&a.UserID, &stored, &a.TargetKey, &a.AttemptsUsed, &a.Solved, &a.SolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Date = stored.Format(daily.DateLayout)
	return &a, nil
}

// RecordAttempt upserts the row in one statement. The update only applies while the stored
// row is unsolved and still holds expectedUsed attempts, so two racing requests can't both count.
func (db *DB) RecordAttempt(ctx context.Context, next daily.Attempt, expectedUsed int) (bool, error) {
	day, err := dateValue(next.Date)
	if err != nil {
		return false, err
	}

	ct, err := db.pool.Exec(ctx,
		`INSERT INTO daily_attempts (user_id, date, target_key, attempts_used, solved, solved_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			target_key = EXCLUDED.target_key,
			attempts_used = EXCLUDED.attempts_used,
			solved = EXCLUDED.solved,
			solved_at = EXCLUDED.solved_at,
			updated_at = EXCLUDED.updated_at
		 WHERE daily_attempts.solved = FALSE AND daily_attempts.attempts_used = $7`,
		next.UserID, day, next.TargetKey, next.AttemptsUsed, next.Solved, next.SolvedAt, expectedUsed,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Leaderboard reads one day of the daily_leaderboard view, best first.
func (db *DB) Leaderboard(ctx context.Context, date string, limit int) ([]daily.LeaderboardEntry, error) {
	day, err := dateValue(date)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT date, username, solved, attempts_used, solved_at
		 FROM daily_leaderboard
		 WHERE date = $1
		 ORDER BY solved DESC, attempts_used ASC, solved_at ASC NULLS LAST
		 LIMIT $2`,
		day, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []daily.LeaderboardEntry
	for rows.Next() {
		var e daily.LeaderboardEntry
		var stored time.Time
		if err := rows.Scan(&stored, &e.Username, &e.Solved, &e.AttemptsUsed, &e.SolvedAt); err != nil {
			return nil, err
		}
		e.Date = stored.Format(daily.DateLayout)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SolvedDates lists the days since the given key the user solved, newest first.
func (db *DB) SolvedDates(ctx context.Context, userID uuid.UUID, since string) ([]string, error) {
	day, err := dateValue(since)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT date FROM daily_attempts
		 WHERE user_id = $1 AND solved = TRUE AND date >= $2
		 ORDER BY date DESC`,
		userID, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var stored time.Time
		if err := rows.Scan(&stored); err != nil {
			return nil, err
		}
		dates = append(dates, stored.Format(daily.DateLayout))
	}
	return dates, rows.Err()
}
