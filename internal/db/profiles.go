package db

import (
	"context"

	"github.com/google/uuid"
)

// UpsertProfile stores the display name shown on the leaderboard.
// An empty username leaves an existing name untouched.
func (db *DB) UpsertProfile(ctx context.Context, userID uuid.UUID, username string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, username, updated_at)
		 VALUES ($1, $2, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username = '' THEN profiles.username ELSE EXCLUDED.username END,
			updated_at = CURRENT_TIMESTAMP`,
		userID, username,
	)
	return err
}
