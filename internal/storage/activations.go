package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Activation is one redeemed subscription code.
type Activation struct {
	UserID      string
	Channel     string
	Code        string
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

// RecordActivation appends a redemption to the ledger.
func (db *DB) RecordActivation(ctx context.Context, a Activation) error {
	if a.UserID == "" {
		return errors.New("record activation: empty user id")
	}
	query := `INSERT INTO activations (user_id, channel, code, activated_at, expires_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query,
		a.UserID, a.Channel, a.Code, a.ActivatedAt.Unix(), a.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record activation: %w", err)
	}
	return nil
}

// LatestExpiry returns the furthest expiry recorded for userID that is still
// after now. The boolean is false when the user has no active redemption.
func (db *DB) LatestExpiry(ctx context.Context, userID string, now time.Time) (time.Time, bool, error) {
	query := `SELECT MAX(expires_at) FROM activations WHERE user_id = ? AND expires_at > ?`
	var expires sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, query, userID, now.Unix()).Scan(&expires); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest expiry: %w", err)
	}
	if !expires.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(expires.Int64, 0).UTC(), true, nil
}

// CountActivations returns the number of redemptions recorded for userID.
func (db *DB) CountActivations(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM activations WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count activations: %w", err)
	}
	return n, nil
}
