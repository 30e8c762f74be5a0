package profile

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore implements Store against the profiles table.
//
// Assumed schema:
//
//	CREATE TABLE profiles (
//	  user_id            TEXT PRIMARY KEY,
//	  email              TEXT NOT NULL,
//	  phone              TEXT NOT NULL DEFAULT '',
//	  phone_verified     BOOLEAN NOT NULL DEFAULT FALSE,
//	  caller_id_verified BOOLEAN NOT NULL DEFAULT FALSE,
//	  voice_credits      BIGINT NOT NULL DEFAULT 0 CHECK (voice_credits >= 0),
//	  plan_id            TEXT NOT NULL DEFAULT 'free',
//	  created_at         TIMESTAMPTZ NOT NULL,
//	  updated_at         TIMESTAMPTZ NOT NULL
//	);
//
// voice_credits is written only by the ledger repository, inside the same
// transaction that appends the corresponding ledger row.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const profileColumns = `user_id, email, phone, phone_verified, caller_id_verified, voice_credits, plan_id, created_at, updated_at`

func scanProfile(row *sql.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.Phone,
		&p.PhoneVerified,
		&p.CallerIDVerified,
		&p.VoiceCredits,
		&p.PlanID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return scanProfile(s.db.QueryRowContext(ctx, q, userID))
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (Profile, error) {
	if phone == "" {
		return Profile{}, ErrInvalidArgument
	}
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE phone = $1 LIMIT 1`
	return scanProfile(s.db.QueryRowContext(ctx, q, phone))
}

func (s *PostgresStore) SetPhoneVerified(ctx context.Context, userID, phone string) error {
	if userID == "" || phone == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE profiles
SET phone = $1, phone_verified = TRUE, updated_at = $2
WHERE user_id = $3
`
	res, err := s.db.ExecContext(ctx, q, phone, s.clock().UTC(), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetCallerIDVerified(ctx context.Context, userID string, verified bool) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE profiles
SET caller_id_verified = $1, updated_at = $2
WHERE user_id = $3
`
	res, err := s.db.ExecContext(ctx, q, verified, s.clock().UTC(), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
