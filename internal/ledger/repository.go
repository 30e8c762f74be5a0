package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"voice-platform/internal/profile"
	"voice-platform/pkg/utils"
)

// EntryRepository abstracts ledger persistence.
//
// ApplyDebit and ApplyCredit move the balance and append the entry as one
// atomic unit: a failure on either side leaves both untouched, so a retried
// charge can never deduct twice. Both fail with ErrDuplicateReference when an
// entry with the same call reference already exists (UNIQUE constraint), so
// redelivered notifications cannot double-bill.
type EntryRepository interface {
	ApplyDebit(ctx context.Context, e Entry) (remaining int64, err error)
	ApplyCredit(ctx context.Context, e Entry) (balance int64, err error)
	FindByCallReference(ctx context.Context, callRef string) (Entry, bool, error)
}

var ErrDuplicateReference = errors.New("ledger entry already exists for reference")

// PostgresRepository stores entries in the credit_ledger table and owns the
// voice_credits column on profiles: the balance update and the ledger insert
// run in one transaction.
//
// Assumed schema:
//
//	CREATE TABLE credit_ledger (
//	  id              TEXT PRIMARY KEY,
//	  user_id         TEXT NOT NULL,
//	  type            TEXT NOT NULL,
//	  amount          BIGINT NOT NULL,
//	  minutes_charged BIGINT NOT NULL DEFAULT 0,
//	  tier_id         TEXT NOT NULL DEFAULT '',
//	  call_reference  TEXT NOT NULL UNIQUE,
//	  occurred_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertEntrySQL = `
INSERT INTO credit_ledger (id, user_id, type, amount, minutes_charged, tier_id, call_reference, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (call_reference) DO NOTHING
`

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) error {
	res, err := tx.ExecContext(ctx, insertEntrySQL,
		e.ID,
		e.UserID,
		e.Type,
		e.Amount,
		e.MinutesCharged,
		e.TierID,
		e.CallReference,
		e.OccurredAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateReference
	}
	return nil
}

// ApplyDebit decrements the balance and appends the entry in one transaction.
// The guarded UPDATE enforces the non-negative-balance invariant; a duplicate
// reference aborts the transaction, undoing the decrement.
func (r *PostgresRepository) ApplyDebit(ctx context.Context, e Entry) (int64, error) {
	var remaining int64
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE profiles
SET voice_credits = voice_credits - $1, updated_at = $2
WHERE user_id = $3 AND voice_credits >= $1
RETURNING voice_credits
`
		if err := tx.QueryRowContext(ctx, q, e.Amount, e.OccurredAt, e.UserID).Scan(&remaining); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Either the user does not exist or the balance is short.
				var exists bool
				if err := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)`, e.UserID,
				).Scan(&exists); err != nil {
					return err
				}
				if !exists {
					return profile.ErrNotFound
				}
				return profile.ErrInsufficientCredits
			}
			return err
		}
		return insertEntry(ctx, tx, e)
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// ApplyCredit increments the balance and appends the entry in one transaction.
func (r *PostgresRepository) ApplyCredit(ctx context.Context, e Entry) (int64, error) {
	var balance int64
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE profiles
SET voice_credits = voice_credits + $1, updated_at = $2
WHERE user_id = $3
RETURNING voice_credits
`
		if err := tx.QueryRowContext(ctx, q, e.Amount, e.OccurredAt, e.UserID).Scan(&balance); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return profile.ErrNotFound
			}
			return err
		}
		return insertEntry(ctx, tx, e)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *PostgresRepository) FindByCallReference(ctx context.Context, callRef string) (Entry, bool, error) {
	const q = `
SELECT id, user_id, type, amount, minutes_charged, tier_id, call_reference, occurred_at
FROM credit_ledger
WHERE call_reference = $1
LIMIT 1
`
	var e Entry
	err := r.db.QueryRowContext(ctx, q, callRef).Scan(
		&e.ID,
		&e.UserID,
		&e.Type,
		&e.Amount,
		&e.MinutesCharged,
		&e.TierID,
		&e.CallReference,
		&e.OccurredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

// MemoryRepository is an in-memory EntryRepository for tests, backed by a
// profile.MemoryStore for the balance side of each movement. One mutex spans
// the duplicate check, the balance update, and the append, mirroring the
// transactional Postgres implementation.
type MemoryRepository struct {
	mu       sync.Mutex
	profiles *profile.MemoryStore
	entries  []Entry
}

func NewMemoryRepository(profiles *profile.MemoryStore) *MemoryRepository {
	return &MemoryRepository{profiles: profiles}
}

func (r *MemoryRepository) ApplyDebit(ctx context.Context, e Entry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(e.CallReference) != nil {
		return 0, ErrDuplicateReference
	}
	remaining, err := r.profiles.DeductCredits(ctx, e.UserID, e.Amount)
	if err != nil {
		return 0, err
	}
	r.entries = append(r.entries, e)
	return remaining, nil
}

func (r *MemoryRepository) ApplyCredit(ctx context.Context, e Entry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(e.CallReference) != nil {
		return 0, ErrDuplicateReference
	}
	balance, err := r.profiles.AddCredits(ctx, e.UserID, e.Amount)
	if err != nil {
		return 0, err
	}
	r.entries = append(r.entries, e)
	return balance, nil
}

func (r *MemoryRepository) FindByCallReference(ctx context.Context, callRef string) (Entry, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.findLocked(callRef); e != nil {
		return *e, true, nil
	}
	return Entry{}, false, nil
}

func (r *MemoryRepository) findLocked(callRef string) *Entry {
	for i := range r.entries {
		if r.entries[i].CallReference == callRef {
			return &r.entries[i]
		}
	}
	return nil
}

// Entries returns a copy of everything inserted so far (test helper).
func (r *MemoryRepository) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
