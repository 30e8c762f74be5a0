package ledger

import (
	"time"

	"voice-platform/internal/rates"
)

// Entry is an immutable append-only billing record.
//
// Money invariant: any credit-balance change MUST have a corresponding ledger
// entry. Entries are never mutated or deleted.
//
// CallReference is the provider call/recording id; it is UNIQUE so a replayed
// completion notification bills at most once.
type Entry struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Type categorizes the entry. Keep stable.
	Type EntryType `json:"type" db:"type"`

	// Amount is the number of credits moved. Debits record the deducted
	// amount; credits record the amount granted.
	Amount int64 `json:"amount" db:"amount"`

	// MinutesCharged is the billed minute count for call debits (0 for
	// credits).
	MinutesCharged int64 `json:"minutes_charged" db:"minutes_charged"`

	// TierID is the pricing tier the call was rated at (empty for credits).
	TierID rates.TierID `json:"tier_id,omitempty" db:"tier_id"`

	// CallReference identifies the billed call (provider recording id) or the
	// manual-credit idempotency key.
	CallReference string `json:"call_reference" db:"call_reference"`

	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

type EntryType string

const (
	EntryTypeCallCharge   EntryType = "call_charge"
	EntryTypeManualCredit EntryType = "manual_credit"
)

// BillableMinutes rounds a call duration up to whole minutes with a one
// minute floor: any call, however short, bills at least one minute.
func BillableMinutes(durationSeconds int64) int64 {
	if durationSeconds <= 60 {
		return 1
	}
	m := durationSeconds / 60
	if durationSeconds%60 != 0 {
		m++
	}
	return m
}
