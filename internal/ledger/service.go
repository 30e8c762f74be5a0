package ledger

import (
	"context"
	"errors"
	"time"

	"voice-platform/internal/profile"
	"voice-platform/internal/rates"

	"github.com/google/uuid"
)

// Service posts credit movements against the profile store.
//
// Money invariants:
// - No balance change without a ledger entry.
// - The ledger is append-only.
// - One call reference bills at most once (UNIQUE constraint + pre-check).
//
// The repository applies the balance movement and the entry append in one
// transaction, so a failed write leaves the balance untouched and a retried
// charge starts from a clean slate.
type Service struct {
	profiles profile.Store
	repo     EntryRepository
	clock    func() time.Time
}

func NewService(profiles profile.Store, repo EntryRepository) *Service {
	return &Service{profiles: profiles, repo: repo, clock: time.Now}
}

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = profile.ErrInsufficientCredits
)

// ChargeForCall rates a completed call and deducts credits.
//
// minutes = max(1, ceil(durationSeconds/60)); amount = minutes * multiplier.
// A callRef that was already billed returns the existing entry unchanged.
func (s *Service) ChargeForCall(ctx context.Context, userID string, durationSeconds int64, tier rates.Tier, callRef string) (Entry, error) {
	if userID == "" || callRef == "" {
		return Entry{}, ErrInvalidArgument
	}
	if durationSeconds < 0 {
		return Entry{}, ErrInvalidArgument
	}
	if tier.Multiplier <= 0 {
		return Entry{}, ErrInvalidArgument
	}

	if existing, ok, err := s.repo.FindByCallReference(ctx, callRef); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}

	minutes := BillableMinutes(durationSeconds)
	amount := minutes * tier.Multiplier

	entry := Entry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           EntryTypeCallCharge,
		Amount:         amount,
		MinutesCharged: minutes,
		TierID:         tier.ID,
		CallReference:  callRef,
		OccurredAt:     s.clock().UTC(),
	}
	if _, err := s.repo.ApplyDebit(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// Lost a race with a concurrent delivery; our transaction rolled
			// back without touching the balance, so surface the winner's entry.
			if existing, ok, ferr := s.repo.FindByCallReference(ctx, callRef); ferr == nil && ok {
				return existing, nil
			}
		}
		return Entry{}, err
	}
	return entry, nil
}

// ManualCredit grants credits to a user (admin top-up), recording a ledger
// entry keyed by an idempotency reference.
func (s *Service) ManualCredit(ctx context.Context, userID string, amount int64, reference string) (Entry, int64, error) {
	if userID == "" || reference == "" || amount <= 0 {
		return Entry{}, 0, ErrInvalidArgument
	}

	if existing, ok, err := s.repo.FindByCallReference(ctx, reference); err != nil {
		return Entry{}, 0, err
	} else if ok {
		p, perr := s.profiles.Get(ctx, userID)
		if perr != nil {
			return Entry{}, 0, perr
		}
		return existing, p.VoiceCredits, nil
	}

	entry := Entry{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          EntryTypeManualCredit,
		Amount:        amount,
		CallReference: reference,
		OccurredAt:    s.clock().UTC(),
	}
	balance, err := s.repo.ApplyCredit(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			if existing, ok, ferr := s.repo.FindByCallReference(ctx, reference); ferr == nil && ok {
				p, perr := s.profiles.Get(ctx, userID)
				if perr != nil {
					return Entry{}, 0, perr
				}
				return existing, p.VoiceCredits, nil
			}
		}
		return Entry{}, 0, err
	}
	return entry, balance, nil
}
