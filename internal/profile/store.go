package profile

import (
	"context"
	"errors"
)

var (
	ErrNotFound            = errors.New("profile not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Store abstracts profile persistence.
//
// Store deliberately has no balance mutators: voice_credits only moves inside
// the ledger's transactions, so a balance change without a ledger entry is
// impossible by construction.
type Store interface {
	Get(ctx context.Context, userID string) (Profile, error)
	FindByPhone(ctx context.Context, phone string) (Profile, error)

	// SetPhoneVerified records a successfully OTP-verified phone number.
	SetPhoneVerified(ctx context.Context, userID, phone string) error

	// SetCallerIDVerified flips the caller-ID flag for the user owning phone.
	SetCallerIDVerified(ctx context.Context, userID string, verified bool) error
}
