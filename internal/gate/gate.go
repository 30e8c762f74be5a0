package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"voice-platform/internal/profile"
	"voice-platform/internal/rates"
)

// Gate decides whether an outbound call attempt may proceed.
//
// Evaluation order (first failure rejects; a rejection after the lease step
// gives the acquired slot back, so rejections never hold state):
//  1. destination present
//  2. destination tier not BLOCKED
//  3. authenticated user
//  4. plan includes calling
//  5. balance covers at least one minute at the tier
//  6. per-user active-call lease (optional)
//  7. caller ID resolvable
//
// Stateless per invocation; no cross-request state lives here.
type Gate struct {
	Profiles profile.Store

	// Lease is the optional per-user active-call cap. Nil disables it.
	Lease CallLease

	// DefaultCallerID is the platform number used when the user's own number
	// is not caller-ID verified.
	DefaultCallerID string

	// RecordingCallbackURL is the absolute URL the provider must invoke when
	// a call's recording is finalized. userId and destination are appended as
	// query parameters; that is the only reliable channel for attributing the
	// asynchronous completion.
	RecordingCallbackURL string

	// CallStatusCallbackURL is the absolute URL invoked when the dialed leg
	// finishes, whatever the outcome. It releases the lease for calls that end
	// without a recording (busy, no answer, failed). Empty disables it.
	CallStatusCallbackURL string

	Log *slog.Logger
}

// CallLease caps concurrent calls per user.
type CallLease interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// Authorization is the successful gate outcome. Transient; consumed within a
// single call setup, never persisted.
type Authorization struct {
	UserID      string
	Destination string // normalized, + and digits
	Tier        rates.Tier

	// CallerID to present on the outbound leg.
	CallerID string
	// CallerIDVerified is false when CallerID is the platform fallback.
	CallerIDVerified bool

	// CallbackURL is the parameterized recording-status callback.
	CallbackURL string

	// StatusCallbackURL is the parameterized dial-completion callback. Empty
	// when the gate has no CallStatusCallbackURL configured.
	StatusCallbackURL string
}

// Sentinel user IDs treated as unauthenticated.
func isAnonymous(userID string) bool {
	switch userID {
	case "", "unknown", "undefined", "anonymous", "guest":
		return true
	default:
		return false
	}
}

// Authorize runs the decision sequence for one call attempt.
func (g *Gate) Authorize(ctx context.Context, userID, rawDestination string) (Authorization, error) {
	log := g.Log
	if log == nil {
		log = slog.Default()
	}

	destination := rates.Normalize(rawDestination)
	if destination == "" {
		return Authorization{}, ErrMissingDestination
	}

	tier := rates.ResolveTier(destination)
	if tier.Blocked() {
		log.Info("call rejected: blocked destination", "destination", destination)
		return Authorization{}, ErrDestinationNotAllowed
	}

	if isAnonymous(userID) {
		return Authorization{}, ErrAuthenticationRequired
	}

	p, err := g.Profiles.Get(ctx, userID)
	if err != nil {
		log.Warn("profile lookup failed", "user_id", userID, "err", err)
		return Authorization{}, ErrAuthenticationRequired
	}

	if !profile.PlanAllowsCalls(p.PlanID) {
		return Authorization{}, ErrPlanRestriction
	}

	// Cannot afford even one minute at this tier.
	if p.VoiceCredits < tier.Multiplier {
		return Authorization{}, ErrInsufficientCredits
	}

	leased := false
	if g.Lease != nil {
		ok, err := g.Lease.Acquire(ctx, userID)
		if err != nil {
			// The lease is best-effort: billing safety must not take down
			// calling when Redis is unreachable.
			log.Warn("call lease unavailable, allowing", "user_id", userID, "err", err)
		} else if !ok {
			return Authorization{}, ErrTooManyActiveCalls
		} else {
			leased = true
		}
	}

	callerID := g.DefaultCallerID
	verified := false
	if p.CallerIDVerified && p.Phone != "" {
		callerID = p.Phone
		verified = true
	}
	if callerID == "" {
		log.Error("no caller id configured and user not verified", "user_id", userID)
		if leased {
			g.ReleaseLease(ctx, userID)
		}
		return Authorization{}, ErrConfigurationError
	}

	return Authorization{
		UserID:            userID,
		Destination:       destination,
		Tier:              tier,
		CallerID:          callerID,
		CallerIDVerified:  verified,
		CallbackURL:       g.callbackURL(userID, destination),
		StatusCallbackURL: g.statusCallbackURL(userID),
	}, nil
}

// ReleaseLease frees the user's active-call slot. Callers that fail or finish
// a call after Authorize succeeded use it; the release is best-effort and the
// slot counter floors at zero, so releasing twice is harmless.
func (g *Gate) ReleaseLease(ctx context.Context, userID string) {
	if g.Lease == nil {
		return
	}
	if err := g.Lease.Release(ctx, userID); err != nil {
		log := g.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("call lease release failed", "user_id", userID, "err", err)
	}
}

func (g *Gate) callbackURL(userID, destination string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("to", destination)
	return fmt.Sprintf("%s?%s", g.RecordingCallbackURL, q.Encode())
}

func (g *Gate) statusCallbackURL(userID string) string {
	if g.CallStatusCallbackURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("userId", userID)
	return fmt.Sprintf("%s?%s", g.CallStatusCallbackURL, q.Encode())
}
