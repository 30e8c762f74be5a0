package audit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCreditGrant records an admin manual credit.
func (s *Service) LogCreditGrant(ctx context.Context, actorUserID, actorRole, ip, targetUserID, reference string, amount int64) error {
	return s.Append(ctx, Event{
		Type:         EventTypeAdminAction,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		TargetUserID: targetUserID,
		Reference:    reference,
		Message:      "manual credit granted",
		Metadata:     `{"amount":` + strconv.FormatInt(amount, 10) + `}`,
	})
}

// LogCallerIDVerified records a completed caller-ID validation.
func (s *Service) LogCallerIDVerified(ctx context.Context, userID, callSid string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeVerification,
		TargetUserID: userID,
		Reference:    callSid,
		Message:      "caller id verified",
	})
}
