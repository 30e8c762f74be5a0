package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Sessions keeps one in-flight verification machine per user. Abandonment is
// just discarding the entry; nothing is persisted until the profile flags
// flip.
type Sessions struct {
	mu       sync.Mutex
	machines map[string]*Machine
	factory  func(userID string) *Machine
}

func NewSessions(factory func(userID string) *Machine) *Sessions {
	return &Sessions{
		machines: make(map[string]*Machine),
		factory:  factory,
	}
}

// GetOrCreate returns the user's current machine, creating a fresh one when
// none exists or when the previous flow reached a terminal state.
func (s *Sessions) GetOrCreate(userID string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[userID]
	if !ok || m.State().Terminal() {
		m = s.factory(userID)
		s.machines[userID] = m
	}
	return m
}

// Get returns the user's machine if one is in flight.
func (s *Sessions) Get(userID string) (*Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[userID]
	return m, ok
}

// Drop abandons the user's flow.
func (s *Sessions) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.machines, userID)
}

// Handler exposes the verification flow over HTTP. A single action endpoint
// drives the machine; the wait endpoint is a cancellable long poll.
type Handler struct {
	Sessions *Sessions
}

type actionRequest struct {
	Action  string `json:"action" binding:"required"`
	Phone   string `json:"phone"`
	Channel string `json:"channel"`
	Code    string `json:"code"`
}

// HandleAction dispatches on action: "send", "check", "verify-caller-id".
func (h Handler) HandleAction(c *gin.Context) {
	log := logger.FromGin(c)

	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	switch req.Action {
	case "send":
		m := h.Sessions.GetOrCreate(userID)
		if err := m.SendOTP(ctx, req.Phone, req.Channel); err != nil {
			h.writeStepError(c, log, "send otp failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent", "state": m.State()})

	case "check":
		m, ok := h.Sessions.Get(userID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no verification in progress"})
			return
		}
		if err := m.CheckOTP(ctx, req.Code); err != nil {
			h.writeStepError(c, log, "check otp failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "verified", "state": m.State()})

	case "verify-caller-id":
		m, ok := h.Sessions.Get(userID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no verification in progress"})
			return
		}
		call, err := m.StartCallerIDValidation(ctx)
		if err != nil {
			h.writeStepError(c, log, "caller id validation failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "initiated",
			"validationCode": call.ValidationCode,
			"callSid":        call.CallSid,
			"state":          m.State(),
		})

	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// HandleWait long-polls for the caller-ID confirmation. Client disconnect
// cancels the wait without ending the flow; the client can call again.
func (h Handler) HandleWait(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	m, ok := h.Sessions.Get(userID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no verification in progress"})
		return
	}

	err := m.WaitForCallerID(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "verified", "state": m.State()})
	case errors.Is(err, ErrWaitTimedOut):
		c.JSON(http.StatusOK, gin.H{"status": "timed_out", "state": m.State()})
	case errors.Is(err, ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no validation call in progress"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write.
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wait failed"})
	}
}

// HandleCancel abandons the current flow.
func (h Handler) HandleCancel(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	h.Sessions.Drop(userID)
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h Handler) writeStepError(c *gin.Context, log *slog.Logger, msg string, err error) {
	var se *StepError
	switch {
	case errors.Is(err, ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "action not allowed in current state"})
	case errors.Is(err, ErrOTPRejected):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code not approved"})
	case errors.As(err, &se):
		log.Warn(msg, "provider_code", se.ProviderCode, "err", se.Detail)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":         se.Message,
			"provider_code": se.ProviderCode,
		})
	default:
		log.Warn(msg, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
	}
}
