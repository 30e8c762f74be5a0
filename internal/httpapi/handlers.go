package httpapi

import (
	"errors"
	"net/http"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/ledger"
	"voice-platform/internal/profile"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Profiles profile.Store
	Ledger   *ledger.Service

	// Audit is optional; logging is best-effort and never fails a request.
	Audit *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Profile ---

// GetBalance returns the caller's plan and remaining voice credits.
func (h Handlers) GetBalance(c *gin.Context) {
	if h.Profiles == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profiles not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	p, err := h.Profiles.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":            p.UserID,
		"plan_id":            p.PlanID,
		"voice_credits":      p.VoiceCredits,
		"phone_verified":     p.PhoneVerified,
		"caller_id_verified": p.CallerIDVerified,
	})
}

// --- Credits ---

type adminManualCreditRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// AdminManualCredit performs an admin-only credit top-up. The reference makes
// retried requests idempotent.
func (h Handlers) AdminManualCredit(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}

	var req adminManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Reference == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, reference required"})
		return
	}

	entry, balance, err := h.Ledger.ManualCredit(c.Request.Context(), req.UserID, req.Amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		case errors.Is(err, ledger.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credit failed"})
		}
		return
	}

	if h.Audit != nil {
		actorID, _ := auth.UserID(c.Request.Context())
		actorRole, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogCreditGrant(c.Request.Context(), actorID, actorRole, c.ClientIP(), req.UserID, req.Reference, req.Amount)
	}

	c.JSON(http.StatusOK, gin.H{
		"entry_id":      entry.ID,
		"voice_credits": balance,
	})
}
