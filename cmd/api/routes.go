package main

import (
	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/gate"
	"voice-platform/internal/httpapi"
	"voice-platform/internal/ledger"
	"voice-platform/internal/profile"
	"voice-platform/internal/rbac"
	"voice-platform/internal/recording"
	"voice-platform/internal/telephony"
	"voice-platform/internal/verify"

	"github.com/gin-gonic/gin"
)

// appDeps carries the wired services from main into route registration.
type appDeps struct {
	Auth     *auth.Manager
	Gate     *gate.Gate
	Pipeline *recording.Pipeline
	Profiles profile.Store
	Ledger   *ledger.Service
	Audit    *audit.Service
	Sessions *verify.Sessions

	API        httpapi.Handlers
	VoiceToken telephony.VoiceTokenIssuer
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps appDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		voice := telephony.VoiceWebhookHandler{Gate: deps.Gate}
		status := telephony.CallStatusHandler{Gate: deps.Gate}
		rec := telephony.RecordingWebhookHandler{Pipeline: deps.Pipeline}
		callerID := telephony.CallerIDStatusHandler{Profiles: deps.Profiles, Audit: deps.Audit}

		hooks := r.Group("/webhooks/twilio")
		hooks.POST("/voice", voice.HandleVoice)
		hooks.POST("/call-status", status.HandleCallStatus)
		hooks.POST("/recording", rec.HandleRecordingStatus)
		hooks.POST("/caller-id", callerID.HandleCallerIDStatus)
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", deps.API.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		v1.GET("/profile/balance", deps.API.GetBalance)

		// Browser dialer credentials.
		token := telephony.TokenHandler{Issuer: deps.VoiceToken}
		v1.POST("/voice/token", token.HandleToken)

		// Caller identity verification flow.
		vh := verify.Handler{Sessions: deps.Sessions}
		verifyGroup := v1.Group("/verify")
		{
			verifyGroup.POST("", vh.HandleAction)
			verifyGroup.GET("/wait", vh.HandleWait)
			verifyGroup.DELETE("", vh.HandleCancel)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
			admin.POST("/credits", deps.API.AdminManualCredit)
		}
	}
}
