package telephony

import (
	"net/http"

	"voice-platform/internal/audit"
	"voice-platform/internal/gate"
	"voice-platform/internal/profile"
	"voice-platform/internal/recording"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// VoiceWebhookHandler answers the outbound voice webhook: it runs the call
// through the authorization gate and writes the TwiML that either connects
// the call with recording armed or speaks the rejection.
//
// No business logic here; the gate decides.
type VoiceWebhookHandler struct {
	Gate *gate.Gate
}

func (h VoiceWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioVoiceCall(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	authz, err := h.Gate.Authorize(c.Request.Context(), form.UserID, form.To)
	if err != nil {
		log.Info("call rejected",
			"user_id", form.UserID,
			"to", form.To,
			"reason", err,
		)
		h.writeTwiML(c, VoiceResult{SayMessage: gate.RejectionMessage(err)})
		return
	}

	log.Info("call authorized",
		"user_id", authz.UserID,
		"destination", authz.Destination,
		"tier", authz.Tier.ID,
		"caller_id_verified", authz.CallerIDVerified,
	)

	twiml, err := RenderVoiceTwiML(VoiceResult{
		Dial: &DialInstruction{
			Target:               authz.Destination,
			CallerID:             authz.CallerID,
			RecordingCallbackURL: authz.CallbackURL,
			ActionURL:            authz.StatusCallbackURL,
		},
	})
	if err != nil {
		// The call never starts, so the lease acquired during authorization
		// must not stay pinned until its TTL.
		log.Error("twiml render failed", "err", err)
		h.Gate.ReleaseLease(c.Request.Context(), authz.UserID)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

func (h VoiceWebhookHandler) writeTwiML(c *gin.Context, res VoiceResult) {
	twiml, err := RenderVoiceTwiML(res)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// CallStatusHandler answers the <Dial action> callback: every call end passes
// through here, so calls that finish without a recording (busy, no answer,
// failed) release their active-call lease instead of pinning it until the TTL
// expires. Recorded calls release again through the recording callback; the
// slot counter floors at zero, so that is harmless.
type CallStatusHandler struct {
	Gate *gate.Gate
}

func (h CallStatusHandler) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)

	res, err := ParseDialResult(c.Request)
	if err != nil {
		log.Warn("call status parse failed", "err", err)
		writeHangupTwiML(c)
		return
	}

	if res.UserID != "" {
		h.Gate.ReleaseLease(c.Request.Context(), res.UserID)
	}

	log.Info("call ended",
		"call_sid", res.CallSid,
		"dial_status", res.DialCallStatus,
		"user_id", res.UserID,
	)
	writeHangupTwiML(c)
}

func writeHangupTwiML(c *gin.Context) {
	twiml, err := encodeTwiML(twimlResponse{Verbs: []any{twimlHangup{}}})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// RecordingWebhookHandler feeds recording completion callbacks into the
// capture pipeline. It acknowledges with 200 no matter what happened so the
// provider does not retry into the same failure.
type RecordingWebhookHandler struct {
	Pipeline *recording.Pipeline
}

func (h RecordingWebhookHandler) HandleRecordingStatus(c *gin.Context) {
	log := logger.FromGin(c)

	n, err := ParseRecordingCompletion(c.Request)
	if err != nil {
		log.Warn("recording webhook parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	out := h.Pipeline.HandleCompletion(c.Request.Context(), n)
	switch {
	case out.Err != nil:
		log.Error("recording capture failed",
			"recording_sid", n.RecordingSid,
			"step", out.Step,
			"err", out.Err,
		)
		c.JSON(http.StatusOK, gin.H{"success": false, "step": out.Step})
	case out.Skipped && out.Step != recording.StepDone:
		log.Info("recording callback skipped",
			"recording_sid", n.RecordingSid,
			"step", out.Step,
		)
		c.JSON(http.StatusOK, gin.H{"success": true, "skipped": true})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "recording_id": out.Artifact.ID})
	}
}

// CallerIDStatusHandler receives the outbound validation call result and
// flips the owning profile's caller-ID flag on success. The owner is found
// by the validated phone number.
type CallerIDStatusHandler struct {
	Profiles profile.Store

	// Audit is optional; failures never affect the ack.
	Audit *audit.Service
}

func (h CallerIDStatusHandler) HandleCallerIDStatus(c *gin.Context) {
	log := logger.FromGin(c)

	status, err := ParseCallerIDStatus(c.Request)
	if err != nil {
		log.Warn("caller id status parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	if status.VerificationStatus != "success" {
		log.Info("caller id validation did not succeed",
			"call_sid", status.CallSid,
			"status", status.VerificationStatus,
		)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	ctx := c.Request.Context()
	p, err := h.Profiles.FindByPhone(ctx, status.PhoneNumber)
	if err != nil {
		log.Warn("no profile for validated number",
			"phone", status.PhoneNumber,
			"err", err,
		)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	if err := h.Profiles.SetCallerIDVerified(ctx, p.UserID, true); err != nil {
		log.Error("caller id flag update failed", "user_id", p.UserID, "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	if h.Audit != nil {
		_ = h.Audit.LogCallerIDVerified(ctx, p.UserID, status.CallSid)
	}

	log.Info("caller id verified", "user_id", p.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
