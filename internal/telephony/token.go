package telephony

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// VoiceTokenIssuer mints Twilio Voice access tokens so the browser client can
// place calls through the TwiML application. Tokens are signed with the API
// key secret, not the account auth token.
type VoiceTokenIssuer struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
	TwiMLAppSID  string

	TTL time.Duration
	Now func() time.Time
}

const defaultVoiceTokenTTL = time.Hour

// Issue returns a signed access token granting outgoing voice for identity.
func (i VoiceTokenIssuer) Issue(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("telephony: token identity required")
	}
	if i.AccountSID == "" || i.APIKeySID == "" || i.APIKeySecret == "" {
		return "", errors.New("telephony: api key credentials required")
	}

	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = defaultVoiceTokenTTL
	}

	issued := now()
	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", i.APIKeySID, issued.Unix()),
		"iss": i.APIKeySID,
		"sub": i.AccountSID,
		"iat": issued.Unix(),
		"exp": issued.Add(ttl).Unix(),
		"grants": map[string]any{
			"identity": identity,
			"voice": map[string]any{
				"outgoing": map[string]any{
					"application_sid": i.TwiMLAppSID,
				},
				"incoming": map[string]any{
					"allow": true,
				},
			},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["cty"] = "twilio-fv=1"
	return tok.SignedString([]byte(i.APIKeySecret))
}

// TokenHandler exposes Issue over HTTP for authenticated users. The token
// identity is the user id, which the client echoes back as userId when it
// starts a call.
type TokenHandler struct {
	Issuer VoiceTokenIssuer
}

func (h TokenHandler) HandleToken(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := h.Issuer.Issue(userID)
	if err != nil {
		logger.FromGin(c).Error("voice token issue failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "identity": userID})
}
