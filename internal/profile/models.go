package profile

import "time"

// Profile is the authoritative per-user record for calling.
//
// Ownership invariant: this store exclusively owns the credit balance and the
// verification flags. Other components request mutations through Store; they
// never cache authoritative state beyond a single operation.
type Profile struct {
	UserID string `json:"user_id" db:"user_id"`
	Email  string `json:"email" db:"email"`

	// Phone is the user's own number in international format, once verified.
	Phone         string `json:"phone,omitempty" db:"phone"`
	PhoneVerified bool   `json:"phone_verified" db:"phone_verified"`

	// CallerIDVerified gates using Phone as the displayed caller ID.
	// It is set by the provider's verification callback, not by this service's
	// request path.
	CallerIDVerified bool `json:"caller_id_verified" db:"caller_id_verified"`

	// VoiceCredits is the available calling balance in credits.
	VoiceCredits int64 `json:"voice_credits" db:"voice_credits"`

	PlanID string `json:"plan_id" db:"plan_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Plan identifiers. Keep stable; they are referenced by the billing webhook.
const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// PlanAllowsCalls reports whether a subscription plan includes voice calling.
func PlanAllowsCalls(planID string) bool {
	switch planID {
	case PlanStarter, PlanPro, PlanBusiness:
		return true
	default:
		return false
	}
}
