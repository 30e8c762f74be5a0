package verify

import "fmt"

// State is the caller-identity verification lifecycle position.
//
// PHONE_ENTRY -> OTP_SENT -> OTP_VERIFIED -> CALLER_ID_PENDING ->
// CALLER_ID_VERIFIED, with FAILED / TIMED_OUT terminal from any non-terminal
// state. TIMED_OUT additionally allows re-triggering the outbound validation
// call without repeating OTP.
type State string

const (
	StatePhoneEntry       State = "PHONE_ENTRY"
	StateOTPSent          State = "OTP_SENT"
	StateOTPVerified      State = "OTP_VERIFIED"
	StateCallerIDPending  State = "CALLER_ID_PENDING"
	StateCallerIDVerified State = "CALLER_ID_VERIFIED"
	StateFailed           State = "FAILED"
	StateTimedOut         State = "TIMED_OUT"
)

// Terminal reports whether no further transitions are possible from s.
// TIMED_OUT is terminal for the wait but still allows a manual re-trigger.
func (s State) Terminal() bool {
	return s == StateCallerIDVerified || s == StateFailed
}

// StepError is the structured failure surfaced for every verification step.
// Steps are never retried automatically; the user decides.
type StepError struct {
	Message      string `json:"message"`
	ProviderCode string `json:"provider_code,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

func (e *StepError) Error() string {
	if e.ProviderCode != "" {
		return fmt.Sprintf("%s (provider code %s)", e.Message, e.ProviderCode)
	}
	return e.Message
}
