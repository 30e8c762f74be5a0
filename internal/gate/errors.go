package gate

import "errors"

// Rejection kinds. Every rejection maps to a safe, user-presentable message
// via RejectionMessage; internal detail never leaks to the caller.
var (
	ErrMissingDestination     = errors.New("missing destination")
	ErrDestinationNotAllowed  = errors.New("destination not allowed")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPlanRestriction        = errors.New("plan does not include calling")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrConfigurationError     = errors.New("no caller id available")
	ErrTooManyActiveCalls     = errors.New("too many active calls")
)

// RejectionMessage returns the spoken/displayed message for a rejection.
// Unknown errors get a generic message rather than surfacing internals.
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingDestination):
		return "No destination number was provided."
	case errors.Is(err, ErrDestinationNotAllowed):
		return "Calls to this destination are not available on your plan."
	case errors.Is(err, ErrAuthenticationRequired):
		return "Please sign in to place calls."
	case errors.Is(err, ErrPlanRestriction):
		return "Your current plan does not include phone calls. Please upgrade to continue."
	case errors.Is(err, ErrInsufficientCredits):
		return "You do not have enough credits for this call. Please top up to continue."
	case errors.Is(err, ErrTooManyActiveCalls):
		return "You already have a call in progress. Please finish it before starting another."
	case errors.Is(err, ErrConfigurationError):
		return "Calling is temporarily unavailable. Please try again later."
	default:
		return "We could not connect your call. Please try again later."
	}
}
