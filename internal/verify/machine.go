package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-platform/internal/profile"
	"voice-platform/internal/rates"
)

var (
	// ErrInvalidTransition is returned when an operation is invoked from a
	// state it is not allowed in.
	ErrInvalidTransition = errors.New("verify: operation not allowed in current state")

	// ErrOTPRejected is returned when the provider does not approve the
	// submitted one-time code. The machine stays in OTP_SENT.
	ErrOTPRejected = errors.New("verify: code not approved")

	// ErrWaitTimedOut is returned when the caller-ID confirmation window
	// elapses without the flag flipping.
	ErrWaitTimedOut = errors.New("verify: caller id confirmation timed out")
)

const (
	defaultPollInterval = 3 * time.Second
	defaultWaitWindow   = 120 * time.Second

	// ChannelSMS and ChannelCall are the supported OTP delivery channels.
	ChannelSMS  = "sms"
	ChannelCall = "call"
)

// OTPSender delivers a one-time code to a phone number over a channel.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, channel string) error
}

// OTPChecker verifies a submitted one-time code against the provider.
type OTPChecker interface {
	CheckOTP(ctx context.Context, phone, code string) (bool, error)
}

// ValidationCall describes an initiated outbound caller-ID validation call.
type ValidationCall struct {
	ValidationCode string `json:"validationCode"`
	CallSid        string `json:"callSid"`
}

// CallerIDValidator places the outbound validation call that reads a code to
// the user. Confirmation arrives asynchronously via the provider's status
// callback, which flips the profile flag.
type CallerIDValidator interface {
	StartValidation(ctx context.Context, phone, statusCallbackURL string) (ValidationCall, error)
}

// Machine drives one user's caller-identity verification. It is safe for
// concurrent use; the HTTP layer keeps one machine per user for the duration
// of the flow and discards it on abandonment.
type Machine struct {
	userID    string
	sender    OTPSender
	checker   OTPChecker
	validator CallerIDValidator
	profiles  profile.Store

	callbackURL  string
	pollInterval time.Duration
	waitWindow   time.Duration

	mu    sync.Mutex
	state State
	phone string
}

// MachineConfig carries the collaborators a Machine needs.
type MachineConfig struct {
	UserID            string
	Sender            OTPSender
	Checker           OTPChecker
	Validator         CallerIDValidator
	Profiles          profile.Store
	StatusCallbackURL string

	// PollInterval and WaitWindow override the 3s / 120s defaults, mainly
	// for tests.
	PollInterval time.Duration
	WaitWindow   time.Duration
}

func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		userID:       cfg.UserID,
		sender:       cfg.Sender,
		checker:      cfg.Checker,
		validator:    cfg.Validator,
		profiles:     cfg.Profiles,
		callbackURL:  cfg.StatusCallbackURL,
		pollInterval: cfg.PollInterval,
		waitWindow:   cfg.WaitWindow,
		state:        StatePhoneEntry,
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.waitWindow <= 0 {
		m.waitWindow = defaultWaitWindow
	}
	return m
}

// State returns the current lifecycle position.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Phone returns the number under verification, normalized.
func (m *Machine) Phone() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phone
}

// SendOTP requests a one-time code for phone over channel ("sms" or "call").
// Allowed from PHONE_ENTRY, and from OTP_SENT as a resend. On provider
// failure the state does not advance and a StepError is returned.
func (m *Machine) SendOTP(ctx context.Context, phone, channel string) error {
	normalized := rates.Normalize(phone)
	if normalized == "" {
		return &StepError{Message: "a phone number is required"}
	}
	if channel != ChannelSMS && channel != ChannelCall {
		channel = ChannelSMS
	}

	m.mu.Lock()
	if m.state != StatePhoneEntry && m.state != StateOTPSent {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.mu.Unlock()

	if err := m.sender.SendOTP(ctx, normalized, channel); err != nil {
		return stepError("failed to send verification code", err)
	}

	m.mu.Lock()
	m.state = StateOTPSent
	m.phone = normalized
	m.mu.Unlock()
	return nil
}

// CheckOTP submits the user's code. On approval the profile's phone_verified
// flag is set and the machine advances to OTP_VERIFIED. A rejected code keeps
// the machine in OTP_SENT so the user can retry or resend.
func (m *Machine) CheckOTP(ctx context.Context, code string) error {
	m.mu.Lock()
	if m.state != StateOTPSent {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	phone := m.phone
	m.mu.Unlock()

	approved, err := m.checker.CheckOTP(ctx, phone, code)
	if err != nil {
		return stepError("failed to check verification code", err)
	}
	if !approved {
		return ErrOTPRejected
	}

	if err := m.profiles.SetPhoneVerified(ctx, m.userID, phone); err != nil {
		return fmt.Errorf("verify: persist phone verification: %w", err)
	}

	m.mu.Lock()
	m.state = StateOTPVerified
	m.mu.Unlock()
	return nil
}

// StartCallerIDValidation places the outbound validation call. Allowed from
// OTP_VERIFIED and from TIMED_OUT, so a user whose wait expired can
// re-trigger the call without repeating OTP.
func (m *Machine) StartCallerIDValidation(ctx context.Context) (ValidationCall, error) {
	m.mu.Lock()
	if m.state != StateOTPVerified && m.state != StateTimedOut {
		m.mu.Unlock()
		return ValidationCall{}, ErrInvalidTransition
	}
	phone := m.phone
	m.mu.Unlock()

	call, err := m.validator.StartValidation(ctx, phone, m.callbackURL)
	if err != nil {
		return ValidationCall{}, stepError("failed to start caller id validation", err)
	}

	m.mu.Lock()
	m.state = StateCallerIDPending
	m.mu.Unlock()
	return call, nil
}

// WaitForCallerID blocks until the profile's caller_id_verified flag flips,
// the wait window elapses, or ctx is cancelled. It polls the profile store on
// the machine's interval. On window expiry the machine moves to TIMED_OUT;
// cancellation leaves the state untouched so the caller can retry the wait.
func (m *Machine) WaitForCallerID(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateCallerIDPending {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.mu.Unlock()

	deadline := time.NewTimer(m.waitWindow)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	check := func() (bool, error) {
		p, err := m.profiles.Get(ctx, m.userID)
		if err != nil {
			return false, err
		}
		return p.CallerIDVerified, nil
	}

	// Check once up front: the status callback may have already landed.
	if ok, err := check(); err == nil && ok {
		m.transition(StateCallerIDVerified)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			m.transition(StateTimedOut)
			return ErrWaitTimedOut
		case <-ticker.C:
			ok, err := check()
			if err != nil {
				// Transient store errors do not end the wait.
				continue
			}
			if ok {
				m.transition(StateCallerIDVerified)
				return nil
			}
		}
	}
}

// Fail marks the flow failed, for unrecoverable provider errors surfaced by
// the HTTP layer.
func (m *Machine) Fail() {
	m.transition(StateFailed)
}

func (m *Machine) transition(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func stepError(msg string, err error) error {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return &StepError{Message: msg, Detail: err.Error()}
}
