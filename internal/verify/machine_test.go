package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-platform/internal/profile"
)

type fakeOTP struct {
	sendErr   error
	checkErr  error
	approved  bool
	sentTo    []string
	sentOver  []string
	checked   []string
	lastPhone string
}

func (f *fakeOTP) SendOTP(_ context.Context, phone, channel string) error {
	f.sentTo = append(f.sentTo, phone)
	f.sentOver = append(f.sentOver, channel)
	return f.sendErr
}

func (f *fakeOTP) CheckOTP(_ context.Context, phone, code string) (bool, error) {
	f.lastPhone = phone
	f.checked = append(f.checked, code)
	return f.approved, f.checkErr
}

type fakeValidator struct {
	err      error
	calls    int
	callback string
}

func (f *fakeValidator) StartValidation(_ context.Context, _, statusCallbackURL string) (ValidationCall, error) {
	f.calls++
	f.callback = statusCallbackURL
	if f.err != nil {
		return ValidationCall{}, f.err
	}
	return ValidationCall{ValidationCode: "481516", CallSid: "CA900"}, nil
}

func newTestMachine(t *testing.T, otp *fakeOTP, val *fakeValidator, store profile.Store) *Machine {
	t.Helper()
	return NewMachine(MachineConfig{
		UserID:            "u1",
		Sender:            otp,
		Checker:           otp,
		Validator:         val,
		Profiles:          store,
		StatusCallbackURL: "https://api.example.com/webhooks/caller-id-status",
		PollInterval:      5 * time.Millisecond,
		WaitWindow:        60 * time.Millisecond,
	})
}

func TestHappyPathThroughOTP(t *testing.T) {
	otp := &fakeOTP{approved: true}
	store := profile.NewMemoryStore(profile.Profile{UserID: "u1"})
	m := newTestMachine(t, otp, &fakeValidator{}, store)

	if m.State() != StatePhoneEntry {
		t.Fatalf("initial state = %s", m.State())
	}

	if err := m.SendOTP(context.Background(), "+1 (415) 555-0100", ChannelSMS); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if m.State() != StateOTPSent {
		t.Fatalf("state after send = %s", m.State())
	}
	if got := otp.sentTo[0]; got != "+14155550100" {
		t.Fatalf("sent to %q, want normalized number", got)
	}

	if err := m.CheckOTP(context.Background(), "123456"); err != nil {
		t.Fatalf("CheckOTP: %v", err)
	}
	if m.State() != StateOTPVerified {
		t.Fatalf("state after check = %s", m.State())
	}

	p, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.PhoneVerified || p.Phone != "+14155550100" {
		t.Fatalf("profile not updated: verified=%v phone=%q", p.PhoneVerified, p.Phone)
	}
}

func TestSendOTPResendAllowed(t *testing.T) {
	otp := &fakeOTP{}
	m := newTestMachine(t, otp, &fakeValidator{}, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))

	if err := m.SendOTP(context.Background(), "+14155550100", ChannelSMS); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := m.SendOTP(context.Background(), "+14155550100", ChannelCall); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(otp.sentTo) != 2 || otp.sentOver[1] != ChannelCall {
		t.Fatalf("resend not delivered: %v %v", otp.sentTo, otp.sentOver)
	}
}

func TestSendOTPProviderFailureDoesNotAdvance(t *testing.T) {
	otp := &fakeOTP{sendErr: errors.New("twilio: 60203 max send attempts")}
	m := newTestMachine(t, otp, &fakeValidator{}, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))

	err := m.SendOTP(context.Background(), "+14155550100", ChannelSMS)
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("want StepError, got %v", err)
	}
	if m.State() != StatePhoneEntry {
		t.Fatalf("state advanced on failure: %s", m.State())
	}
}

func TestCheckOTPRejectedStaysInOTPSent(t *testing.T) {
	otp := &fakeOTP{approved: false}
	store := profile.NewMemoryStore(profile.Profile{UserID: "u1"})
	m := newTestMachine(t, otp, &fakeValidator{}, store)

	if err := m.SendOTP(context.Background(), "+14155550100", ChannelSMS); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if err := m.CheckOTP(context.Background(), "000000"); !errors.Is(err, ErrOTPRejected) {
		t.Fatalf("err = %v, want ErrOTPRejected", err)
	}
	if m.State() != StateOTPSent {
		t.Fatalf("state = %s, want OTP_SENT", m.State())
	}

	p, _ := store.Get(context.Background(), "u1")
	if p.PhoneVerified {
		t.Fatal("phone_verified flipped on rejected code")
	}
}

func TestCheckOTPRequiresOTPSent(t *testing.T) {
	m := newTestMachine(t, &fakeOTP{}, &fakeValidator{}, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))
	if err := m.CheckOTP(context.Background(), "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestStartCallerIDValidation(t *testing.T) {
	otp := &fakeOTP{approved: true}
	val := &fakeValidator{}
	m := newTestMachine(t, otp, val, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))

	ctx := context.Background()
	if err := m.SendOTP(ctx, "+14155550100", ChannelSMS); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}

	call, err := m.StartCallerIDValidation(ctx)
	if err != nil {
		t.Fatalf("StartCallerIDValidation: %v", err)
	}
	if call.ValidationCode != "481516" || call.CallSid != "CA900" {
		t.Fatalf("unexpected call: %+v", call)
	}
	if val.callback != "https://api.example.com/webhooks/caller-id-status" {
		t.Fatalf("callback = %q", val.callback)
	}
	if m.State() != StateCallerIDPending {
		t.Fatalf("state = %s", m.State())
	}
}

func TestStartCallerIDValidationNotAllowedBeforeOTP(t *testing.T) {
	m := newTestMachine(t, &fakeOTP{}, &fakeValidator{}, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))
	if _, err := m.StartCallerIDValidation(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestWaitForCallerIDSucceedsWhenFlagFlips(t *testing.T) {
	otp := &fakeOTP{approved: true}
	store := profile.NewMemoryStore(profile.Profile{UserID: "u1"})
	m := newTestMachine(t, otp, &fakeValidator{}, store)

	ctx := context.Background()
	if err := m.SendOTP(ctx, "+14155550100", ChannelSMS); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartCallerIDValidation(ctx); err != nil {
		t.Fatal(err)
	}

	// Simulate the status callback landing mid-wait.
	go func() {
		time.Sleep(15 * time.Millisecond)
		_ = store.SetCallerIDVerified(context.Background(), "u1", true)
	}()

	if err := m.WaitForCallerID(ctx); err != nil {
		t.Fatalf("WaitForCallerID: %v", err)
	}
	if m.State() != StateCallerIDVerified {
		t.Fatalf("state = %s", m.State())
	}
}

func TestWaitForCallerIDWindowExpiryAllowsRetrigger(t *testing.T) {
	otp := &fakeOTP{approved: true}
	val := &fakeValidator{}
	m := newTestMachine(t, otp, val, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))

	ctx := context.Background()
	if err := m.SendOTP(ctx, "+14155550100", ChannelSMS); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartCallerIDValidation(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m.WaitForCallerID(ctx); !errors.Is(err, ErrWaitTimedOut) {
		t.Fatalf("err = %v, want ErrWaitTimedOut", err)
	}
	if m.State() != StateTimedOut {
		t.Fatalf("state = %s, want TIMED_OUT", m.State())
	}

	// TIMED_OUT allows a fresh validation call without repeating OTP.
	if _, err := m.StartCallerIDValidation(ctx); err != nil {
		t.Fatalf("re-trigger after timeout: %v", err)
	}
	if val.calls != 2 {
		t.Fatalf("validator calls = %d, want 2", val.calls)
	}
}

func TestWaitForCallerIDCancellation(t *testing.T) {
	otp := &fakeOTP{approved: true}
	m := newTestMachine(t, otp, &fakeValidator{}, profile.NewMemoryStore(profile.Profile{UserID: "u1"}))

	ctx := context.Background()
	if err := m.SendOTP(ctx, "+14155550100", ChannelSMS); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartCallerIDValidation(ctx); err != nil {
		t.Fatal(err)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.WaitForCallerID(waitCtx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// Cancellation leaves the flow resumable.
	if m.State() != StateCallerIDPending {
		t.Fatalf("state = %s, want CALLER_ID_PENDING", m.State())
	}
}
