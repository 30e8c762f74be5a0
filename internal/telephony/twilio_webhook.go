package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"voice-platform/internal/recording"
)

// Twilio delivers webhooks as application/x-www-form-urlencoded POSTs. Our
// own routing parameters (userId, to) ride on the callback URL query string,
// so every parser reads the form body first and falls back to the query.
//
// Keep it minimal and provider-adapter-only. Business logic is not made here.

func formOrQuery(r *http.Request, key string) string {
	if v := r.PostFormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

// TwilioVoiceForm captures the subset of outbound voice webhook fields we
// care about.
type TwilioVoiceForm struct {
	CallSid string
	From    string
	To      string

	// UserID is our own parameter, passed by the client application when it
	// initiates the call through the TwiML app.
	UserID string
}

func ParseTwilioVoiceCall(r *http.Request) (TwilioVoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioVoiceForm{}, err
	}
	return TwilioVoiceForm{
		CallSid: formOrQuery(r, "CallSid"),
		From:    strings.TrimSpace(formOrQuery(r, "From")),
		To:      strings.TrimSpace(formOrQuery(r, "To")),
		UserID:  formOrQuery(r, "userId"),
	}, nil
}

// ParseRecordingCompletion decodes a recording status callback into the
// internal notification type. Unknown or absent fields come through as zero
// values; the pipeline decides what is fatal.
func ParseRecordingCompletion(r *http.Request) (recording.CompletionNotification, error) {
	if err := r.ParseForm(); err != nil {
		return recording.CompletionNotification{}, err
	}

	duration, _ := strconv.ParseInt(formOrQuery(r, "RecordingDuration"), 10, 64)

	// The recording callback body does not include the dialed number; our
	// "to" query parameter carries it. Tolerate either casing.
	to := formOrQuery(r, "to")
	if to == "" {
		to = formOrQuery(r, "To")
	}

	return recording.CompletionNotification{
		RecordingSid:    formOrQuery(r, "RecordingSid"),
		RecordingURL:    formOrQuery(r, "RecordingUrl"),
		DurationSeconds: duration,
		CallSid:         formOrQuery(r, "CallSid"),
		From:            strings.TrimSpace(formOrQuery(r, "From")),
		To:              strings.TrimSpace(to),
		Status:          formOrQuery(r, "RecordingStatus"),
		UserID:          formOrQuery(r, "userId"),
	}, nil
}

// TwilioDialResult is the <Dial action> completion callback: delivered when
// the dialed leg finishes, whether it was answered or not.
type TwilioDialResult struct {
	CallSid        string
	DialCallStatus string
	UserID         string
}

func ParseDialResult(r *http.Request) (TwilioDialResult, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioDialResult{}, err
	}
	return TwilioDialResult{
		CallSid:        formOrQuery(r, "CallSid"),
		DialCallStatus: formOrQuery(r, "DialCallStatus"),
		UserID:         formOrQuery(r, "userId"),
	}, nil
}

// TwilioCallerIDStatus is the outbound-api validation status callback.
type TwilioCallerIDStatus struct {
	CallSid            string
	PhoneNumber        string
	VerificationStatus string
}

func ParseCallerIDStatus(r *http.Request) (TwilioCallerIDStatus, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioCallerIDStatus{}, err
	}
	phone := formOrQuery(r, "To")
	if phone == "" {
		phone = formOrQuery(r, "Called")
	}
	return TwilioCallerIDStatus{
		CallSid:            formOrQuery(r, "CallSid"),
		PhoneNumber:        strings.TrimSpace(phone),
		VerificationStatus: formOrQuery(r, "VerificationStatus"),
	}, nil
}
