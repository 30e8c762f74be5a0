package telephony

import (
	"context"
	"errors"
	"strconv"

	"voice-platform/internal/verify"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

// TwilioVerifier is the provider adapter for phone and caller-ID
// verification. All Twilio SDK calls for the verification flow live here.
type TwilioVerifier struct {
	client           *twilio.RestClient
	verifyServiceSID string
}

func NewTwilioVerifier(accountSID, authToken, verifyServiceSID string) (*TwilioVerifier, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("telephony: twilio credentials required")
	}
	if verifyServiceSID == "" {
		return nil, errors.New("telephony: verify service sid required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioVerifier{client: client, verifyServiceSID: verifyServiceSID}, nil
}

var _ verify.OTPSender = (*TwilioVerifier)(nil)
var _ verify.OTPChecker = (*TwilioVerifier)(nil)
var _ verify.CallerIDValidator = (*TwilioVerifier)(nil)

// SendOTP asks Twilio Verify to deliver a one-time code.
func (t *TwilioVerifier) SendOTP(_ context.Context, phone, channel string) error {
	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel(channel)

	_, err := t.client.VerifyV2.CreateVerification(t.verifyServiceSID, params)
	if err != nil {
		return wrapTwilioError("verification send rejected", err)
	}
	return nil
}

// CheckOTP submits the code; only status "approved" counts.
func (t *TwilioVerifier) CheckOTP(_ context.Context, phone, code string) (bool, error) {
	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	res, err := t.client.VerifyV2.CreateVerificationCheck(t.verifyServiceSID, params)
	if err != nil {
		return false, wrapTwilioError("verification check rejected", err)
	}
	return res.Status != nil && *res.Status == "approved", nil
}

// StartValidation places the outbound caller-ID validation call. Twilio reads
// the returned code to whoever answers; the confirmation arrives at the
// status callback.
func (t *TwilioVerifier) StartValidation(_ context.Context, phone, statusCallbackURL string) (verify.ValidationCall, error) {
	params := &twilioapi.CreateValidationRequestParams{}
	params.SetPhoneNumber(phone)
	if statusCallbackURL != "" {
		params.SetStatusCallback(statusCallbackURL)
	}

	res, err := t.client.Api.CreateValidationRequest(params)
	if err != nil {
		return verify.ValidationCall{}, wrapTwilioError("validation call rejected", err)
	}

	call := verify.ValidationCall{}
	if res.ValidationCode != nil {
		call.ValidationCode = *res.ValidationCode
	}
	if res.CallSid != nil {
		call.CallSid = *res.CallSid
	}
	return call, nil
}

// wrapTwilioError surfaces the provider error code without leaking the full
// REST error upstream.
func wrapTwilioError(msg string, err error) error {
	var apiErr *twilioclient.TwilioRestError
	if errors.As(err, &apiErr) {
		return &verify.StepError{
			Message:      msg,
			ProviderCode: strconv.Itoa(apiErr.Code),
			Detail:       apiErr.Message,
		}
	}
	return &verify.StepError{Message: msg, Detail: err.Error()}
}
