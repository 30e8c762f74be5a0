package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.

const clientPrefix = "client:"

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName                      xml.Name     `xml:"Dial"`
	CallerID                     string       `xml:"callerId,attr,omitempty"`
	Action                       string       `xml:"action,attr,omitempty"`
	Record                       string       `xml:"record,attr,omitempty"`
	RecordingStatusCallback      string       `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackEvent string       `xml:"recordingStatusCallbackEvent,attr,omitempty"`
	Number                       string       `xml:"Number,omitempty"`
	Client                       *twimlClient `xml:"Client,omitempty"`
}

type twimlClient struct {
	Identity string `xml:",chardata"`
}

// VoiceResult describes the instruction document for an outbound call leg.
// A nil Dial renders a spoken rejection followed by hangup.
type VoiceResult struct {
	// SayMessage is spoken before anything else. Required when Dial is nil.
	SayMessage string

	Dial *DialInstruction
}

// DialInstruction connects the caller to a destination with recording armed.
type DialInstruction struct {
	// Target is an E.164 number, or "client:<identity>" for an app endpoint.
	Target string

	CallerID string

	// RecordingCallbackURL arms dual-channel recording from answer and
	// directs the completion event at the given URL. Empty disables
	// recording.
	RecordingCallbackURL string

	// ActionURL is requested once the dialed leg finishes, with the dial
	// outcome in the form body. Empty omits the attribute.
	ActionURL string
}

// RenderVoiceTwiML maps a VoiceResult to TwiML.
func RenderVoiceTwiML(res VoiceResult) (string, error) {
	var r twimlResponse

	if res.SayMessage != "" {
		r.Verbs = append(r.Verbs, twimlSay{Voice: "alice", Text: res.SayMessage})
	}

	if res.Dial == nil {
		if res.SayMessage == "" {
			return "", errors.New("telephony: empty voice result")
		}
		r.Verbs = append(r.Verbs, twimlHangup{})
		return encodeTwiML(r)
	}

	d := res.Dial
	if strings.TrimSpace(d.Target) == "" {
		return "", errors.New("telephony: dial target required")
	}

	verb := twimlDial{CallerID: d.CallerID, Action: d.ActionURL}
	if d.RecordingCallbackURL != "" {
		verb.Record = "record-from-answer-dual"
		verb.RecordingStatusCallback = d.RecordingCallbackURL
		verb.RecordingStatusCallbackEvent = "completed"
	}
	if strings.HasPrefix(strings.ToLower(d.Target), clientPrefix) {
		verb.Client = &twimlClient{Identity: d.Target[len(clientPrefix):]}
	} else {
		verb.Number = d.Target
	}
	r.Verbs = append(r.Verbs, verb)

	return encodeTwiML(r)
}

func encodeTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
