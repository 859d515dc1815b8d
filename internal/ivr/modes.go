// Package ivr implements the in-queue voice menus as pure transition
// functions. A step takes the current mode plus the webhook inputs and
// produces the directive sequence for the response; every piece of state that
// must survive to the next webhook round-trip travels in the redirect URL's
// query parameters, never in memory.
package ivr

import (
	"errors"
	"fmt"
	"net/url"
)

// Mode identifies one state of a menu. Each menu accepts a closed set of
// modes; anything outside that set is a request-level error, not a call-flow
// branch.
type Mode string

const (
	ModeMain            Mode = "main"
	ModeMainProcess     Mode = "mainProcess"
	ModeMenuProcess     Mode = "menuProcess"
	ModeNewNumber       Mode = "newNumber"
	ModeSubmitCallback  Mode = "submitCallback"
	ModePreProcess      Mode = "pre-process"
	ModeSuccess         Mode = "success"
	ModeSubmitVoicemail Mode = "submitVoicemail"
)

// ErrUnknownMode reports a mode outside the menu's transition table. Handlers
// turn this into an HTTP 500; it is the only path that fails a request
// outright.
var ErrUnknownMode = errors.New("unrecognized menu mode")

// Webhook paths for cross-menu redirects.
const (
	QueueMenuPath     = "queue-menu"
	CallbackMenuPath  = "callback-menu"
	VoicemailMenuPath = "voicemail-menu"
)

// BuildURL assembles a webhook URL with percent-encoded query parameters.
// Empty values are omitted rather than sent as empty parameters.
func BuildURL(domain, path string, params url.Values) string {
	clean := url.Values{}
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				clean.Add(key, v)
			}
		}
	}
	u := fmt.Sprintf("https://%s/%s", domain, path)
	if encoded := clean.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// CallState is the cross-request state carried in redirect query parameters.
type CallState struct {
	TaskSid            string
	IsCallbackEnabled  bool
	IsVoicemailEnabled bool
	SkipGreeting       bool
	CallbackNumber     string // cbphone: number pending confirmation in the callback flow
}

// Query renders the state as query parameters. Flags are only present when
// set, matching the webhook contract.
func (s CallState) Query() url.Values {
	params := url.Values{}
	if s.TaskSid != "" {
		params.Set("taskSid", s.TaskSid)
	}
	if s.IsCallbackEnabled {
		params.Set("isCallbackEnabled", "true")
	}
	if s.IsVoicemailEnabled {
		params.Set("isVoicemailEnabled", "true")
	}
	if s.SkipGreeting {
		params.Set("skipGreeting", "true")
	}
	if s.CallbackNumber != "" {
		params.Set("cbphone", s.CallbackNumber)
	}
	return params
}

// Input carries the menu-specific webhook fields for one step.
type Input struct {
	Digits  string
	From    string
	Called  string
	CallSid string
}
