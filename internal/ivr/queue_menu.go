package ivr

import (
	"net/url"

	"github.com/apanagidis/callback/internal/twiml"
)

// digitMap assigns the menu option digits dynamically: with both features
// enabled callback is 2 and voicemail is 3; with only one enabled that one
// takes slot 2.
type digitMap struct {
	Callback  string
	Voicemail string
}

func newDigitMap(callbackEnabled, voicemailEnabled bool) digitMap {
	switch {
	case callbackEnabled && voicemailEnabled:
		return digitMap{Callback: "2", Voicemail: "3"}
	case callbackEnabled:
		return digitMap{Callback: "2"}
	case voicemailEnabled:
		return digitMap{Voicemail: "2"}
	default:
		return digitMap{}
	}
}

func (o *Options) queueMenuURL(state CallState, mode Mode, extra url.Values) string {
	params := state.Query()
	params.Set("mode", string(mode))
	for key, values := range extra {
		for _, v := range values {
			params.Set(key, v)
		}
	}
	return BuildURL(o.Domain, QueueMenuPath, params)
}

// QueueMenu is the transition function for the main in-queue menu. Modes:
// main (greeting, hold loop, option-1 gather), mainProcess (present the
// menu of options) and menuProcess (route the selection). Every branch ends
// in a gather, a redirect loop, or a hand-off to another menu; an
// unrecognized digit always re-prompts rather than failing the call.
func (o *Options) QueueMenu(mode Mode, state CallState, input Input) (*twiml.Response, error) {
	resp := &twiml.Response{}
	digits := newDigitMap(state.IsCallbackEnabled, state.IsVoicemailEnabled)

	switch mode {
	case ModeMain:
		if !state.SkipGreeting {
			greeting := ""
			if o.EWTEnabled && o.Wait != nil {
				greeting += waitAnnouncement(o.Wait.EstimatedWait(state.TaskSid))
			}
			if o.QueuePositionEnabled && o.Position != nil {
				greeting += positionAnnouncement(o.Position.QueuePosition(state.TaskSid))
			}
			greeting += "...Please wait while we direct your call to the next available specialist..."
			resp.Append(o.say(greeting))
		}

		if state.IsCallbackEnabled || state.IsVoicemailEnabled {
			loopState := state
			loopState.SkipGreeting = false
			resp.Append(twiml.Gather{
				Input:     "dtmf",
				NumDigits: 1,
				Timeout:   2,
				Action:    o.queueMenuURL(loopState, ModeMainProcess, nil),
				Verbs: []twiml.Verb{
					o.say("To listen to a menu of options while on hold, press 1 at anytime."),
					o.holdMusic(),
				},
			})
			resp.Append(twiml.Redirect{URL: o.queueMenuURL(loopState, ModeMain, nil)})
		} else {
			// No deferred options: free-loop on hold music.
			loopState := state
			loopState.SkipGreeting = true
			resp.Append(o.holdMusic())
			resp.Append(twiml.Redirect{URL: o.queueMenuURL(loopState, ModeMain, nil)})
		}
		return resp, nil

	case ModeMainProcess:
		if input.Digits == "1" {
			message := "The following options are available..."
			message += "Press 1 to remain on hold..."
			if state.IsCallbackEnabled {
				message += "Press " + digits.Callback + " to request a callback..."
			}
			if state.IsVoicemailEnabled {
				message += "Press " + digits.Voicemail + " to request a voicemail..."
			}
			message += "Press the star key to listen to these options again..."

			resp.Append(twiml.Gather{
				Input:     "dtmf",
				NumDigits: 1,
				Timeout:   1,
				Action:    o.queueMenuURL(state, ModeMenuProcess, nil),
				Verbs: []twiml.Verb{
					o.say(message),
					o.holdMusic(),
				},
			})
			resp.Append(twiml.Redirect{URL: o.queueMenuURL(state, ModeMain, nil)})
			return resp, nil
		}
		skipState := state
		skipState.SkipGreeting = true
		resp.Append(o.say("I did not understand your selection."))
		resp.Append(twiml.Redirect{URL: o.queueMenuURL(skipState, ModeMain, nil)})
		return resp, nil

	case ModeMenuProcess:
		switch input.Digits {
		case "1":
			// Stay in queue.
			skipState := state
			skipState.SkipGreeting = true
			resp.Append(twiml.Redirect{URL: o.queueMenuURL(skipState, ModeMain, nil)})
			return resp, nil
		case digits.Callback:
			if digits.Callback != "" {
				params := state.Query()
				params.Set("mode", string(ModeMain))
				resp.Append(twiml.Redirect{URL: BuildURL(o.Domain, CallbackMenuPath, params)})
				return resp, nil
			}
		case digits.Voicemail:
			if digits.Voicemail != "" {
				params := state.Query()
				params.Set("mode", string(ModePreProcess))
				resp.Append(twiml.Redirect{URL: BuildURL(o.Domain, VoicemailMenuPath, params)})
				return resp, nil
			}
		case "*":
			resp.Append(twiml.Redirect{URL: o.queueMenuURL(state, ModeMainProcess, url.Values{"Digits": {"1"}})})
			return resp, nil
		}
		// Unrecognized selection: replay the options menu.
		resp.Append(o.say("I did not understand your selection."))
		resp.Append(twiml.Redirect{URL: o.queueMenuURL(state, ModeMainProcess, url.Values{"Digits": {"1"}})})
		return resp, nil

	default:
		return nil, ErrUnknownMode
	}
}
