package ivr

import (
	"github.com/apanagidis/callback/internal/twiml"
)

func (o *Options) voicemailMenuURL(state CallState, mode Mode) string {
	params := state.Query()
	params.Set("mode", string(mode))
	return BuildURL(o.Domain, VoicemailMenuPath, params)
}

// VoicemailMenuURL exposes the redirect target for a given voicemail mode;
// the pre-process step needs it to point the live call at the recording menu
// through an out-of-band call update.
func (o *Options) VoicemailMenuURL(state CallState, mode Mode) string {
	return o.voicemailMenuURL(state, mode)
}

// VoicemailMenu is the transition function for the voicemail capture flow.
// Modes main (record prompt) and success (goodbye) are pure; pre-process and
// submitVoicemail are terminal actions owned by the webhook layer, which
// answers them with an empty response once the task work is issued.
func (o *Options) VoicemailMenu(mode Mode, state CallState, input Input) (*twiml.Response, error) {
	resp := &twiml.Response{}

	switch mode {
	case ModeMain:
		resp.Append(o.say("Please leave a message at the tone.  Press the star key when finished."))
		resp.Append(twiml.Record{
			Action:             o.voicemailMenuURL(state, ModeSuccess),
			TranscribeCallback: o.voicemailMenuURL(state, ModeSubmitVoicemail),
			Method:             "GET",
			PlayBeep:           true,
			Transcribe:         true,
			Timeout:            10,
			FinishOnKey:        "*",
		})
		resp.Append(o.say("I did not capture your recording"))
		return resp, nil

	case ModeSuccess:
		resp.Append(o.say("Your voicemail has been successfully received... goodbye"))
		resp.Append(twiml.Hangup{})
		return resp, nil

	default:
		return nil, ErrUnknownMode
	}
}
