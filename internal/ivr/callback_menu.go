package ivr

import (
	"github.com/apanagidis/callback/internal/twiml"
)

func (o *Options) callbackMenuURL(state CallState, mode Mode) string {
	params := state.Query()
	params.Set("mode", string(mode))
	return BuildURL(o.Domain, CallbackMenuPath, params)
}

// CallbackMenu is the transition function for the callback capture flow.
// Modes: main (confirm the originating number), mainProcess (route the
// confirmation), newNumber (confirm a freshly typed number). The terminal
// submitCallback mode is handled by the webhook layer, which performs the
// task work and then renders CallbackConfirmation.
func (o *Options) CallbackMenu(mode Mode, state CallState, input Input) (*twiml.Response, error) {
	resp := &twiml.Response{}

	switch mode {
	case ModeMain:
		message := "You have requested a callback at " + FormatDigits(input.From) + "..."
		message += "If this is correct, press 1..."
		message += "Press 2 to be called at a different number"

		confirmState := state
		confirmState.CallbackNumber = input.From
		resp.Append(twiml.Gather{
			Input:     "dtmf",
			NumDigits: 1,
			Timeout:   2,
			Action:    o.callbackMenuURL(confirmState, ModeMainProcess),
			Verbs:     []twiml.Verb{o.say(message)},
		})

		queueParams := state.Query()
		queueParams.Set("mode", string(ModeMain))
		resp.Append(twiml.Redirect{URL: BuildURL(o.Domain, QueueMenuPath, queueParams)})
		return resp, nil

	case ModeMainProcess:
		switch input.Digits {
		case "1":
			resp.Append(twiml.Redirect{URL: o.callbackMenuURL(state, ModeSubmitCallback)})
			return resp, nil
		case "2":
			message := "Using your keypad, enter in your phone number..."
			message += "Press the pound sign when you are done..."

			resp.Append(twiml.Gather{
				Input:       "dtmf",
				Timeout:     10,
				FinishOnKey: "#",
				Action:      o.callbackMenuURL(state, ModeNewNumber),
				Verbs:       []twiml.Verb{o.say(message)},
			})
			resp.Append(twiml.Redirect{URL: o.callbackMenuURL(state, ModeMain)})
			return resp, nil
		case "*":
			skipState := state
			skipState.SkipGreeting = true
			resp.Append(twiml.Redirect{URL: o.callbackMenuURL(skipState, ModeMain)})
			return resp, nil
		default:
			resp.Append(o.say("I did not understand your selection."))
			resp.Append(twiml.Redirect{URL: o.callbackMenuURL(state, ModeMain)})
			return resp, nil
		}

	case ModeNewNumber:
		newNumber := input.Digits

		message := "You entered " + FormatDigits(newNumber) + " ..."
		message += "Press 1 if this is correct..."
		message += "Press 2 to re-enter your number"
		message += "Press the star key to return to the main menu"

		confirmState := state
		confirmState.CallbackNumber = newNumber
		resp.Append(twiml.Gather{
			Input:     "dtmf",
			NumDigits: 1,
			Timeout:   5,
			Action:    o.callbackMenuURL(confirmState, ModeMainProcess),
			Verbs:     []twiml.Verb{o.say(message)},
		})
		resp.Append(twiml.Redirect{URL: o.callbackMenuURL(confirmState, ModeMain)})
		return resp, nil

	default:
		return nil, ErrUnknownMode
	}
}

// CallbackConfirmation is the terminal response after a callback work item
// was requested: confirmation messages, then hang up. The caller never hears
// about platform-write failures behind this.
func (o *Options) CallbackConfirmation() *twiml.Response {
	resp := &twiml.Response{}
	resp.Append(
		o.say("Your callback request has been delivered..."),
		o.say("An available care specialist will reach out to contact you..."),
		o.say("Thank you for your call."),
		twiml.Hangup{},
	)
	return resp
}

// OutboundAnswer greets a customer picking up their requested callback and
// holds them until the outbound-call item reaches an agent.
func (o *Options) OutboundAnswer() (*twiml.Response, error) {
	resp := &twiml.Response{}
	resp.Append(
		o.say("Thank you for requesting a callback... connecting you to a specialist now."),
		o.holdMusic(),
	)
	return resp, nil
}
