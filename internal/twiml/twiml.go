// Package twiml builds voice-response documents. Each verb struct renders to
// its TwiML element through encoding/xml; a Response is the ordered sequence
// of directives returned to the telephony platform for one webhook round-trip.
package twiml

import (
	"bytes"
	"encoding/xml"
)

// Verb is one directive inside a voice response.
type Verb interface {
	isVerb()
}

// Response is the root element of a voice-response document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []Verb
}

// Append adds verbs to the end of the response.
func (r *Response) Append(verbs ...Verb) {
	r.Verbs = append(r.Verbs, verbs...)
}

// Render serializes the response with the XML declaration. An empty response
// renders as a bare <Response/>, which tells the platform to do nothing.
func (r *Response) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Say outputs text-to-speech.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

func (Say) isVerb() {}

// Play plays an audio asset.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (Play) isVerb() {}

// Gather collects DTMF input and posts it to Action. Nested verbs run while
// the gather is listening.
type Gather struct {
	XMLName     xml.Name `xml:"Gather"`
	Input       string   `xml:"input,attr,omitempty"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	NumDigits   int      `xml:"numDigits,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
	Action      string   `xml:"action,attr,omitempty"`
	Method      string   `xml:"method,attr,omitempty"`
	Verbs       []Verb
}

func (Gather) isVerb() {}

// Record records the caller, posting the result to Action and the transcript
// to TranscribeCallback.
type Record struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	Timeout            int      `xml:"timeout,attr,omitempty"`
	FinishOnKey        string   `xml:"finishOnKey,attr,omitempty"`
	PlayBeep           bool     `xml:"playBeep,attr"`
	Transcribe         bool     `xml:"transcribe,attr"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

func (Record) isVerb() {}

// Redirect transfers control of the call to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (Redirect) isVerb() {}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (Hangup) isVerb() {}

// Pause waits the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

func (Pause) isVerb() {}
