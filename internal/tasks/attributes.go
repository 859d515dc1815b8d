// Package tasks manages the deferred work items (callback, voicemail) and
// their relationship to the queued calls they replace. It wraps the
// TaskRouter surface of the telephony platform; the attribute bag that rides
// on every task is modeled as a typed record here, with JSON kept strictly at
// the wire boundary.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task types this service creates or observes.
const (
	TypeCallback  = "callback"
	TypeVoicemail = "voicemail"
)

// Communication channel markers recorded on the conversations bag.
const (
	ChannelCallback  = "Callback"
	ChannelVoicemail = "Voicemail"
	ChannelCall      = "Call"
)

// Conversations is the correlation metadata bag shared across the work items
// of one conversation.
type Conversations struct {
	ConversationID         string `json:"conversation_id,omitempty"`
	CommunicationChannel   string `json:"communication_channel,omitempty"`
	Abandoned              string `json:"abandoned,omitempty"`
	ConversationAttribute6 string `json:"conversation_attribute_6,omitempty"` // call sid of the original inbound call
}

// Merge returns the bag with overlay's non-empty fields applied on top.
func (c Conversations) Merge(overlay Conversations) Conversations {
	if overlay.ConversationID != "" {
		c.ConversationID = overlay.ConversationID
	}
	if overlay.CommunicationChannel != "" {
		c.CommunicationChannel = overlay.CommunicationChannel
	}
	if overlay.Abandoned != "" {
		c.Abandoned = overlay.Abandoned
	}
	if overlay.ConversationAttribute6 != "" {
		c.ConversationAttribute6 = overlay.ConversationAttribute6
	}
	return c
}

// UIPlugin carries the button accessibility flags the agent desktop reads.
type UIPlugin struct {
	CbCallButtonAccessibility   *bool `json:"cbCallButtonAccessibility,omitempty"`
	VmCallButtonAccessibility   *bool `json:"vmCallButtonAccessibility,omitempty"`
	VmRecordButtonAccessibility *bool `json:"vmRecordButtonAccessibility,omitempty"`
}

// CallTime records when the deferred request was captured, with
// timezone-adjusted display strings for the agent desktop.
type CallTime struct {
	TimeRecvd       time.Time `json:"time_recvd"`
	ServerTZ        string    `json:"server_tz"`
	ServerTimeLong  string    `json:"server_time_long"`
	ServerTimeShort string    `json:"server_time_short"`
}

// NewCallTime captures now in the given timezone. An unknown timezone falls
// back to UTC rather than failing the capture.
func NewCallTime(now time.Time, timezone string) CallTime {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return CallTime{
		TimeRecvd:       now,
		ServerTZ:        timezone,
		ServerTimeLong:  local.Format("Jan 2 2006, 3:04:05 pm MST"),
		ServerTimeShort: local.Format("01-2-2006, 3:04:05 pm MST"),
	}
}

// Attributes is the work-item attribute bag. Reservation pointers are set
// once at creation and never reassigned; at most one of the two pointer
// fields may be set on any item.
type Attributes struct {
	Type      string `json:"type,omitempty"`
	Direction string `json:"direction,omitempty"`
	Name      string `json:"name,omitempty"`
	To        string `json:"to,omitempty"`
	From      string `json:"from,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Called    string `json:"called,omitempty"`
	CallSid   string `json:"call_sid,omitempty"`

	Ringback       string    `json:"ringback,omitempty"`
	CallTime       *CallTime `json:"callTime,omitempty"`
	PlaceCallRetry int       `json:"placeCallRetry,omitempty"`

	RecordingURL      string `json:"recordingUrl,omitempty"`
	RecordingSid      string `json:"recordingSid,omitempty"`
	TranscriptionSid  string `json:"transcriptionSid,omitempty"`
	TranscriptionText string `json:"transcriptionText,omitempty"`

	Conversations Conversations `json:"conversations,omitempty"`
	UIPlugin      *UIPlugin     `json:"ui_plugin,omitempty"`

	CallbackReservationSid  string `json:"callbackReservationSid,omitempty"`
	VoicemailReservationSid string `json:"voicemailReservationSid,omitempty"`

	// TargetQueueSid steers workflow routing: outbound return calls are
	// stamped with the queue their deferred item was accepted from, and the
	// workflow matches on it.
	TargetQueueSid string `json:"targetQueueSid,omitempty"`
}

// ParseAttributes decodes the serialized attribute bag from a task record.
func ParseAttributes(raw string) (Attributes, error) {
	var attrs Attributes
	if raw == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return attrs, fmt.Errorf("failed to parse task attributes: %w", err)
	}
	return attrs, nil
}

// Encode serializes the bag for the wire.
func (a Attributes) Encode() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode task attributes: %w", err)
	}
	return string(data), nil
}

// DecodeBag parses serialized attributes into a free-form map. The typed
// Attributes record only covers the keys this service reads; writes back to
// the platform go through the full bag so unmodeled keys survive.
func DecodeBag(raw string) (map[string]interface{}, error) {
	bag := map[string]interface{}{}
	if raw == "" {
		return bag, nil
	}
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return nil, fmt.Errorf("failed to parse task attributes: %w", err)
	}
	return bag, nil
}

// MergeBags deep-merges overlay into base and returns base. Nested maps merge
// recursively; any other overlay value replaces the base value.
func MergeBags(base, overlay map[string]interface{}) map[string]interface{} {
	for key, value := range overlay {
		if overlayMap, ok := value.(map[string]interface{}); ok {
			if baseMap, ok := base[key].(map[string]interface{}); ok {
				base[key] = MergeBags(baseMap, overlayMap)
				continue
			}
		}
		base[key] = value
	}
	return base
}

func boolPtr(v bool) *bool { return &v }
