// Package flow implements the intake conversation state machine: a pure
// transition function over a session and one inbound event. All I/O (media
// staging, geocoding, transcription, persistence) happens in the intake
// orchestrator before or after Step; events arrive here already enriched.
package flow

import "github.com/dhvanip/nagarseva/internal/templates"

// EventKind tags the inbound event variant.
type EventKind int

// Inbound event kinds.
const (
	EventText EventKind = iota
	EventLocation
	EventPhoto
	EventVoice
)

// Event is one enriched inbound citizen event.
type Event struct {
	Kind     EventKind
	Text     string
	Location *LocationEvent
	Photo    *PhotoEvent
	Voice    *VoiceEvent
}

// LocationEvent is a structured location share, with the address already
// resolved by the orchestrator (or a coordinate-string fallback on geocode
// failure).
type LocationEvent struct {
	Lat     float64
	Lng     float64
	Address string
	Ward    *int // ward hint from the geocoder, when available
}

// PhotoEvent is an image staged in temporary storage. StageFailed marks a
// staging error; the machine replies with an error and attaches nothing.
type PhotoEvent struct {
	StagedRef   string
	Caption     string
	MimeType    string
	StageFailed bool
}

// VoiceEvent is a staged voice note with its transcription attempt. Failed
// means transcription errored or timed out; the flow then falls back to the
// normal typed-description step.
type VoiceEvent struct {
	StagedRef  string
	Transcript string
	Failed     bool
}

// Reply is an outbound message request: a template key plus its variables.
// The orchestrator renders it in the session's language.
type Reply struct {
	Key  templates.Key
	Vars map[string]string
}

// Outcome is the result of one transition: messages to send back and
// whether the accumulated draft is ready for submission.
type Outcome struct {
	Replies []Reply
	Submit  bool
}

func reply(key templates.Key) Outcome {
	return Outcome{Replies: []Reply{{Key: key}}}
}

func replyVars(key templates.Key, vars map[string]string) Outcome {
	return Outcome{Replies: []Reply{{Key: key, Vars: vars}}}
}
