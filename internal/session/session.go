// Package session owns the ephemeral per-citizen conversation state: the
// session record, its draft complaint, and the expiring in-memory store.
// Sessions are never persisted; a process restart simply restarts the flow.
package session

import "time"

// State is a conversation step in the intake flow.
type State string

// Conversation states. A session always starts in LanguageSelection and is
// parked in Completed after a successful submission.
const (
	StateLanguageSelection State = "language_selection"
	StateCategorySelection State = "category_selection"
	StateLocationCapture   State = "location_capture"
	StateDescription       State = "description"
	StateCompleted         State = "completed"
)

// Session is one citizen's in-progress conversation.
type Session struct {
	CitizenID      string
	Language       string // "", or one of templates.Lang*
	State          State
	Draft          Draft
	LastActivityAt time.Time
}

// Draft is the partially built complaint attached to a session. Fields fill
// in as the conversation advances; media may arrive in any order.
type Draft struct {
	CategoryID    string
	CategoryLabel string // label in the citizen's language
	Location      *Location
	Description   string
	Photos        []StagedPhoto
	VoiceNotes    []StagedVoice
}

// HasCategory reports whether the category step has completed.
func (d *Draft) HasCategory() bool { return d.CategoryID != "" }

// HasLocation reports whether a location has been captured.
func (d *Draft) HasLocation() bool { return d.Location != nil }

// HasDescription reports whether a description is already present, e.g.
// supplied early via a voice transcript.
func (d *Draft) HasDescription() bool { return d.Description != "" }

// Location is a captured complaint location. Lat/Lng are nil for manually
// typed addresses. Ward is set only when the geocoder could resolve one.
type Location struct {
	Lat     *float64
	Lng     *float64
	Address string
	Ward    *int
}

// StagedPhoto references an image staged in temporary storage, promoted to
// the complaint's directory at submission.
type StagedPhoto struct {
	StagedRef string // filename within the staging area
	Caption   string
	MimeType  string
}

// StagedVoice references a staged voice note and its transcript.
type StagedVoice struct {
	StagedRef  string
	Transcript string
}
