package models

import "time"

// Complaint status values.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Complaint severity levels, assigned at submission time.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Complaint is the durable record of a single citizen report. The ID follows
// the legacy RSP<time><random> scheme and is assigned by the intake
// orchestrator, never by the database.
type Complaint struct {
	ID            string `gorm:"primaryKey;size:16"`
	CitizenID     string `gorm:"size:32;not null;index"` // phone-number identifier
	CategoryID    string `gorm:"size:24;not null;index"`
	CategoryLabel string `gorm:"size:128"` // label in the citizen's language
	Description   string `gorm:"type:text"`
	Language      string `gorm:"size:4"`
	Severity      string `gorm:"size:12;default:medium;index"`
	Status        string `gorm:"size:16;default:open;index"`

	Latitude  *float64
	Longitude *float64
	Address   string `gorm:"size:512"`
	WardID    int    `gorm:"index"`

	WardOfficer     string `gorm:"size:64"`
	RMCResponse     string `gorm:"type:text"`
	FeedbackRating  *int
	FeedbackComment string `gorm:"type:text"`

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time

	Photos     []Photo     `gorm:"foreignKey:ComplaintID"`
	VoiceNotes []VoiceNote `gorm:"foreignKey:ComplaintID"`
}

// Photo is a stored image attachment, written under the complaint's upload
// directory at submission time.
type Photo struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ComplaintID string `gorm:"size:16;not null;index"`
	Filename    string `gorm:"size:128;not null"`
	Path        string `gorm:"size:256"` // public /uploads/... path
	Caption     string `gorm:"size:512"`
	MimeType    string `gorm:"size:64;default:image/jpeg"`
	CreatedAt   time.Time
}

// VoiceNote pairs an audio attachment with its transcript.
type VoiceNote struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ComplaintID string `gorm:"size:16;not null;index"`
	Filename    string `gorm:"size:128;not null"`
	Path        string `gorm:"size:256"`
	Transcript  string `gorm:"type:text"`
	CreatedAt   time.Time
}
