// Package bot bridges citizen chat platforms (Discord, etc.) to the intake
// pipeline.
package bot

import (
	"context"
	"time"
)

// Kind classifies an inbound message's modality.
type Kind string

const (
	KindText     Kind = "text"
	KindLocation Kind = "location"
	KindImage    Kind = "image"
	KindVoice    Kind = "voice"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// sending/receiving for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to a citizen.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from a citizen. Exactly one
// modality is populated, per Kind.
type InboundMessage struct {
	Platform  string    // e.g. "discord", "mock"
	CitizenID string    // platform-scoped citizen identifier
	Kind      Kind      // message modality
	Text      string    // text body (Kind text)
	Latitude  float64   // shared location (Kind location)
	Longitude float64   // shared location (Kind location)
	Media     []byte    // attachment payload (Kind image or voice)
	MimeType  string    // attachment content type
	Caption   string    // attachment caption, if the platform carries one
	Timestamp time.Time // when the message was sent
}

// OutboundMessage represents a reply to be sent to a citizen.
type OutboundMessage struct {
	CitizenID string // target citizen
	Text      string // rendered message text
}
