// Package discord implements the bot Adapter for Discord using the Gateway
// WebSocket. Citizens report issues by direct-messaging the bot; text,
// shared coordinates, image attachments, and voice notes all ride the same
// channel.
package discord

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dhvanip/nagarseva/internal/bot"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
	// maxAttachmentBytes caps how much of an attachment we download.
	maxAttachmentBytes = 25 << 20
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.UserChannelCreate(recipientID, options...)
}
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}

// Adapter implements bot.Adapter for Discord via the Gateway WebSocket.
type Adapter struct {
	sess        session
	botToken    string
	botUserID   string
	httpClient  *http.Client
	mu          sync.Mutex
	connected   bool
	closed      bool
	inbound     chan bot.InboundMessage
	cancelFunc  context.CancelFunc
	removeMsg   func()
	baseBackoff time.Duration
	maxBackoff  time.Duration
	// dmChannels caches citizen ID -> DM channel ID.
	dmChannels map[string]string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string // Discord bot token
	// For testing: inject a mock session instead of real Discord API.
	Session session
	// For testing: inject an HTTP client for attachment downloads.
	HTTPClient *http.Client
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		inbound:     make(chan bot.InboundMessage, 100),
		httpClient:  opts.HTTPClient,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		dmChannels:  make(map[string]string),
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}

	return a, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns a channel of inbound citizen messages. Registers a message
// handler on the Gateway session. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan bot.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	listenCtx, cancel := context.WithCancel(ctx)

	remove := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(listenCtx, m)
	})

	a.mu.Lock()
	a.cancelFunc = cancel
	a.removeMsg = remove
	a.mu.Unlock()

	return a.inbound, nil
}

// Send delivers a reply to a citizen's DM channel.
func (a *Adapter) Send(ctx context.Context, msg bot.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	channelID := a.dmChannels[msg.CitizenID]
	a.mu.Unlock()

	if channelID == "" {
		ch, err := a.sess.UserChannelCreate(msg.CitizenID)
		if err != nil {
			return fmt.Errorf("discord: open DM channel: %w", err)
		}
		channelID = ch.ID
		a.mu.Lock()
		a.dmChannels[msg.CitizenID] = channelID
		a.mu.Unlock()
	}

	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(channelID, msg.Text)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	if a.removeMsg != nil {
		a.removeMsg()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event into inbound citizen
// messages. A single Discord message can fan out: each attachment becomes
// its own image or voice message, and the text body (if any) follows.
func (a *Adapter) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	if m.Author.ID != botID {
		// Remember the DM channel so replies skip the UserChannelCreate call.
		a.dmChannels[m.Author.ID] = m.ChannelID
	}
	a.mu.Unlock()

	if m.Author.ID == botID {
		return
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	base := bot.InboundMessage{
		Platform:  "discord",
		CitizenID: m.Author.ID,
		Timestamp: ts,
	}

	for _, att := range m.Attachments {
		kind := attachmentKind(att.ContentType)
		if kind == "" {
			continue
		}
		data, err := a.download(ctx, att.URL)
		if err != nil {
			log.Printf("discord: download attachment from %s: %v", m.Author.ID, err)
			continue
		}
		msg := base
		msg.Kind = kind
		msg.Media = data
		msg.MimeType = att.ContentType
		if kind == bot.KindImage {
			msg.Caption = m.Content
		}
		a.deliver(ctx, msg)
	}

	text := strings.TrimSpace(m.Content)
	if text == "" || len(m.Attachments) > 0 {
		return
	}

	// A bare coordinate pair is treated as a shared location.
	if lat, lng, ok := parseCoordinates(text); ok {
		msg := base
		msg.Kind = bot.KindLocation
		msg.Latitude = lat
		msg.Longitude = lng
		a.deliver(ctx, msg)
		return
	}

	msg := base
	msg.Kind = bot.KindText
	msg.Text = text
	a.deliver(ctx, msg)
}

// deliver pushes a message into the inbound channel unless the listener is
// shutting down.
func (a *Adapter) deliver(ctx context.Context, msg bot.InboundMessage) {
	select {
	case <-ctx.Done():
	case a.inbound <- msg:
	}
}

// download fetches an attachment body, capped at maxAttachmentBytes.
func (a *Adapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// attachmentKind maps a content type to a message kind. Unknown types are
// skipped.
func attachmentKind(contentType string) bot.Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return bot.KindImage
	case strings.HasPrefix(contentType, "audio/"):
		return bot.KindVoice
	default:
		return ""
	}
}

// parseCoordinates recognizes "lat,lng" or "lat, lng" text as a shared
// location within plausible bounds.
func parseCoordinates(text string) (lat, lng float64, ok bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
