// Package intake orchestrates the complaint pipeline: it enriches inbound
// citizen messages (media staging, geocoding, transcription), drives the
// conversation state machine, and on submission persists the complaint and
// fans out dashboard events.
package intake

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/dhvanip/nagarseva/internal/alerts"
	"github.com/dhvanip/nagarseva/internal/bot"
	"github.com/dhvanip/nagarseva/internal/broadcast"
	"github.com/dhvanip/nagarseva/internal/classify"
	"github.com/dhvanip/nagarseva/internal/flow"
	"github.com/dhvanip/nagarseva/internal/geocode"
	"github.com/dhvanip/nagarseva/internal/media"
	"github.com/dhvanip/nagarseva/internal/models"
	"github.com/dhvanip/nagarseva/internal/repo"
	"github.com/dhvanip/nagarseva/internal/session"
	"github.com/dhvanip/nagarseva/internal/templates"
	"github.com/dhvanip/nagarseva/internal/transcribe"
)

// Orchestrator wires the intake pipeline together. Messages from the same
// citizen are processed strictly in arrival order; different citizens run
// concurrently.
type Orchestrator struct {
	sessions    *session.Store
	repo        *repo.Repository
	media       *media.Store
	hub         *broadcast.Hub
	geocoder    geocode.Geocoder
	transcriber transcribe.Transcriber
	alerts      alerts.Notifier
	wards       *classify.WardResolver
	wardOfficer func(int) string
	maxPhotos   int
	minAlertSev string
	geocodeTO   time.Duration
	voiceTO     time.Duration
	now         func() time.Time

	queues *citizenQueues
}

// Opts holds parameters for creating an Orchestrator. Sessions, Repo, Media,
// and Hub are required; the rest default to sensible no-ops.
type Opts struct {
	Sessions    *session.Store
	Repo        *repo.Repository
	Media       *media.Store
	Hub         *broadcast.Hub
	Geocoder    geocode.Geocoder       // nil: coordinates are used verbatim
	Transcriber transcribe.Transcriber // nil: voice notes keep an empty transcript
	Alerts      alerts.Notifier        // nil: alerts.Noop
	Wards       *classify.WardResolver // nil: random fallback over 23 wards
	WardOfficer func(int) string       // nil: generic "Ward N Officer"

	MaxPhotosPerReport int           // default 5
	MinAlertSeverity   string        // default "high"
	GeocodeTimeout     time.Duration // default 5s
	VoiceTimeout       time.Duration // default 15s
}

// New creates an Orchestrator.
func New(opts Opts) (*Orchestrator, error) {
	if opts.Sessions == nil || opts.Repo == nil || opts.Media == nil || opts.Hub == nil {
		return nil, fmt.Errorf("intake: sessions, repo, media, and hub are required")
	}

	o := &Orchestrator{
		sessions:    opts.Sessions,
		repo:        opts.Repo,
		media:       opts.Media,
		hub:         opts.Hub,
		geocoder:    opts.Geocoder,
		transcriber: opts.Transcriber,
		alerts:      opts.Alerts,
		wards:       opts.Wards,
		wardOfficer: opts.WardOfficer,
		maxPhotos:   opts.MaxPhotosPerReport,
		minAlertSev: opts.MinAlertSeverity,
		geocodeTO:   opts.GeocodeTimeout,
		voiceTO:     opts.VoiceTimeout,
		now:         time.Now,
		queues:      newCitizenQueues(),
	}
	if o.alerts == nil {
		o.alerts = alerts.Noop{}
	}
	if o.wards == nil {
		o.wards = classify.NewWardResolver(classify.RandomFallback(23))
	}
	if o.wardOfficer == nil {
		o.wardOfficer = func(ward int) string { return fmt.Sprintf("Ward %d Officer", ward) }
	}
	if o.maxPhotos <= 0 {
		o.maxPhotos = 5
	}
	if o.minAlertSev == "" {
		o.minAlertSev = models.SeverityHigh
	}
	if o.geocodeTO <= 0 {
		o.geocodeTO = 5 * time.Second
	}
	if o.voiceTO <= 0 {
		o.voiceTO = 15 * time.Second
	}
	return o, nil
}

// Run consumes the adapter's inbound channel until the context is cancelled
// or the channel closes, dispatching each message onto its citizen's queue.
func (o *Orchestrator) Run(ctx context.Context, adapter bot.Adapter) error {
	inbound, err := adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("intake: listen: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			o.queues.wait()
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				o.queues.wait()
				return nil
			}
			o.queues.enqueue(msg.CitizenID, msg, func(m bot.InboundMessage) {
				o.Handle(ctx, adapter, m)
			})
		}
	}
}

// Handle processes one inbound message end to end. Exposed for tests and
// for transports that do their own dispatching.
func (o *Orchestrator) Handle(ctx context.Context, adapter bot.Adapter, msg bot.InboundMessage) {
	s := o.sessions.GetOrCreate(msg.CitizenID)
	// Refresh activity before enrichment, which can block on the geocoder or
	// transcriber; the sweep must not evict a session mid-turn.
	o.sessions.Touch(s)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("intake: handling for %s panicked: %v", s.CitizenID, r)
			o.sendReplies(ctx, adapter, s, []flow.Reply{{Key: templates.KeyGenericError}})
		}
	}()

	ev := o.enrich(ctx, s, msg)
	out := flow.Step(s, ev)

	o.sendReplies(ctx, adapter, s, out.Replies)

	if !out.Submit {
		return
	}

	c, err := o.submit(ctx, s)
	if err != nil {
		log.Printf("intake: submit for %s failed: %v", s.CitizenID, err)
		o.hub.Publish(broadcast.Event{
			Type: broadcast.TypeSystemError,
			Data: map[string]string{"message": "complaint submission failed"},
		})
		o.sendReplies(ctx, adapter, s, []flow.Reply{{Key: templates.KeySubmitError}})
		return
	}

	o.sendReplies(ctx, adapter, s, []flow.Reply{{
		Key: templates.KeyConfirmation,
		Vars: map[string]string{
			"id":       c.ID,
			"address":  c.Address,
			"category": c.CategoryLabel,
			"date":     c.CreatedAt.Format("02/01/2006"),
			"officer":  c.WardOfficer,
		},
	}})
	flow.Complete(s)
}

// enrich turns a raw inbound message into a flow event, performing the I/O
// the state machine must not do itself.
func (o *Orchestrator) enrich(ctx context.Context, s *session.Session, msg bot.InboundMessage) flow.Event {
	switch msg.Kind {
	case bot.KindLocation:
		return flow.Event{Kind: flow.EventLocation, Location: o.resolveLocation(ctx, msg)}
	case bot.KindImage:
		return flow.Event{Kind: flow.EventPhoto, Photo: o.stagePhoto(s, msg)}
	case bot.KindVoice:
		return flow.Event{Kind: flow.EventVoice, Voice: o.stageVoice(ctx, s, msg)}
	default:
		return flow.Event{Kind: flow.EventText, Text: msg.Text}
	}
}

// resolveLocation reverse-geocodes shared coordinates. On any failure the
// raw coordinates become the address so intake never blocks on the geocoder.
func (o *Orchestrator) resolveLocation(ctx context.Context, msg bot.InboundMessage) *flow.LocationEvent {
	loc := &flow.LocationEvent{
		Lat:     msg.Latitude,
		Lng:     msg.Longitude,
		Address: geocode.CoordinateAddress(msg.Latitude, msg.Longitude),
	}
	if o.geocoder == nil {
		return loc
	}

	gctx, cancel := context.WithTimeout(ctx, o.geocodeTO)
	defer cancel()
	res, err := o.geocoder.ReverseGeocode(gctx, msg.Latitude, msg.Longitude)
	if err != nil {
		log.Printf("intake: reverse geocode (%.4f, %.4f): %v", msg.Latitude, msg.Longitude, err)
		return loc
	}
	loc.Address = res.Address
	loc.Ward = res.Ward
	return loc
}

// stagePhoto writes the image into temporary storage, enforcing the
// per-report cap.
func (o *Orchestrator) stagePhoto(s *session.Session, msg bot.InboundMessage) *flow.PhotoEvent {
	if len(s.Draft.Photos) >= o.maxPhotos {
		log.Printf("intake: photo cap reached for %s", s.CitizenID)
		return &flow.PhotoEvent{StageFailed: true}
	}
	ref, err := o.media.Stage(msg.Media, extension(msg.MimeType, ".jpg"))
	if err != nil {
		log.Printf("intake: stage photo for %s: %v", s.CitizenID, err)
		return &flow.PhotoEvent{StageFailed: true}
	}
	return &flow.PhotoEvent{StagedRef: ref, Caption: msg.Caption, MimeType: msg.MimeType}
}

// stageVoice stages the audio and attempts transcription. A transcription
// failure is reported to the flow, which falls back to a typed description.
func (o *Orchestrator) stageVoice(ctx context.Context, s *session.Session, msg bot.InboundMessage) *flow.VoiceEvent {
	ref, err := o.media.Stage(msg.Media, extension(msg.MimeType, ".ogg"))
	if err != nil {
		log.Printf("intake: stage voice for %s: %v", s.CitizenID, err)
		return &flow.VoiceEvent{Failed: true}
	}
	if o.transcriber == nil {
		return &flow.VoiceEvent{StagedRef: ref, Failed: true}
	}

	tctx, cancel := context.WithTimeout(ctx, o.voiceTO)
	defer cancel()
	transcript, err := o.transcriber.Transcribe(tctx, msg.Media, s.Language)
	if err != nil || strings.TrimSpace(transcript) == "" {
		log.Printf("intake: transcribe voice for %s: %v", s.CitizenID, err)
		return &flow.VoiceEvent{StagedRef: ref, Failed: true}
	}
	return &flow.VoiceEvent{StagedRef: ref, Transcript: transcript}
}

// submit turns the session's draft into a durable complaint and publishes
// the dashboard events. The session is left untouched on failure so the
// citizen can retry.
func (o *Orchestrator) submit(ctx context.Context, s *session.Session) (*models.Complaint, error) {
	now := o.now()
	draft := &s.Draft

	severity := classify.Severity(draft.Description, draft.CategoryID)
	ward := o.resolveWard(draft)
	officer := o.wardOfficer(ward)

	c := &models.Complaint{
		ID:            NewComplaintID(now),
		CitizenID:     s.CitizenID,
		CategoryID:    draft.CategoryID,
		CategoryLabel: draft.CategoryLabel,
		Description:   draft.Description,
		Language:      s.Language,
		Severity:      severity,
		Status:        models.StatusOpen,
		WardID:        ward,
		WardOfficer:   officer,
		CreatedAt:     now,
	}
	if draft.Location != nil {
		c.Latitude = draft.Location.Lat
		c.Longitude = draft.Location.Lng
		c.Address = draft.Location.Address
	}

	// Promote staged media into the complaint's directory. A broken
	// attachment is dropped rather than failing the whole report.
	var promoted []promotedFile
	for i, p := range draft.Photos {
		filename, path, err := o.media.Promote(p.StagedRef, c.ID, fmt.Sprintf("photo_%d", i+1))
		if err != nil {
			log.Printf("intake: promote photo %s: %v", p.StagedRef, err)
			continue
		}
		promoted = append(promoted, promotedFile{filename: filename, stagedRef: p.StagedRef})
		c.Photos = append(c.Photos, models.Photo{
			Filename: filename, Path: path, Caption: p.Caption, MimeType: p.MimeType,
		})
	}
	for i, v := range draft.VoiceNotes {
		filename, path, err := o.media.Promote(v.StagedRef, c.ID, fmt.Sprintf("voice_%d", i+1))
		if err != nil {
			log.Printf("intake: promote voice note %s: %v", v.StagedRef, err)
			continue
		}
		promoted = append(promoted, promotedFile{filename: filename, stagedRef: v.StagedRef})
		c.VoiceNotes = append(c.VoiceNotes, models.VoiceNote{
			Filename: filename, Path: path, Transcript: v.Transcript,
		})
	}

	if err := o.repo.CreateComplaint(ctx, c); err != nil {
		// Move the attachments back to staging so the draft's references
		// stay valid and a retry can promote them again.
		for _, p := range promoted {
			if derr := o.media.Demote(c.ID, p.filename, p.stagedRef); derr != nil {
				log.Printf("intake: demote %s: %v", p.filename, derr)
			}
		}
		return nil, err
	}

	if _, err := o.repo.UpsertCitizen(ctx, s.CitizenID, s.Language, ward, now); err != nil {
		// The complaint is already durable; the aggregate row can lag.
		log.Printf("intake: upsert citizen %s: %v", s.CitizenID, err)
	}

	o.publish(c)

	if alerts.MinSeverityMet(severity, o.minAlertSev) {
		if err := o.alerts.ComplaintAlert(ctx, c); err != nil {
			log.Printf("intake: ops alert for %s: %v", c.ID, err)
		}
	}

	log.Printf("intake: complaint %s submitted (citizen %s, ward %d, severity %s)",
		c.ID, c.CitizenID, ward, severity)
	return c, nil
}

// promotedFile pairs a promoted filename with the staged name it came from,
// so a failed submission can move the file back.
type promotedFile struct {
	filename  string
	stagedRef string
}

// resolveWard prefers the geocoder's ward hint, then the classifier.
func (o *Orchestrator) resolveWard(draft *session.Draft) int {
	if draft.Location != nil && draft.Location.Ward != nil {
		return *draft.Location.Ward
	}
	loc := classify.Location{}
	if draft.Location != nil {
		loc.Lat = draft.Location.Lat
		loc.Lng = draft.Location.Lng
		loc.Address = draft.Location.Address
	}
	return o.wards.Resolve(loc)
}

// publish fans the new complaint out to the dashboard.
func (o *Orchestrator) publish(c *models.Complaint) {
	summary := IssueSummary(c)

	o.hub.Publish(broadcast.Event{Type: broadcast.TypeNewIssue, Data: summary})

	o.hub.Publish(broadcast.Event{
		Type: broadcast.TypeNotification,
		Data: map[string]any{
			"notificationType": classify.NotificationType(c.Severity),
			"message":          fmt.Sprintf("New %s complaint in ward %d", c.Severity, c.WardID),
			"issueId":          c.ID,
			"severity":         c.Severity,
			"wardId":           c.WardID,
		},
	})

	ward := c.WardID
	o.hub.Publish(broadcast.Event{
		Type:   broadcast.TypeWardNewIssue,
		Data:   summary,
		WardID: &ward,
	})
}

// IssueSummary is the wire shape dashboards receive for a complaint.
func IssueSummary(c *models.Complaint) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"categoryId":  c.CategoryID,
		"category":    c.CategoryLabel,
		"description": c.Description,
		"severity":    c.Severity,
		"status":      c.Status,
		"wardId":      c.WardID,
		"officer":     c.WardOfficer,
		"address":     c.Address,
		"latitude":    c.Latitude,
		"longitude":   c.Longitude,
		"photos":      len(c.Photos),
		"voiceNotes":  len(c.VoiceNotes),
		"createdAt":   c.CreatedAt,
	}
}

// sendReplies renders each reply in the session's language and sends it.
func (o *Orchestrator) sendReplies(ctx context.Context, adapter bot.Adapter, s *session.Session, replies []flow.Reply) {
	for _, r := range replies {
		text := templates.Render(r.Key, s.Language, r.Vars)
		err := adapter.Send(ctx, bot.OutboundMessage{CitizenID: s.CitizenID, Text: text})
		if err != nil {
			log.Printf("intake: send reply to %s: %v", s.CitizenID, err)
		}
	}
}

// NewComplaintID generates the legacy public complaint identifier:
// "RSP" + the last six digits of the unix-millisecond clock + a three-digit
// random suffix.
func NewComplaintID(now time.Time) string {
	return fmt.Sprintf("RSP%06d%03d", now.UnixMilli()%1_000_000, rand.Intn(1000))
}

// extension maps a MIME type to a file extension for staged media.
func extension(mimeType, fallback string) string {
	switch {
	case strings.Contains(mimeType, "jpeg"):
		return ".jpg"
	case strings.Contains(mimeType, "png"):
		return ".png"
	case strings.Contains(mimeType, "webp"):
		return ".webp"
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	default:
		return fallback
	}
}
