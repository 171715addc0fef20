package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dhvanip/nagarseva/internal/bot"
	"github.com/dhvanip/nagarseva/internal/broadcast"
	"github.com/dhvanip/nagarseva/internal/classify"
	"github.com/dhvanip/nagarseva/internal/db"
	"github.com/dhvanip/nagarseva/internal/geocode"
	"github.com/dhvanip/nagarseva/internal/media"
	"github.com/dhvanip/nagarseva/internal/models"
	"github.com/dhvanip/nagarseva/internal/repo"
	"github.com/dhvanip/nagarseva/internal/session"
	"github.com/dhvanip/nagarseva/internal/templates"
)

// --- Stub collaborators ---

type stubGeocoder struct {
	res geocode.Result
	err error
}

func (g stubGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Result, error) {
	return g.res, g.err
}

type stubTranscriber struct {
	text string
	err  error
}

func (t stubTranscriber) Transcribe(ctx context.Context, audio []byte, lang string) (string, error) {
	return t.text, t.err
}

// sweepingGeocoder stalls past the store's inactivity threshold and then
// runs an expiry sweep, emulating the cron sweep firing mid-turn.
type sweepingGeocoder struct {
	sessions *session.Store
	delay    time.Duration
	swept    int
}

func (g *sweepingGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Result, error) {
	time.Sleep(g.delay)
	g.swept = g.sessions.SweepExpired()
	return geocode.Result{}, fmt.Errorf("unavailable")
}

type panickyGeocoder struct{}

func (panickyGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Result, error) {
	panic("geocoder blew up")
}

type alertRecorder struct {
	mu    sync.Mutex
	calls []*models.Complaint
}

func (a *alertRecorder) ComplaintAlert(ctx context.Context, c *models.Complaint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c)
	return nil
}

func (a *alertRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// hubConn captures broadcast events for assertions.
type hubConn struct {
	mu   sync.Mutex
	sent []broadcast.Event
}

func (c *hubConn) Send(data []byte) error {
	var evt broadcast.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, evt)
	return nil
}

func (c *hubConn) Ping() error  { return nil }
func (c *hubConn) Close() error { return nil }

func (c *hubConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, evt := range c.sent {
		out = append(out, evt.Type)
	}
	return out
}

func (c *hubConn) has(eventType string) bool {
	for _, tt := range c.types() {
		if tt == eventType {
			return true
		}
	}
	return false
}

// --- Harness ---

type harness struct {
	orch    *Orchestrator
	adapter *bot.MockAdapter
	repo    *repo.Repository
	gdb     *gorm.DB
	obs     *hubConn
	alerts  *alertRecorder
	media   *media.Store
}

func newHarness(t *testing.T, mutate func(*Opts)) *harness {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := media.NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("media store: %v", err)
	}

	hub := broadcast.NewHub(time.Minute)
	obs := &hubConn{}
	hub.Register(obs)

	rec := &alertRecorder{}
	r := repo.New(gdb)

	opts := Opts{
		Sessions:    session.NewStore(session.DefaultTTL),
		Repo:        r,
		Media:       store,
		Hub:         hub,
		Geocoder:    stubGeocoder{err: fmt.Errorf("unavailable")},
		Transcriber: stubTranscriber{err: fmt.Errorf("unavailable")},
		Alerts:      rec,
		Wards:       classify.NewWardResolver(classify.FixedFallback(9)),
		WardOfficer: func(ward int) string { return fmt.Sprintf("Officer W%d", ward) },
	}
	if mutate != nil {
		mutate(&opts)
	}

	orch, err := New(opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	adapter := bot.NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("connect mock: %v", err)
	}

	return &harness{orch: orch, adapter: adapter, repo: r, gdb: gdb, obs: obs, alerts: rec, media: store}
}

func (h *harness) text(t *testing.T, citizen, body string) {
	t.Helper()
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindText, Text: body,
	})
}

func (h *harness) lastReply(t *testing.T) string {
	t.Helper()
	msg, ok := h.adapter.LastSent()
	if !ok {
		t.Fatal("no replies sent")
	}
	return msg.Text
}

func (h *harness) onlyComplaint(t *testing.T) *models.Complaint {
	t.Helper()
	list, total, err := h.repo.ListComplaints(context.Background(), repo.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("complaints = %d, want 1", total)
	}
	return &list[0]
}

// --- Tests ---

func TestFullIntakeConversation(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919876543210"

	h.text(t, citizen, "2") // Gujarati
	h.text(t, citizen, "1") // garbage collection
	h.text(t, citizen, "Bhaktinagar main road, opposite school")
	h.text(t, citizen, "bin overflowing, urgent please send someone")

	c := h.onlyComplaint(t)
	if c.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", c.Severity)
	}
	if c.WardID != 15 {
		t.Errorf("ward = %d, want 15 (address match)", c.WardID)
	}
	if c.Language != "gu" {
		t.Errorf("language = %s, want gu", c.Language)
	}
	if c.CategoryID != "garbage" {
		t.Errorf("category = %s, want garbage", c.CategoryID)
	}
	if c.Status != models.StatusOpen {
		t.Errorf("status = %s, want open", c.Status)
	}
	if c.WardOfficer != "Officer W15" {
		t.Errorf("officer = %s", c.WardOfficer)
	}

	if !strings.Contains(h.lastReply(t), c.ID) {
		t.Errorf("confirmation %q should carry the complaint ID %s", h.lastReply(t), c.ID)
	}

	for _, want := range []string{broadcast.TypeNewIssue, broadcast.TypeNotification, broadcast.TypeWardNewIssue} {
		if !h.obs.has(want) {
			t.Errorf("missing broadcast %s (got %v)", want, h.obs.types())
		}
	}

	citizenRow, err := h.repo.GetCitizen(context.Background(), citizen)
	if err != nil {
		t.Fatalf("get citizen: %v", err)
	}
	if citizenRow.TotalReports != 1 {
		t.Errorf("total reports = %d, want 1", citizenRow.TotalReports)
	}

	// Critical severity crosses the default "high" alert threshold.
	if h.alerts.count() != 1 {
		t.Errorf("alerts = %d, want 1", h.alerts.count())
	}
}

func TestSharedLocationUsesGeocoderWard(t *testing.T) {
	ward := 15
	h := newHarness(t, func(o *Opts) {
		o.Geocoder = stubGeocoder{res: geocode.Result{Address: "Bhaktinagar, Rajkot", Ward: &ward}}
	})
	const citizen = "919812345678"

	h.text(t, citizen, "3") // English
	h.text(t, citizen, "2") // drainage
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindLocation, Latitude: 22.3039, Longitude: 70.7821,
	})
	h.text(t, citizen, "water pooling on the street")

	c := h.onlyComplaint(t)
	if c.WardID != 15 {
		t.Errorf("ward = %d, want geocoder hint 15", c.WardID)
	}
	if c.Address != "Bhaktinagar, Rajkot" {
		t.Errorf("address = %q", c.Address)
	}
	if c.Latitude == nil || *c.Latitude != 22.3039 {
		t.Errorf("latitude = %v", c.Latitude)
	}
	// Drainage defaults to high severity.
	if c.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", c.Severity)
	}
}

func TestGeocodeFailureFallsBackToCoordinates(t *testing.T) {
	h := newHarness(t, nil) // harness geocoder always errors
	const citizen = "919800000001"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindLocation, Latitude: 21.5, Longitude: 71.5,
	})
	h.text(t, citizen, "garbage pile")

	c := h.onlyComplaint(t)
	if c.Address != "21.500000, 71.500000" {
		t.Errorf("address = %q, want coordinate fallback", c.Address)
	}
	// No box or substring match; the fixed fallback ward applies.
	if c.WardID != 9 {
		t.Errorf("ward = %d, want fallback 9", c.WardID)
	}
}

func TestPhotoPromotedOnSubmit(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919800000002"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindImage,
		Media: []byte("jpeg-bytes"), MimeType: "image/jpeg", Caption: "the pile",
	})
	h.text(t, citizen, "Kuvadva road corner")
	h.text(t, citizen, "large garbage pile")

	c := h.onlyComplaint(t)
	full, err := h.repo.GetComplaint(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.Photos) != 1 {
		t.Fatalf("photos = %d, want 1", len(full.Photos))
	}
	p := full.Photos[0]
	if p.Caption != "the pile" {
		t.Errorf("caption = %q", p.Caption)
	}
	onDisk := filepath.Join(h.media.Root(), c.ID, p.Filename)
	if _, err := os.Stat(onDisk); err != nil {
		t.Errorf("promoted file missing: %v", err)
	}
}

func TestVoiceTranscriptShortensFlow(t *testing.T) {
	h := newHarness(t, func(o *Opts) {
		o.Transcriber = stubTranscriber{text: "પાણી ભરાઈ ગયું છે"}
	})
	const citizen = "919800000003"

	h.text(t, citizen, "2")
	h.text(t, citizen, "2")
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindVoice,
		Media: []byte("ogg-bytes"), MimeType: "audio/ogg",
	})
	// Description already captured via the transcript; a location completes
	// the draft and submits immediately.
	h.text(t, citizen, "Kuvadva chowk")

	c := h.onlyComplaint(t)
	if c.Description != "પાણી ભરાઈ ગયું છે" {
		t.Errorf("description = %q, want transcript", c.Description)
	}
	if c.WardID != 12 {
		t.Errorf("ward = %d, want 12 (kuvadva)", c.WardID)
	}
	full, err := h.repo.GetComplaint(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.VoiceNotes) != 1 || full.VoiceNotes[0].Transcript == "" {
		t.Errorf("voice notes = %+v", full.VoiceNotes)
	}
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919800000004"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	h.text(t, citizen, "Race Course ring road")

	// Break persistence before the final step.
	if err := h.gdb.Migrator().DropTable(&models.Complaint{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	h.text(t, citizen, "garbage everywhere")

	if !h.obs.has(broadcast.TypeSystemError) {
		t.Errorf("expected SYSTEM_ERROR broadcast, got %v", h.obs.types())
	}

	// The session keeps its draft: restoring the table and retrying the
	// description submits cleanly.
	if err := h.gdb.AutoMigrate(&models.Complaint{}); err != nil {
		t.Fatalf("restore table: %v", err)
	}
	h.text(t, citizen, "garbage everywhere")

	c := h.onlyComplaint(t)
	if c.WardID != 18 {
		t.Errorf("ward = %d, want 18 (race course)", c.WardID)
	}
	if !h.obs.has(broadcast.TypeNewIssue) {
		t.Error("expected NEW_ISSUE after retry")
	}
}

func TestSubmitFailureKeepsMedia(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919800000010"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindImage,
		Media: []byte("jpeg-bytes"), MimeType: "image/jpeg", Caption: "the pile",
	})
	h.text(t, citizen, "Kuvadva road")

	if err := h.gdb.Migrator().DropTable(&models.Complaint{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	h.text(t, citizen, "garbage everywhere")

	// The failed submission moved the photo back to staging.
	entries, err := os.ReadDir(filepath.Join(h.media.Root(), "temp"))
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("staged files after failed submit = %d, want 1", len(entries))
	}

	if err := h.gdb.AutoMigrate(&models.Complaint{}); err != nil {
		t.Fatalf("restore table: %v", err)
	}
	h.text(t, citizen, "garbage everywhere")

	full, err := h.repo.GetComplaint(context.Background(), h.onlyComplaint(t).ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.Photos) != 1 {
		t.Fatalf("photos after retry = %d, want 1", len(full.Photos))
	}
	p := full.Photos[0]
	if p.Caption != "the pile" {
		t.Errorf("caption = %q", p.Caption)
	}
	if _, err := os.Stat(filepath.Join(h.media.Root(), full.ID, p.Filename)); err != nil {
		t.Errorf("promoted file missing after retry: %v", err)
	}
}

func TestSweepDuringTurnKeepsSession(t *testing.T) {
	// Session is 60ms old when the location turn starts; enrichment stalls
	// another 60ms before the sweep fires. Refreshing activity at the start
	// of the turn keeps the 100ms threshold from evicting it mid-turn.
	sessions := session.NewStore(100 * time.Millisecond)
	g := &sweepingGeocoder{sessions: sessions, delay: 60 * time.Millisecond}
	h := newHarness(t, func(o *Opts) {
		o.Sessions = sessions
		o.Geocoder = g
	})
	const citizen = "919800000011"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	time.Sleep(60 * time.Millisecond)

	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindLocation, Latitude: 21.5, Longitude: 71.5,
	})
	if g.swept != 0 {
		t.Errorf("mid-turn sweep evicted %d sessions, want 0", g.swept)
	}
	h.text(t, citizen, "garbage pile")

	c := h.onlyComplaint(t)
	if c.CategoryID != "garbage" {
		t.Errorf("category = %s, draft lost across sweep", c.CategoryID)
	}
}

func TestPanicDuringTurnRepliesGenericError(t *testing.T) {
	h := newHarness(t, func(o *Opts) {
		o.Geocoder = panickyGeocoder{}
	})
	const citizen = "919800000012"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
		CitizenID: citizen, Kind: bot.KindLocation, Latitude: 21.5, Longitude: 71.5,
	})

	want := templates.Render(templates.KeyGenericError, "en", nil)
	if got := h.lastReply(t); got != want {
		t.Errorf("reply after panic = %q, want generic error", got)
	}
}

func TestPhotoCapRejectsExtras(t *testing.T) {
	h := newHarness(t, func(o *Opts) {
		o.MaxPhotosPerReport = 1
	})
	const citizen = "919800000005"

	h.text(t, citizen, "3")
	h.text(t, citizen, "1")
	for i := 0; i < 2; i++ {
		h.orch.Handle(context.Background(), h.adapter, bot.InboundMessage{
			CitizenID: citizen, Kind: bot.KindImage,
			Media: []byte("jpeg"), MimeType: "image/jpeg",
		})
	}
	h.text(t, citizen, "Bhaktinagar")
	h.text(t, citizen, "pile of waste")

	full, err := h.repo.GetComplaint(context.Background(), h.onlyComplaint(t).ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.Photos) != 1 {
		t.Errorf("photos = %d, want cap of 1", len(full.Photos))
	}
}

func TestMediumSeverityDoesNotAlert(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919800000006"

	h.text(t, citizen, "3")
	h.text(t, citizen, "5") // other
	h.text(t, citizen, "somewhere in town")
	h.text(t, citizen, "street light flickers at night")

	c := h.onlyComplaint(t)
	if c.Severity != models.SeverityMedium {
		t.Fatalf("severity = %s, want medium", c.Severity)
	}
	if h.alerts.count() != 0 {
		t.Errorf("alerts = %d, want 0", h.alerts.count())
	}
}

func TestRunProcessesCitizenMessagesInOrder(t *testing.T) {
	h := newHarness(t, nil)
	const citizen = "919800000007"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.orch.Run(ctx, h.adapter)
	}()

	for _, body := range []string{"2", "1", "Bhaktinagar", "કચરો ભરાઈ ગયો"} {
		h.adapter.SimulateInbound(bot.InboundMessage{
			CitizenID: citizen, Kind: bot.KindText, Text: body,
		})
	}

	deadline := time.After(3 * time.Second)
	for {
		_, total, err := h.repo.ListComplaints(context.Background(), repo.ListFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for submission")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	c := h.onlyComplaint(t)
	if c.WardID != 15 {
		t.Errorf("ward = %d, want 15", c.WardID)
	}
}

func TestNewComplaintIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^RSP\d{9}$`)
	now := time.Now()
	for i := 0; i < 50; i++ {
		id := NewComplaintID(now)
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match RSP<6 digits><3 digits>", id)
		}
	}
}

func TestNewRequiresCoreDeps(t *testing.T) {
	_, err := New(Opts{})
	if err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
