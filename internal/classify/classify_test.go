package classify

import (
	"testing"

	"github.com/dhvanip/nagarseva/internal/models"
)

func TestSeverity(t *testing.T) {
	tests := []struct {
		name        string
		description string
		category    string
		want        string
	}{
		{"emergency keyword wins", "water everywhere, emergency!", "garbage", models.SeverityCritical},
		{"urgent keyword wins", "bin overflowing, urgent", "garbage", models.SeverityCritical},
		{"gujarati critical keyword", "ગટર તાત્કાલિક સાફ કરો", "other", models.SeverityCritical},
		{"hindi critical keyword", "नाली तुरंत साफ करें", "other", models.SeverityCritical},
		{"emergency overrides drainage", "urgent drain problem", "drainage", models.SeverityCritical},
		{"drainage category is high", "smelly water near house", "drainage", models.SeverityHigh},
		{"high keyword", "garbage bin overflow near school", "garbage", models.SeverityHigh},
		{"gujarati high keyword", "કચરાપેટી ભરાઈ ગઈ છે", "garbage", models.SeverityHigh},
		{"plain complaint is medium", "trash not collected this week", "garbage", models.SeverityMedium},
		{"empty description is medium", "", "other", models.SeverityMedium},
		{"case insensitive", "URGENT: road broken", "infrastructure", models.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Severity(tt.description, tt.category); got != tt.want {
				t.Errorf("Severity(%q, %q) = %q, want %q", tt.description, tt.category, got, tt.want)
			}
		})
	}
}

func TestSeverity_NeverLow(t *testing.T) {
	inputs := []string{"", "ok", "small issue", "bin full", "પાણી"}
	for _, desc := range inputs {
		if got := Severity(desc, "other"); got == models.SeverityLow {
			t.Errorf("Severity(%q) produced low", desc)
		}
	}
}

func TestNotificationType(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{models.SeverityCritical, "urgent"},
		{models.SeverityHigh, "warning"},
		{models.SeverityMedium, "info"},
		{models.SeverityLow, "info"},
	}
	for _, tt := range tests {
		if got := NotificationType(tt.severity); got != tt.want {
			t.Errorf("NotificationType(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func f64(v float64) *float64 { return &v }

func TestWardResolver_CoordinateBuckets(t *testing.T) {
	r := NewWardResolver(FixedFallback(0))
	tests := []struct {
		name     string
		lat, lng float64
		want     int
	}{
		{"bhaktinagar box", 22.30, 70.785, 15},
		{"kuvadva box", 22.28, 70.79, 12},
		{"race course box", 22.30, 70.765, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(Location{Lat: f64(tt.lat), Lng: f64(tt.lng)})
			if got != tt.want {
				t.Errorf("Resolve(%v,%v) = %d, want %d", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestWardResolver_AddressSubstring(t *testing.T) {
	r := NewWardResolver(FixedFallback(0))
	tests := []struct {
		address string
		want    int
	}{
		{"near school in Bhaktinagar Ward 15", 15},
		{"KUVADVA main road", 12},
		{"opposite Race Course garden", 18},
		{"ભક્તિનગર માં સ્કૂલ પાસે", 15},
	}
	for _, tt := range tests {
		if got := r.Resolve(Location{Address: tt.address}); got != tt.want {
			t.Errorf("Resolve(%q) = %d, want %d", tt.address, got, tt.want)
		}
	}
}

func TestWardResolver_FallbackPolicy(t *testing.T) {
	r := NewWardResolver(FixedFallback(9))
	if got := r.Resolve(Location{Address: "somewhere unknown"}); got != 9 {
		t.Errorf("fallback = %d, want 9", got)
	}
	if got := r.Resolve(Location{}); got != 9 {
		t.Errorf("empty location fallback = %d, want 9", got)
	}
}

func TestRandomFallback_InRange(t *testing.T) {
	fb := RandomFallback(23)
	for i := 0; i < 200; i++ {
		ward := fb()
		if ward < 1 || ward > 23 {
			t.Fatalf("RandomFallback produced %d, outside 1..23", ward)
		}
	}
}

func TestWardResolver_CoordinatesBeatAddress(t *testing.T) {
	// A location inside the ward 15 box but naming kuvadva resolves by box.
	r := NewWardResolver(FixedFallback(0))
	got := r.Resolve(Location{Lat: f64(22.30), Lng: f64(70.785), Address: "kuvadva"})
	if got != 15 {
		t.Errorf("Resolve = %d, want coordinate bucket 15", got)
	}
}
