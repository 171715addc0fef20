// Package classify holds the deterministic triage heuristics: severity from
// complaint text and ward from location. Both are pure functions over fixed
// keyword and boundary tables; no I/O.
package classify

import (
	"strings"

	"github.com/dhvanip/nagarseva/internal/models"
)

// criticalKeywords force severity to critical regardless of category. The
// list mixes English, Gujarati and Hindi terms for "emergency"/"immediately".
var criticalKeywords = []string{
	"emergency", "urgent", "તાત્કાલિક", "તુરંત", "आपातकाल", "तुरंत",
}

// highKeywords bump severity to high when the category alone doesn't.
var highKeywords = []string{
	"overflow", "blocked", "burst", "ભરાઈ", "બંધ", "फूट", "भरा",
}

// Severity maps a complaint description and category to a triage level.
// Emergency keywords win over everything; drainage complaints and
// high-priority keywords rank high; everything else is medium. The low
// level exists in the status enum but is never assigned here.
func Severity(description, categoryID string) string {
	desc := strings.ToLower(description)

	for _, kw := range criticalKeywords {
		if strings.Contains(desc, kw) {
			return models.SeverityCritical
		}
	}

	if categoryID == "drainage" {
		return models.SeverityHigh
	}
	for _, kw := range highKeywords {
		if strings.Contains(desc, kw) {
			return models.SeverityHigh
		}
	}

	return models.SeverityMedium
}

// NotificationType maps a severity level to the dashboard notification type.
func NotificationType(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return "urgent"
	case models.SeverityHigh:
		return "warning"
	default:
		return "info"
	}
}
