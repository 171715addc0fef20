package flow

import (
	"strings"

	"github.com/dhvanip/nagarseva/internal/session"
	"github.com/dhvanip/nagarseva/internal/templates"
)

// Global command aliases, checked before per-state dispatch. "menu" returns
// to language selection without losing the draft; "new" starts a fresh
// report and clears it.
var (
	menuCommands = []string{"menu", "મેનૂ", "मेनू"}
	newCommands  = []string{"new", "નવી", "नई"}
)

// Step applies one inbound event to the session and returns the transition
// outcome. It mutates the session's state, language and draft, but never
// marks it Completed; the orchestrator does that after the submission side
// effects succeed, so a failed submission keeps the draft for retry.
func Step(s *session.Session, ev Event) Outcome {
	if ev.Kind == EventText {
		if out, ok := globalCommand(s, ev.Text); ok {
			return out
		}
	}

	// Media attaches in any state prior to Completed without advancing the
	// textual flow, so photos and voice notes can arrive out of order.
	switch ev.Kind {
	case EventPhoto:
		return attachPhoto(s, ev.Photo)
	case EventVoice:
		return attachVoice(s, ev.Voice)
	}

	switch s.State {
	case session.StateLanguageSelection:
		return stepLanguage(s, ev)
	case session.StateCategorySelection:
		return stepCategory(s, ev)
	case session.StateLocationCapture:
		return stepLocation(s, ev)
	case session.StateDescription:
		return stepDescription(s, ev)
	default:
		// Completed sessions are replaced by the store before dispatch;
		// reaching here means a stale reference, so restart the flow.
		s.State = session.StateLanguageSelection
		return reply(templates.KeyWelcome)
	}
}

// globalCommand handles menu/new, which short-circuit the current step.
func globalCommand(s *session.Session, text string) (Outcome, bool) {
	cmd := strings.ToLower(strings.TrimSpace(text))
	for _, alias := range menuCommands {
		if cmd == alias {
			s.State = session.StateLanguageSelection
			return reply(templates.KeyWelcome), true
		}
	}
	for _, alias := range newCommands {
		if cmd == alias {
			s.Draft = session.Draft{}
			s.State = session.StateCategorySelection
			return reply(templates.KeyCategoryPrompt), true
		}
	}
	return Outcome{}, false
}

func attachPhoto(s *session.Session, p *PhotoEvent) Outcome {
	if p == nil || p.StageFailed {
		return reply(templates.KeyPhotoError)
	}
	s.Draft.Photos = append(s.Draft.Photos, session.StagedPhoto{
		StagedRef: p.StagedRef,
		Caption:   p.Caption,
		MimeType:  p.MimeType,
	})
	return reply(templates.KeyPhotoReceived)
}

func attachVoice(s *session.Session, v *VoiceEvent) Outcome {
	if v == nil || v.Failed {
		return reply(templates.KeyVoiceError)
	}
	s.Draft.VoiceNotes = append(s.Draft.VoiceNotes, session.StagedVoice{
		StagedRef:  v.StagedRef,
		Transcript: v.Transcript,
	})
	if !s.Draft.HasDescription() {
		s.Draft.Description = v.Transcript
	}
	return replyVars(templates.KeyVoiceConfirm, map[string]string{
		"description": v.Transcript,
	})
}

func stepLanguage(s *session.Session, ev Event) Outcome {
	if ev.Kind != EventText {
		return reply(templates.KeyWelcome)
	}
	switch strings.TrimSpace(ev.Text) {
	case "1":
		s.Language = templates.LangHindi
	case "2":
		s.Language = templates.LangGujarati
	case "3":
		s.Language = templates.LangEnglish
	default:
		return reply(templates.KeyWelcome)
	}
	s.State = session.StateCategorySelection
	return reply(templates.KeyCategoryPrompt)
}

func stepCategory(s *session.Session, ev Event) Outcome {
	if ev.Kind != EventText {
		return reply(templates.KeyCategoryPrompt)
	}
	cat, ok := CategoryByCode(strings.TrimSpace(ev.Text))
	if !ok {
		return reply(templates.KeyCategoryPrompt)
	}
	s.Draft.CategoryID = cat.ID
	s.Draft.CategoryLabel = cat.Label(s.Language)
	s.State = session.StateLocationCapture
	return locationPrompt(s)
}

func locationPrompt(s *session.Session) Outcome {
	return replyVars(templates.KeyLocationPrompt, map[string]string{
		"category": s.Draft.CategoryLabel,
	})
}

func stepLocation(s *session.Session, ev Event) Outcome {
	switch ev.Kind {
	case EventLocation:
		lat, lng := ev.Location.Lat, ev.Location.Lng
		s.Draft.Location = &session.Location{
			Lat:     &lat,
			Lng:     &lng,
			Address: ev.Location.Address,
			Ward:    ev.Location.Ward,
		}
	case EventText:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return locationPrompt(s)
		}
		s.Draft.Location = &session.Location{Address: text}
	default:
		return locationPrompt(s)
	}

	// A description supplied early (via voice) lets the flow submit without
	// the typed-description step.
	if s.Draft.HasDescription() {
		return Outcome{Submit: true}
	}
	s.State = session.StateDescription
	return reply(templates.KeyDescriptionPrompt)
}

func stepDescription(s *session.Session, ev Event) Outcome {
	if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
		return reply(templates.KeyDescriptionPrompt)
	}
	s.Draft.Description = strings.TrimSpace(ev.Text)
	return Outcome{Submit: true}
}

// Complete parks the session after a successful submission and clears the
// draft. The next inbound event gets a fresh session from the store.
func Complete(s *session.Session) {
	s.State = session.StateCompleted
	s.Draft = session.Draft{}
}
