package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/notify"
)

const documentApplication = "application"

func referralRecord(t *casework.Transition) *casework.GeneralReferral {
	if t.Data.GeneralReferral == nil && t.Before.GeneralReferral != nil {
		gr := *t.Before.GeneralReferral
		t.Data.GeneralReferral = &gr
	}
	return t.Data.GeneralReferral
}

func (s *hookSet) caseOpen(_ context.Context, t casework.Transition) error {
	if t.Source.IsTerminal() {
		return guardf("This case is closed.")
	}
	return nil
}

func (s *hookSet) noPendingGeneralReferral(_ context.Context, t casework.Transition) error {
	if t.Before.GeneralReferral != nil {
		return guardf("A general referral is already in progress.")
	}
	return nil
}

func (s *hookSet) pendingGeneralReferral(_ context.Context, t casework.Transition) error {
	if t.Before.GeneralReferral == nil {
		return guardf("There is no general referral on this case.")
	}
	return nil
}

func (s *hookSet) generalReferral(_ context.Context, t casework.Transition) casework.FieldErrors {
	gr := t.Data.GeneralReferral
	if gr == nil || strings.TrimSpace(gr.Reason) == "" {
		return casework.FieldErrors{problem("generalReferral.reason", "Enter the reason for the referral.")}
	}
	return nil
}

// openGeneralReferral parks the case until the referral fee is paid, if one is due.
func (s *hookSet) openGeneralReferral(_ context.Context, t casework.Transition) (casework.Transition, error) {
	gr := referralRecord(&t)
	gr.ReferredAt = t.At
	gr.FromStage = t.Source
	t.Data.PreviousStage = t.Source
	if gr.FeeRequired && !gr.Paid {
		return t.WithCandidate(casework.StageAwaitingGeneralReferralPay), nil
	}
	return t.WithCandidate(casework.StageAwaitingGeneralConsideration), nil
}

func (s *hookSet) recordGeneralReferralPayment(_ context.Context, t casework.Transition) (casework.Transition, error) {
	referralRecord(&t).Paid = true
	return t, nil
}

func (s *hookSet) generalReferralDecision(_ context.Context, t casework.Transition) casework.FieldErrors {
	gr := t.Data.GeneralReferral
	if gr == nil || strings.TrimSpace(gr.Decision) == "" {
		return casework.FieldErrors{problem("generalReferral.decision", "Record the referral decision.")}
	}
	return nil
}

// closeGeneralReferral archives the decided referral and returns the case to
// where it was referred from.
func (s *hookSet) closeGeneralReferral(_ context.Context, t casework.Transition) (casework.Transition, error) {
	gr := referralRecord(&t)
	gr.DecidedAt = t.At
	t.Data.ReferralHistory = append(t.Data.ReferralHistory, *gr)
	t.Data.GeneralReferral = nil
	t.Data.PreviousStage = t.Source
	back := gr.FromStage
	if back == casework.StageNone || !back.Valid() || back == t.Source {
		back = casework.StageGeneralConsiderationComplete
	}
	return t.WithCandidate(back), nil
}

// noteText requires the payload to append exactly the new notes with text.
func (s *hookSet) noteText(_ context.Context, t casework.Transition) casework.FieldErrors {
	added := newNotes(t)
	if len(added) == 0 {
		return casework.FieldErrors{problem("notes", "Enter a note.")}
	}
	for _, n := range added {
		if strings.TrimSpace(n.Text) == "" {
			return casework.FieldErrors{problem("notes", "Enter a note.")}
		}
	}
	return nil
}

func (s *hookSet) appendNote(_ context.Context, t casework.Transition) (casework.Transition, error) {
	start := len(t.Before.Notes)
	for i := start; i < len(t.Data.Notes); i++ {
		t.Data.Notes[i].Author = t.Actor.ID
		t.Data.Notes[i].At = t.At
	}
	return t, nil
}

func newNotes(t casework.Transition) []casework.Note {
	if len(t.Data.Notes) <= len(t.Before.Notes) {
		return nil
	}
	return t.Data.Notes[len(t.Before.Notes):]
}

// regenerateDocuments replaces the application document with a fresh render in
// the applicant's language.
func (s *hookSet) regenerateDocuments(ctx context.Context, t casework.Transition) (casework.Transition, error) {
	if s.renderer == nil {
		s.logger.Debug("document renderer not configured, skipping regeneration for case %d", t.CaseID)
		return t, nil
	}
	lang := t.Data.Applicant1.PreferredLanguage()
	ref, err := s.renderer.Render(ctx, notify.RenderRequest{
		CaseID:         t.CaseID,
		TemplateID:     fmt.Sprintf("%s-%s", documentApplication, t.Data.DivorceOrDissolution),
		Language:       lang,
		Classification: "PUBLIC",
	})
	if err != nil {
		return t, fmt.Errorf("render application document: %w", err)
	}
	docs := t.Data.Documents[:0:0]
	for _, d := range t.Data.Documents {
		if d.Type != documentApplication {
			docs = append(docs, d)
		}
	}
	t.Data.Documents = append(docs, casework.Document{
		ID:        ref.ID,
		Type:      documentApplication,
		Filename:  ref.Filename,
		Language:  lang,
		CreatedAt: t.At,
	})
	return t, nil
}
