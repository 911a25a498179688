package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/notify"
)

func (s *hookSet) conditionalOrderOpen(_ context.Context, t casework.Transition) error {
	party := actingParty(t.Actor.Role)
	if t.Before.IsSole() && party == notify.Applicant2 {
		return guardf("Only the applicant can apply for a conditional order on a sole application.")
	}
	mine, _ := sides(&t.Before.ConditionalOrder.Applicant1, &t.Before.ConditionalOrder.Applicant2, party)
	if mine.Submitted() {
		return guardf("You have already applied for a conditional order.")
	}
	return nil
}

func (s *hookSet) draftConditionalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	co := &t.Data.ConditionalOrder
	mine, _ := sides(&co.Applicant1, &co.Applicant2, actingParty(t.Actor.Role))
	mine.Status = casework.OrderDrafted
	if t.Source == casework.StageAwaitingConditionalOrder {
		return t.WithCandidate(casework.StageConditionalOrderDrafted), nil
	}
	return t, nil
}

// submitConditionalOrder marks the acting side. A joint case waits for the
// partner before it is referred to a legal advisor. The partner's side is taken
// from the stored case.
func (s *hookSet) submitConditionalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	party := actingParty(t.Actor.Role)
	co := &t.Data.ConditionalOrder
	mine, theirs := sides(&co.Applicant1, &co.Applicant2, party)
	_, stored := sides(&t.Before.ConditionalOrder.Applicant1, &t.Before.ConditionalOrder.Applicant2, party)
	*theirs = *stored
	mine.Status = casework.OrderSubmitted
	mine.SubmittedAt = t.At
	if t.Before.IsSole() || theirs.Submitted() {
		return t.WithCandidate(casework.StageAwaitingLegalAdvisorReferral), nil
	}
	return t.WithCandidate(casework.StageConditionalOrderPending), nil
}

func (s *hookSet) conditionalOrderDecision(_ context.Context, t casework.Transition) casework.FieldErrors {
	co := t.Data.ConditionalOrder
	switch co.Decision {
	case casework.DecisionGrant, casework.DecisionAmend:
		return nil
	case casework.DecisionClarify:
		for _, reason := range co.ClarificationReasons {
			if strings.TrimSpace(reason) != "" {
				return nil
			}
		}
		return casework.FieldErrors{problem("conditionalOrder.clarificationReasons", "Give at least one reason for clarification.")}
	default:
		return casework.FieldErrors{problem("conditionalOrder.decision", "Select a decision.")}
	}
}

func (s *hookSet) recordConditionalOrderDecision(_ context.Context, t casework.Transition) (casework.Transition, error) {
	co := &t.Data.ConditionalOrder
	co.DecisionAt = t.At
	if co.Decision != casework.DecisionClarify {
		co.ClarificationReasons = nil
	}
	return t, nil
}

func (s *hookSet) conditionalOrderDecisionStage(_ context.Context, t casework.Transition) (casework.Stage, error) {
	switch t.Data.ConditionalOrder.Decision {
	case casework.DecisionGrant:
		return casework.StageAwaitingPronouncement, nil
	case casework.DecisionClarify:
		return casework.StageAwaitingClarification, nil
	case casework.DecisionAmend:
		return casework.StageAwaitingAmendedApplication, nil
	default:
		return casework.StageNone, fmt.Errorf("no stage for conditional order decision %q", t.Data.ConditionalOrder.Decision)
	}
}

func (s *hookSet) clarificationResponse(_ context.Context, t casework.Transition) casework.FieldErrors {
	if strings.TrimSpace(t.Data.ConditionalOrder.ClarificationResponse) == "" {
		return casework.FieldErrors{problem("conditionalOrder.clarificationResponse", "Enter your response to the court.")}
	}
	return nil
}

func (s *hookSet) resetConditionalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.ConditionalOrder = casework.ConditionalOrder{}
	return t, nil
}

func (s *hookSet) hearingDetails(_ context.Context, t casework.Transition) casework.FieldErrors {
	var problems casework.FieldErrors
	co := t.Data.ConditionalOrder
	if strings.TrimSpace(co.Court) == "" {
		problems = append(problems, problem("conditionalOrder.court", "Select the court."))
	}
	if co.HearingAt.IsZero() {
		problems = append(problems, problem("conditionalOrder.hearingAt", "Enter the date and time of the hearing."))
	}
	return problems
}

// pronounceConditionalOrder grants the order and opens the final order window.
func (s *hookSet) pronounceConditionalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	co := &t.Data.ConditionalOrder
	co.GrantedAt = co.HearingAt
	if co.GrantedAt.IsZero() {
		co.GrantedAt = t.At
	}
	t.Data.FinalOrder.EligibleFrom = s.policy.FinalOrderEligibleFrom(co.GrantedAt)
	t.Data.DueDate = t.Data.FinalOrder.EligibleFrom
	return t, nil
}

func (s *hookSet) finalOrderEligible(_ context.Context, t casework.Transition) error {
	eligible := t.Before.FinalOrder.EligibleFrom
	if eligible.IsZero() {
		granted := t.Before.ConditionalOrder.GrantedAt
		if granted.IsZero() {
			return guardf("The conditional order has not been granted.")
		}
		eligible = s.policy.FinalOrderEligibleFrom(granted)
	}
	if !s.reached(t.At, eligible) {
		return guardf("You cannot apply for a final order until %s.", s.displayDate(eligible))
	}
	return nil
}

func (s *hookSet) finalOrderOpen(_ context.Context, t casework.Transition) error {
	party := actingParty(t.Actor.Role)
	if t.Before.IsSole() && party == notify.Applicant2 {
		return guardf("Only the applicant can apply for a final order on a sole application.")
	}
	mine, _ := sides(&t.Before.FinalOrder.Applicant1, &t.Before.FinalOrder.Applicant2, party)
	if mine.Submitted() {
		return guardf("You have already applied for a final order.")
	}
	return nil
}

func (s *hookSet) applyForFinalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	party := actingParty(t.Actor.Role)
	fo := &t.Data.FinalOrder
	mine, theirs := sides(&fo.Applicant1, &fo.Applicant2, party)
	_, stored := sides(&t.Before.FinalOrder.Applicant1, &t.Before.FinalOrder.Applicant2, party)
	*theirs = *stored
	mine.Status = casework.OrderSubmitted
	mine.SubmittedAt = t.At
	if t.Before.IsSole() || theirs.Submitted() {
		return t.WithCandidate(casework.StageFinalOrderRequested), nil
	}
	return t.WithCandidate(casework.StageAwaitingJointFinalOrder), nil
}

func (s *hookSet) grantFinalOrder(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.FinalOrder.GrantedAt = t.At
	return t, nil
}
