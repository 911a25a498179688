package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/config"
	"github.com/goliatone/go-casework/notify"
	"github.com/goliatone/go-casework/registry"
)

type hookSet struct {
	policy   config.Policy
	notifier Notifier
	renderer notify.DocumentRenderer
	logger   casework.Logger
}

func newHookSet(d Deps) *hookSet {
	return &hookSet{
		policy:   d.Policy,
		notifier: d.Notifier,
		renderer: d.Renderer,
		logger:   d.Logger,
	}
}

func register(h *registry.Hooks, s *hookSet) error {
	preStart := map[string]casework.PreStartHook{
		"lock-submitted-application": s.lockSubmittedApplication,
	}
	guards := map[string]casework.Guard{
		"sole-application":              s.soleApplication,
		"due-date-passed":               s.dueDatePassed,
		"conditional-order-open":        s.conditionalOrderOpen,
		"final-order-eligible":          s.finalOrderEligible,
		"final-order-open":              s.finalOrderOpen,
		"no-active-service-application": s.noActiveServiceApplication,
		"service-application-present":   s.serviceApplicationPresent,
		"service-application-to-reject": s.serviceApplicationToReject,
		"case-open":                     s.caseOpen,
		"no-pending-general-referral":   s.noPendingGeneralReferral,
		"pending-general-referral":      s.pendingGeneralReferral,
	}
	validators := map[string]casework.ValidateHook{
		"joint-application":             s.jointApplication,
		"applicant2-contact":            s.applicant2Contact,
		"applicant2-statement-of-truth": s.applicant2StatementOfTruth,
		"application-complete":          s.applicationComplete,
		"payment-reference":             s.paymentReference,
		"application-names":             s.applicationNames,
		"rejection-reason":              s.rejectionReason,
		"conditional-order-decision":    s.conditionalOrderDecision,
		"clarification-response":        s.clarificationResponse,
		"hearing-details":               s.hearingDetails,
		"service-application":           s.serviceApplication,
		"service-payment-reference":     s.servicePaymentReference,
		"general-referral":              s.generalReferral,
		"general-referral-decision":     s.generalReferralDecision,
		"note-text":                     s.noteText,
	}
	commits := map[string]casework.CommitHook{
		"stamp-created":                     s.stampCreated,
		"mark-paper-case":                   s.markPaperCase,
		"mark-applicant2-invited":           s.markApplicant2Invited,
		"mark-applicant2-approved":          s.markApplicant2Approved,
		"submit-application":                s.submitApplication,
		"assign-payment-reference":          s.assignPaymentReference,
		"record-application-payment":        s.recordApplicationPayment,
		"accept-help-with-fees":             s.acceptHelpWithFees,
		"clear-documents-awaited":           s.clearDocumentsAwaited,
		"issue-application":                 s.issueApplication,
		"stamp-previous-stage":              s.stampPreviousStage,
		"record-aos":                        s.recordAos,
		"clear-due-date":                    s.clearDueDate,
		"draft-conditional-order":           s.draftConditionalOrder,
		"submit-conditional-order":          s.submitConditionalOrder,
		"record-conditional-order-decision": s.recordConditionalOrderDecision,
		"reset-conditional-order":           s.resetConditionalOrder,
		"pronounce-conditional-order":       s.pronounceConditionalOrder,
		"apply-for-final-order":             s.applyForFinalOrder,
		"grant-final-order":                 s.grantFinalOrder,
		"record-service-application":        s.recordServiceApplication,
		"record-service-payment":            s.recordServicePayment,
		"open-bailiff-service":              s.openBailiffService,
		"issue-bailiff-pack":                s.issueBailiffPack,
		"record-bailiff-return":             s.recordBailiffReturn,
		"reject-service-application":        s.rejectServiceApplication,
		"open-general-referral":             s.openGeneralReferral,
		"record-general-referral-payment":   s.recordGeneralReferralPayment,
		"close-general-referral":            s.closeGeneralReferral,
		"append-note":                       s.appendNote,
		"regenerate-documents":              s.regenerateDocuments,
	}
	resolvers := map[string]casework.TargetResolver{
		"conditional-order-decision-stage": s.conditionalOrderDecisionStage,
		"service-consideration-stage":      s.serviceConsiderationStage,
		"service-payment-stage":            s.servicePaymentStage,
	}
	committed := map[string]casework.CommittedHook{
		"notify-applicant2-invited":           s.notify(notify.Applicant2Invited, nil),
		"notify-applicant2-approved":          s.notify(notify.Applicant2Approved, nil),
		"notify-application-submitted":        s.notify(notify.ApplicationSubmitted, applicationSubmitted),
		"notify-application-issued":           s.notify(notify.ApplicationIssued, nil),
		"notify-aos-submitted":                s.notify(notify.AosSubmitted, nil),
		"notify-awaiting-conditional-order":   s.notify(notify.AwaitingConditionalOrder, nil),
		"notify-conditional-order-submitted":  s.notify(notify.ConditionalOrderSubmitted, nil),
		"notify-clarification-requested":      s.notify(notify.ClarificationRequested, clarificationRequested),
		"notify-conditional-order-pronounced": s.notify(notify.ConditionalOrderPronounced, nil),
		"notify-awaiting-final-order":         s.notify(notify.AwaitingFinalOrder, nil),
		"notify-final-order-requested":        s.notify(notify.FinalOrderRequested, nil),
		"notify-final-order-granted":          s.notify(notify.FinalOrderGranted, nil),
		"notify-service-application-rejected": s.notify(notify.ServiceApplicationRejected, nil),
	}

	var errs []error
	for name, fn := range preStart {
		errs = append(errs, h.RegisterPreStart(name, fn))
	}
	for name, fn := range guards {
		errs = append(errs, h.RegisterGuard(name, fn))
	}
	for name, fn := range validators {
		errs = append(errs, h.RegisterValidator(name, fn))
	}
	for name, fn := range commits {
		errs = append(errs, h.RegisterCommit(name, fn))
	}
	for name, fn := range resolvers {
		errs = append(errs, h.RegisterResolver(name, fn))
	}
	for name, fn := range committed {
		errs = append(errs, h.RegisterCommitted(name, fn))
	}
	return errors.Join(errs...)
}

// notify raises trigger after commit when the optional predicate holds.
func (s *hookSet) notify(trigger notify.Trigger, when func(casework.Transition) bool) casework.CommittedHook {
	return func(ctx context.Context, t casework.Transition) error {
		if s.notifier == nil {
			return nil
		}
		if when != nil && !when(t) {
			return nil
		}
		return s.notifier.Notify(ctx, notify.Request{
			Trigger: trigger,
			Case:    casework.Case{ID: t.CaseID, Stage: t.Candidate, Data: t.Data},
			At:      t.At,
		})
	}
}

func applicationSubmitted(t casework.Transition) bool {
	switch t.Candidate {
	case casework.StageSubmitted, casework.StageAwaitingDocuments, casework.StageAwaitingHWFDecision:
		return true
	}
	return false
}

func clarificationRequested(t casework.Transition) bool {
	return t.Data.ConditionalOrder.Decision == casework.DecisionClarify
}

// actingParty maps the actor's role to the side of the case it acts for.
func actingParty(role casework.Role) notify.Party {
	switch role {
	case casework.RoleApplicant2, casework.RoleApplicant2Solicitor:
		return notify.Applicant2
	default:
		return notify.Applicant1
	}
}

// sides returns the acting party's order application followed by the partner's.
func sides(app1, app2 *casework.OrderApplication, party notify.Party) (*casework.OrderApplication, *casework.OrderApplication) {
	if party == notify.Applicant2 {
		return app2, app1
	}
	return app1, app2
}

func problem(field, message string) casework.FieldError {
	return casework.FieldError{Field: field, Message: message}
}

func (s *hookSet) displayDate(at time.Time) string {
	return s.policy.CivilDate(at).Format("2 January 2006")
}

// reached reports whether at falls on or after the civil day of deadline.
func (s *hookSet) reached(at, deadline time.Time) bool {
	return !s.policy.CivilDate(at).Before(s.policy.CivilDate(deadline))
}

func guardf(format string, args ...any) error {
	return casework.NewGuardError(fmt.Sprintf(format, args...))
}
