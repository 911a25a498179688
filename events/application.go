package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-casework"
)

const flagPaperCase = "paperCase"

func (s *hookSet) stampCreated(_ context.Context, t casework.Transition) (casework.Transition, error) {
	if t.Data.Application.CreatedAt.IsZero() {
		t.Data.Application.CreatedAt = t.At
	}
	if t.Data.ApplicationType == "" {
		t.Data.ApplicationType = casework.SoleApplication
	}
	if t.Data.DivorceOrDissolution == "" {
		t.Data.DivorceOrDissolution = casework.Divorce
	}
	return t, nil
}

// lockSubmittedApplication keeps the application type and kind as stored once
// the application has left drafting.
func (s *hookSet) lockSubmittedApplication(_ context.Context, t casework.Transition) (casework.Transition, error) {
	switch t.Source {
	case casework.StageNone, casework.StageDraft, casework.StageAwaitingApplicant1Response:
		return t, nil
	}
	t.Data.ApplicationType = t.Before.ApplicationType
	t.Data.DivorceOrDissolution = t.Before.DivorceOrDissolution
	return t, nil
}

func (s *hookSet) markPaperCase(_ context.Context, t casework.Transition) (casework.Transition, error) {
	if t.Data.Flags == nil {
		t.Data.Flags = map[string]bool{}
	}
	t.Data.Flags[flagPaperCase] = true
	t.Data.Applicant1.Offline = true
	t.Data.Applicant2.Offline = true
	return t, nil
}

func (s *hookSet) jointApplication(_ context.Context, t casework.Transition) casework.FieldErrors {
	if t.Data.IsSole() {
		return casework.FieldErrors{problem("applicationType", "Only a joint application can invite the other applicant.")}
	}
	return nil
}

func (s *hookSet) applicant2Contact(_ context.Context, t casework.Transition) casework.FieldErrors {
	a2 := t.Data.Applicant2
	if a2.Offline || a2.NotificationEmail() != "" {
		return nil
	}
	return casework.FieldErrors{problem("applicant2.email", "Enter the other applicant's email address.")}
}

func (s *hookSet) markApplicant2Invited(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.Application.Applicant2Invited = true
	return t, nil
}

func (s *hookSet) applicant2StatementOfTruth(_ context.Context, t casework.Transition) casework.FieldErrors {
	if !t.Data.Application.Applicant2StatementTrue {
		return casework.FieldErrors{problem("application.applicant2StatementOfTruth", "Confirm the statement of truth.")}
	}
	return nil
}

func (s *hookSet) markApplicant2Approved(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.Application.Applicant2Approved = true
	return t, nil
}

func (s *hookSet) applicationComplete(ctx context.Context, t casework.Transition) casework.FieldErrors {
	app := t.Data.Application
	problems := s.applicationNames(ctx, t)
	if !app.StatementOfTruth {
		problems = append(problems, problem("application.statementOfTruth", "Confirm the statement of truth."))
	}
	if !t.Data.IsSole() && !app.Applicant2Approved {
		problems = append(problems, problem("application.applicant2Approved", "The other applicant has not approved the application."))
	}
	switch app.PaymentMethod {
	case casework.PayByCard, casework.PayByAccount:
	case casework.PayByHelpWithFee:
		if strings.TrimSpace(app.HelpWithFeesReference) == "" {
			problems = append(problems, problem("application.helpWithFeesReference", "Enter your help with fees reference number."))
		}
	default:
		problems = append(problems, problem("application.paymentMethod", "Select how you will pay the application fee."))
	}
	return problems
}

// submitApplication routes a submitted application by payment method.
func (s *hookSet) submitApplication(_ context.Context, t casework.Transition) (casework.Transition, error) {
	app := &t.Data.Application
	switch app.PaymentMethod {
	case casework.PayByHelpWithFee:
		return t.WithCandidate(casework.StageAwaitingHWFDecision), nil
	case casework.PayByAccount:
		app.FeePaid = true
		app.SubmittedAt = t.At
		return t.WithCandidate(submittedStage(t.Data)), nil
	default:
		return t.WithCandidate(casework.StageAwaitingPayment), nil
	}
}

// submittedStage is where a paid application waits: for documents when any are
// outstanding or a sole applicant asked to serve another way.
func submittedStage(d casework.CaseData) casework.Stage {
	if d.Application.AwaitingDocuments() || (d.IsSole() && d.Application.ServeAnotherWay) {
		return casework.StageAwaitingDocuments
	}
	return casework.StageSubmitted
}

func (s *hookSet) assignPaymentReference(_ context.Context, t casework.Transition) (casework.Transition, error) {
	if strings.TrimSpace(t.Data.Application.PaymentReference) == "" {
		t.Data.Application.PaymentReference = fmt.Sprintf("RC-%d-%s", t.CaseID, t.At.UTC().Format("20060102150405"))
	}
	return t, nil
}

func (s *hookSet) paymentReference(_ context.Context, t casework.Transition) casework.FieldErrors {
	if strings.TrimSpace(t.Data.Application.PaymentReference) == "" {
		return casework.FieldErrors{problem("application.paymentReference", "Payment reference is missing.")}
	}
	return nil
}

func (s *hookSet) recordApplicationPayment(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.Application.FeePaid = true
	t.Data.Application.SubmittedAt = t.At
	return t.WithCandidate(submittedStage(t.Data)), nil
}

func (s *hookSet) acceptHelpWithFees(_ context.Context, t casework.Transition) (casework.Transition, error) {
	app := &t.Data.Application
	app.FeePaid = true
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = t.At
	}
	return t.WithCandidate(submittedStage(t.Data)), nil
}

func (s *hookSet) clearDocumentsAwaited(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.Application.DocumentsAwaited = nil
	return t, nil
}

func (s *hookSet) applicationNames(_ context.Context, t casework.Transition) casework.FieldErrors {
	var problems casework.FieldErrors
	check := func(field, value, message string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, problem(field, message))
		}
	}
	check("applicant1.firstName", t.Data.Applicant1.FirstName, "Enter the applicant's first name.")
	check("applicant1.lastName", t.Data.Applicant1.LastName, "Enter the applicant's last name.")
	check("applicant2.firstName", t.Data.Applicant2.FirstName, "Enter the other party's first name.")
	check("applicant2.lastName", t.Data.Applicant2.LastName, "Enter the other party's last name.")
	return problems
}

// issueApplication starts the respondent's clock on sole cases and the holding
// period on joint ones.
func (s *hookSet) issueApplication(_ context.Context, t casework.Transition) (casework.Transition, error) {
	app := &t.Data.Application
	app.IssuedAt = t.At
	if !t.Data.IsSole() {
		t.Data.DueDate = s.policy.HoldingEnds(t.At)
		return t.WithCandidate(casework.StageHolding), nil
	}
	t.Data.DueDate = s.policy.AosDue(t.At)
	if app.ServeAnotherWay {
		return t.WithCandidate(casework.StageAwaitingService), nil
	}
	return t.WithCandidate(casework.StageAwaitingAos), nil
}

func (s *hookSet) rejectionReason(_ context.Context, t casework.Transition) casework.FieldErrors {
	if strings.TrimSpace(t.Data.Application.RejectionReason) == "" {
		return casework.FieldErrors{problem("application.rejectionReason", "Enter the reason for rejecting the application.")}
	}
	return nil
}

func (s *hookSet) stampPreviousStage(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.PreviousStage = t.Source
	return t, nil
}

func (s *hookSet) soleApplication(_ context.Context, t casework.Transition) error {
	if !t.Before.IsSole() {
		return guardf("Acknowledgement of service applies to sole applications only.")
	}
	return nil
}

func (s *hookSet) recordAos(_ context.Context, t casework.Transition) (casework.Transition, error) {
	app := &t.Data.Application
	app.AosSubmittedAt = t.At
	issued := app.IssuedAt
	if issued.IsZero() {
		issued = t.At
	}
	t.Data.DueDate = s.policy.HoldingEnds(issued)
	return t, nil
}

func (s *hookSet) dueDatePassed(_ context.Context, t casework.Transition) error {
	due := t.Before.DueDate
	if due.IsZero() {
		return guardf("No due date is set on this case.")
	}
	if !s.reached(t.At, due) {
		return guardf("The case is not due until %s.", s.displayDate(due))
	}
	return nil
}

func (s *hookSet) clearDueDate(_ context.Context, t casework.Transition) (casework.Transition, error) {
	t.Data.DueDate = time.Time{}
	return t, nil
}
