package events

import (
	"context"
	"strings"

	"github.com/goliatone/go-casework"
)

// serviceRecord returns the proposed service application, falling back to the
// stored one when the payload omitted it.
func serviceRecord(t *casework.Transition) *casework.AlternativeService {
	if t.Data.AlternativeService == nil && t.Before.AlternativeService != nil {
		t.Data.AlternativeService = t.Before.Clone().AlternativeService
	}
	return t.Data.AlternativeService
}

func (s *hookSet) noActiveServiceApplication(_ context.Context, t casework.Transition) error {
	if t.Before.AlternativeService != nil {
		return guardf("A service application is already in progress.")
	}
	return nil
}

func (s *hookSet) serviceApplicationPresent(_ context.Context, t casework.Transition) error {
	if t.Before.AlternativeService == nil {
		return guardf("No service application has been received.")
	}
	return nil
}

func (s *hookSet) serviceApplicationToReject(_ context.Context, t casework.Transition) error {
	if t.Before.AlternativeService == nil {
		return guardf("No service application to reject.")
	}
	return nil
}

func (s *hookSet) serviceApplication(_ context.Context, t casework.Transition) casework.FieldErrors {
	svc := t.Data.AlternativeService
	if svc == nil {
		return casework.FieldErrors{problem("alternativeService", "Enter the service application details.")}
	}
	switch svc.Type {
	case casework.ServiceBailiff, casework.ServiceDeemed, casework.ServiceDispensed:
		return nil
	default:
		return casework.FieldErrors{problem("alternativeService.type", "Select the type of service application.")}
	}
}

func (s *hookSet) recordServiceApplication(_ context.Context, t casework.Transition) (casework.Transition, error) {
	svc := serviceRecord(&t)
	svc.ReceivedAt = t.At
	svc.ReceivedFromStage = t.Source
	return t, nil
}

// serviceConsiderationStage holds the application until its fee is paid, then
// sends bailiff requests for referral. Other types stay under consideration.
func (s *hookSet) serviceConsiderationStage(_ context.Context, t casework.Transition) (casework.Stage, error) {
	svc := serviceRecord(&t)
	switch {
	case svc.FeeRequired && !svc.Paid:
		return casework.StageAwaitingServicePayment, nil
	case svc.Type == casework.ServiceBailiff:
		return casework.StageAwaitingBailiffReferral, nil
	default:
		return casework.StageAwaitingServiceConsideration, nil
	}
}

func (s *hookSet) servicePaymentReference(_ context.Context, t casework.Transition) casework.FieldErrors {
	svc := serviceRecord(&t)
	if svc == nil || strings.TrimSpace(svc.PaymentReference) == "" {
		return casework.FieldErrors{problem("alternativeService.paymentReference", "Payment reference is missing.")}
	}
	return nil
}

func (s *hookSet) recordServicePayment(_ context.Context, t casework.Transition) (casework.Transition, error) {
	serviceRecord(&t).Paid = true
	return t, nil
}

func (s *hookSet) servicePaymentStage(_ context.Context, t casework.Transition) (casework.Stage, error) {
	if serviceRecord(&t).Type == casework.ServiceBailiff {
		return casework.StageAwaitingBailiffReferral, nil
	}
	return casework.StageAwaitingServiceConsideration, nil
}

func (s *hookSet) openBailiffService(_ context.Context, t casework.Transition) (casework.Transition, error) {
	svc := serviceRecord(&t)
	if svc.Bailiff == nil {
		svc.Bailiff = &casework.Bailiff{}
	}
	return t, nil
}

func (s *hookSet) issueBailiffPack(_ context.Context, t casework.Transition) (casework.Transition, error) {
	svc := serviceRecord(&t)
	if svc.Bailiff == nil {
		svc.Bailiff = &casework.Bailiff{}
	}
	svc.Bailiff.PackIssuedAt = t.At
	return t, nil
}

// recordBailiffReturn closes the service application. Successful service starts
// the holding period; otherwise the case waits for the respondent again.
func (s *hookSet) recordBailiffReturn(_ context.Context, t casework.Transition) (casework.Transition, error) {
	svc := serviceRecord(&t)
	served := svc.Bailiff != nil && svc.Bailiff.Served
	t.Data.ServiceOutcomes = append(t.Data.ServiceOutcomes, casework.ServiceOutcome{
		Type:      svc.Type,
		Granted:   served,
		Refused:   !served,
		DecidedAt: t.At,
	})
	t.Data.AlternativeService = nil
	if !served {
		return t.WithCandidate(casework.StageAwaitingAos), nil
	}
	issued := t.Data.Application.IssuedAt
	if issued.IsZero() {
		issued = t.At
	}
	t.Data.DueDate = s.policy.HoldingEnds(issued)
	return t.WithCandidate(casework.StageHolding), nil
}

// rejectServiceApplication refuses the application and returns the case to the
// stage it was received from.
func (s *hookSet) rejectServiceApplication(_ context.Context, t casework.Transition) (casework.Transition, error) {
	svc := serviceRecord(&t)
	t.Data.ServiceOutcomes = append(t.Data.ServiceOutcomes, casework.ServiceOutcome{
		Type:      svc.Type,
		Refused:   true,
		DecidedAt: t.At,
	})
	t.Data.AlternativeService = nil
	back := svc.ReceivedFromStage
	if back == casework.StageNone || !back.Valid() {
		back = casework.StageAwaitingAos
	}
	return t.WithCandidate(back), nil
}
