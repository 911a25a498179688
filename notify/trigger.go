// Package notify selects, renders and dispatches the correspondence raised by
// committed case events.
package notify

import (
	"time"

	"github.com/goliatone/go-casework"
)

// Trigger names a logical notification raised after a committed event.
type Trigger string

const (
	Applicant2Invited          Trigger = "applicant2-invited"
	Applicant2Approved         Trigger = "applicant2-approved"
	ApplicationSubmitted       Trigger = "application-submitted"
	ApplicationIssued          Trigger = "application-issued"
	AosSubmitted               Trigger = "aos-submitted"
	AwaitingConditionalOrder   Trigger = "awaiting-conditional-order"
	ConditionalOrderSubmitted  Trigger = "conditional-order-submitted"
	ClarificationRequested     Trigger = "clarification-requested"
	ConditionalOrderPronounced Trigger = "conditional-order-pronounced"
	AwaitingFinalOrder         Trigger = "awaiting-final-order"
	FinalOrderRequested        Trigger = "final-order-requested"
	FinalOrderGranted          Trigger = "final-order-granted"
	ServiceApplicationRejected Trigger = "service-application-rejected"
)

// Triggers lists every trigger with a default rule.
func Triggers() []Trigger {
	return []Trigger{
		Applicant2Invited,
		Applicant2Approved,
		ApplicationSubmitted,
		ApplicationIssued,
		AosSubmitted,
		AwaitingConditionalOrder,
		ConditionalOrderSubmitted,
		ClarificationRequested,
		ConditionalOrderPronounced,
		AwaitingFinalOrder,
		FinalOrderRequested,
		FinalOrderGranted,
		ServiceApplicationRejected,
	}
}

// Channel is the delivery medium of a variant.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelLetter Channel = "letter"
)

// Party identifies one side of the case.
type Party string

const (
	Applicant1 Party = "applicant1"
	Applicant2 Party = "applicant2"
)

// Other returns the opposite party.
func (p Party) Other() Party {
	if p == Applicant1 {
		return Applicant2
	}
	return Applicant1
}

func (p Party) applicant(data casework.CaseData) casework.Applicant {
	if p == Applicant2 {
		return data.Applicant2
	}
	return data.Applicant1
}

// Audience is the template family: citizen facing or professional facing.
type Audience string

const (
	AudienceCitizen   Audience = "citizen"
	AudienceSolicitor Audience = "solicitor"
)

// Flavour distinguishes the branches of one trigger.
type Flavour string

const (
	FlavourSole            Flavour = "sole"
	FlavourRespondent      Flavour = "respondent"
	FlavourJoint           Flavour = "joint"
	FlavourInvitation      Flavour = "invitation"
	FlavourBothCompleted   Flavour = "both_completed"
	FlavourPartnerPending  Flavour = "partner_pending"
	FlavourPartnerReminder Flavour = "partner_reminder"
)

// Request asks for the correspondence of one trigger on a committed case.
type Request struct {
	Trigger Trigger       `json:"trigger"`
	Case    casework.Case `json:"case"`
	At      time.Time     `json:"at"`
}

// Recipient is the resolved addressee of a variant.
type Recipient struct {
	Party     Party             `json:"party"`
	Audience  Audience          `json:"audience"`
	Name      string            `json:"name"`
	Email     string            `json:"email,omitempty"`
	Address   casework.Address  `json:"address"`
	Language  casework.Language `json:"language"`
	Reference string            `json:"reference,omitempty"`
}

// Variant is one template to send to one recipient.
type Variant struct {
	Trigger    Trigger   `json:"trigger"`
	TemplateID string    `json:"template_id"`
	Channel    Channel   `json:"channel"`
	Flavour    Flavour   `json:"flavour"`
	Recipient  Recipient `json:"recipient"`
	Partner    Party     `json:"partner"`
	// ActedAt is when the acting party applied, set for partner-dependent flavours.
	ActedAt time.Time `json:"acted_at,omitempty"`
}
