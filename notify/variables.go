package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/config"
)

// Template variable names.
const (
	VarReference            = "application reference"
	VarFirstName            = "first name"
	VarLastName             = "last name"
	VarPartner              = "partner"
	VarIsDivorce            = "isDivorce"
	VarIsDissolution        = "isDissolution"
	VarApplicant1Name       = "applicant 1 full name"
	VarApplicant2Name       = "applicant 2 full name"
	VarApplicationKind      = "divorce or dissolution"
	VarDate                 = "date"
	VarRespondBy            = "respond by date"
	VarIssueDate            = "issue date"
	VarReviewDeadline       = "review deadline date"
	VarHoldingEnds          = "conditional order date"
	VarClarificationDue     = "clarification deadline date"
	VarPronouncementDate    = "pronouncement date"
	VarCourt                = "court name"
	VarFinalOrderEligible   = "final order eligible date"
	VarFinalOrderGranted    = "final order date"
	VarSolicitorName        = "solicitor name"
	VarSolicitorReference   = "solicitor reference"
	VarRecipientName        = "recipient name"
	VarRecipientAddress     = "recipient address"
	VarClarificationReasons = "clarification reasons"
)

// VariableBuilder assembles template substitutions for a variant.
type VariableBuilder struct {
	policy config.Policy
	labels *Labels
}

// NewVariableBuilder builds a variable builder for policy.
func NewVariableBuilder(policy config.Policy) (*VariableBuilder, error) {
	labels, err := NewLabels()
	if err != nil {
		return nil, err
	}
	return &VariableBuilder{policy: policy, labels: labels}, nil
}

// FormatReference renders a case id as four groups of four digits.
func FormatReference(id int64) string {
	if id < 0 {
		return strconv.FormatInt(id, 10)
	}
	digits := fmt.Sprintf("%016d", id)
	if len(digits) != 16 {
		return digits
	}
	return digits[0:4] + "-" + digits[4:8] + "-" + digits[8:12] + "-" + digits[12:16]
}

// Build returns the substitution set for v on c. Dates are computed in the
// jurisdiction time zone.
func (b *VariableBuilder) Build(v Variant, c casework.Case, at time.Time) (map[string]string, error) {
	data := c.Data
	lang := v.Recipient.Language
	self := v.Recipient.Party.applicant(data)
	partner := v.Partner.applicant(data)

	vars := map[string]string{
		VarReference:       FormatReference(c.ID),
		VarFirstName:       strings.TrimSpace(self.FirstName),
		VarLastName:        strings.TrimSpace(self.LastName),
		VarPartner:         b.labels.Partner(lang, data, partner),
		VarIsDivorce:       b.labels.YesNo(data.IsDivorce()),
		VarIsDissolution:   b.labels.YesNo(!data.IsDivorce()),
		VarApplicant1Name:  data.Applicant1.FullName(),
		VarApplicant2Name:  data.Applicant2.FullName(),
		VarApplicationKind: b.labels.Application(lang, data),
		VarDate:            b.date(lang, at),
		VarRecipientName:   v.Recipient.Name,
	}
	if v.Recipient.Audience == AudienceSolicitor {
		vars[VarSolicitorName] = v.Recipient.Name
		vars[VarSolicitorReference] = v.Recipient.Reference
	}
	if v.Channel == ChannelLetter {
		vars[VarRecipientAddress] = FormatAddress(v.Recipient.Address)
	}

	if err := b.addTriggerVariables(vars, v, data, lang); err != nil {
		return nil, fmt.Errorf("%s %s: %w", v.Trigger, v.Flavour, err)
	}
	return vars, nil
}

func (b *VariableBuilder) addTriggerVariables(vars map[string]string, v Variant, data casework.CaseData, lang casework.Language) error {
	switch v.Trigger {
	case ConditionalOrderSubmitted, FinalOrderRequested:
		if v.Flavour != FlavourPartnerPending && v.Flavour != FlavourPartnerReminder {
			return nil
		}
		if v.ActedAt.IsZero() {
			return fmt.Errorf("missing submission date")
		}
		vars[VarRespondBy] = b.date(lang, b.policy.RespondBy(v.ActedAt))

	case ApplicationIssued:
		issued := data.Application.IssuedAt
		if issued.IsZero() {
			return fmt.Errorf("missing issue date")
		}
		vars[VarIssueDate] = b.date(lang, issued)
		if data.IsSole() {
			vars[VarReviewDeadline] = b.date(lang, b.policy.AosDue(issued))
		} else {
			vars[VarHoldingEnds] = b.date(lang, b.policy.HoldingEnds(issued))
		}

	case AosSubmitted:
		issued := data.Application.IssuedAt
		if issued.IsZero() {
			return fmt.Errorf("missing issue date")
		}
		vars[VarHoldingEnds] = b.date(lang, b.policy.HoldingEnds(issued))

	case ClarificationRequested:
		decided := data.ConditionalOrder.DecisionAt
		if decided.IsZero() {
			return fmt.Errorf("missing decision date")
		}
		vars[VarClarificationDue] = b.date(lang, b.policy.ClarificationDue(decided))
		vars[VarClarificationReasons] = strings.Join(data.ConditionalOrder.ClarificationReasons, "\n")

	case ConditionalOrderPronounced, AwaitingFinalOrder:
		granted := data.ConditionalOrder.GrantedAt
		if granted.IsZero() {
			return fmt.Errorf("missing conditional order grant date")
		}
		eligible := data.FinalOrder.EligibleFrom
		if eligible.IsZero() {
			eligible = b.policy.FinalOrderEligibleFrom(granted)
		}
		vars[VarPronouncementDate] = b.date(lang, granted)
		vars[VarFinalOrderEligible] = b.date(lang, eligible)
		vars[VarCourt] = data.ConditionalOrder.Court

	case FinalOrderGranted:
		granted := data.FinalOrder.GrantedAt
		if granted.IsZero() {
			return fmt.Errorf("missing final order grant date")
		}
		vars[VarFinalOrderGranted] = b.date(lang, granted)
	}
	return nil
}

func (b *VariableBuilder) date(lang casework.Language, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return b.labels.Date(lang, t.In(b.policy.Location()))
}

// FormatAddress joins the address into postal lines.
func FormatAddress(a casework.Address) string {
	lines := make([]string, 0, len(a.Lines)+3)
	for _, l := range append(append([]string(nil), a.Lines...), a.Town, a.Postcode, a.Country) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
