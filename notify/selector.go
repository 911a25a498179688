package notify

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-casework"
)

// Target is one party notified under a rule, with its template flavour.
type Target struct {
	Party   Party
	Flavour Flavour
}

// Rule describes who hears about a trigger.
type Rule struct {
	Trigger Trigger
	Sole    []Target
	Joint   []Target
	// Progress makes joint selection depend on which applicants have already applied.
	Progress func(casework.CaseData) (applicant1, applicant2 casework.OrderApplication)
}

// PartnerDependent reports whether joint selection branches on partner progress.
func (r Rule) PartnerDependent() bool {
	return r.Progress != nil
}

func conditionalOrderProgress(d casework.CaseData) (casework.OrderApplication, casework.OrderApplication) {
	return d.ConditionalOrder.Applicant1, d.ConditionalOrder.Applicant2
}

func finalOrderProgress(d casework.CaseData) (casework.OrderApplication, casework.OrderApplication) {
	return d.FinalOrder.Applicant1, d.FinalOrder.Applicant2
}

// DefaultRules returns the rule table for every trigger.
func DefaultRules() []Rule {
	app1 := func(f Flavour) Target { return Target{Party: Applicant1, Flavour: f} }
	app2 := func(f Flavour) Target { return Target{Party: Applicant2, Flavour: f} }
	sole := []Target{app1(FlavourSole)}
	soleWithRespondent := []Target{app1(FlavourSole), app2(FlavourRespondent)}
	bothJoint := []Target{app1(FlavourJoint), app2(FlavourJoint)}

	return []Rule{
		{Trigger: Applicant2Invited, Joint: []Target{app2(FlavourInvitation)}},
		{Trigger: Applicant2Approved, Joint: []Target{app1(FlavourJoint)}},
		{Trigger: ApplicationSubmitted, Sole: sole, Joint: bothJoint},
		{Trigger: ApplicationIssued, Sole: soleWithRespondent, Joint: bothJoint},
		{Trigger: AosSubmitted, Sole: soleWithRespondent},
		{Trigger: AwaitingConditionalOrder, Sole: sole, Joint: bothJoint},
		{Trigger: ConditionalOrderSubmitted, Sole: sole, Progress: conditionalOrderProgress},
		{Trigger: ClarificationRequested, Sole: sole, Joint: bothJoint},
		{Trigger: ConditionalOrderPronounced, Sole: soleWithRespondent, Joint: bothJoint},
		{Trigger: AwaitingFinalOrder, Sole: sole, Joint: bothJoint},
		{Trigger: FinalOrderRequested, Sole: sole, Progress: finalOrderProgress},
		{Trigger: FinalOrderGranted, Sole: soleWithRespondent, Joint: bothJoint},
		{Trigger: ServiceApplicationRejected, Sole: sole, Joint: []Target{app1(FlavourJoint)}},
	}
}

// Selector chooses template variants for a trigger.
type Selector struct {
	rules                map[Trigger]Rule
	templates            Templates
	notifyPendingPartner bool
	logger               casework.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRules replaces the rules for the given triggers.
func WithRules(rules ...Rule) SelectorOption {
	return func(s *Selector) {
		for _, r := range rules {
			s.rules[r.Trigger] = r
		}
	}
}

// WithTemplates overrides template ids by key.
func WithTemplates(overrides map[string]string) SelectorOption {
	return func(s *Selector) {
		s.templates = NewTemplates(overrides)
	}
}

// WithPartnerReminder enables the reminder to the partner who has not yet applied.
func WithPartnerReminder(enabled bool) SelectorOption {
	return func(s *Selector) {
		s.notifyPendingPartner = enabled
	}
}

// WithSelectorLogger sets the selector logger.
func WithSelectorLogger(logger casework.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector builds a selector over DefaultRules.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		rules:     make(map[Trigger]Rule),
		templates: NewTemplates(nil),
	}
	for _, r := range DefaultRules() {
		s.rules[r.Trigger] = r
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = casework.NormalizeLogger(s.logger)
	return s
}

// Select returns the variants for trigger on c. Parties with nowhere to send to are
// skipped with a warning.
func (s *Selector) Select(trigger Trigger, c casework.Case) ([]Variant, error) {
	rule, ok := s.rules[trigger]
	if !ok {
		return nil, fmt.Errorf("no notification rule for trigger %q", trigger)
	}
	data := c.Data

	var targets []Target
	var actedAt map[Party]casework.OrderApplication
	switch {
	case data.IsSole():
		targets = rule.Sole
	case rule.PartnerDependent():
		targets, actedAt = s.partnerTargets(rule, data)
	default:
		targets = rule.Joint
	}

	variants := make([]Variant, 0, len(targets))
	for _, target := range targets {
		v, ok := s.variant(trigger, c, target)
		if !ok {
			continue
		}
		if actedAt != nil {
			v.ActedAt = actedAt[target.Party].SubmittedAt
			if target.Flavour == FlavourPartnerReminder {
				v.ActedAt = actedAt[target.Party.Other()].SubmittedAt
			}
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (s *Selector) partnerTargets(rule Rule, data casework.CaseData) ([]Target, map[Party]casework.OrderApplication) {
	a1, a2 := rule.Progress(data)
	progress := map[Party]casework.OrderApplication{Applicant1: a1, Applicant2: a2}

	var acting Party
	switch {
	case a1.Submitted() && a2.Submitted():
		return []Target{
			{Party: Applicant1, Flavour: FlavourBothCompleted},
			{Party: Applicant2, Flavour: FlavourBothCompleted},
		}, progress
	case a1.Submitted():
		acting = Applicant1
	case a2.Submitted():
		acting = Applicant2
	default:
		s.logger.Warn("joint %s raised before either applicant applied", rule.Trigger)
		return nil, progress
	}

	targets := []Target{{Party: acting, Flavour: FlavourPartnerPending}}
	if s.notifyPendingPartner {
		targets = append(targets, Target{Party: acting.Other(), Flavour: FlavourPartnerReminder})
	}
	return targets, progress
}

func (s *Selector) variant(trigger Trigger, c casework.Case, target Target) (Variant, bool) {
	applicant := target.Party.applicant(c.Data)
	recipient := Recipient{
		Party:    target.Party,
		Audience: AudienceCitizen,
		Name:     applicant.FullName(),
		Email:    strings.TrimSpace(applicant.Email),
		Address:  applicant.Address,
		Language: applicant.PreferredLanguage(),
	}
	if sol := applicant.Solicitor; sol != nil {
		recipient.Audience = AudienceSolicitor
		recipient.Name = sol.Name
		recipient.Email = applicant.NotificationEmail()
		recipient.Address = sol.Address
		recipient.Reference = sol.Reference
		recipient.Language = casework.English
	}

	channel := ChannelEmail
	if applicant.Offline || recipient.Email == "" {
		channel = ChannelLetter
		recipient.Email = ""
	}
	if channel == ChannelLetter && recipient.Address.Empty() {
		s.logger.Warn("case %d: no address for %s on %s, skipping", c.ID, target.Party, trigger)
		return Variant{}, false
	}

	return Variant{
		Trigger:    trigger,
		TemplateID: s.templates.Resolve(TemplateKey(trigger, recipient.Audience, target.Flavour, channel, recipient.Language)),
		Channel:    channel,
		Flavour:    target.Flavour,
		Recipient:  recipient,
		Partner:    target.Party.Other(),
	}, true
}
