package casework

import (
	"strings"
	"time"
)

// ApplicationType distinguishes sole from joint applications.
type ApplicationType string

const (
	SoleApplication  ApplicationType = "soleApplication"
	JointApplication ApplicationType = "jointApplication"
)

// DivorceOrDissolution selects marriage or civil partnership vocabulary.
type DivorceOrDissolution string

const (
	Divorce     DivorceOrDissolution = "divorce"
	Dissolution DivorceOrDissolution = "dissolution"
)

// Language is a party's preferred correspondence language.
type Language string

const (
	English Language = "ENGLISH"
	Welsh   Language = "WELSH"
)

// Gender drives the partner label in correspondence.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// PaymentMethod is how the application fee is settled.
type PaymentMethod string

const (
	PayByCard        PaymentMethod = "feePayByCard"
	PayByAccount     PaymentMethod = "feePayByAccount"
	PayByHelpWithFee PaymentMethod = "feePayByHelp"
)

// ServiceType is the kind of alternative service requested.
type ServiceType string

const (
	ServiceBailiff   ServiceType = "BAILIFF"
	ServiceDeemed    ServiceType = "DEEMED"
	ServiceDispensed ServiceType = "DISPENSED"
)

// OrderStatus tracks one applicant's progress on a conditional or final order application.
type OrderStatus string

const (
	OrderNotStarted OrderStatus = ""
	OrderDrafted    OrderStatus = "drafted"
	OrderSubmitted  OrderStatus = "submitted"
)

// OrderDecision is the legal advisor outcome on a conditional order.
type OrderDecision string

const (
	DecisionNone    OrderDecision = ""
	DecisionGrant   OrderDecision = "grant"
	DecisionClarify OrderDecision = "clarify"
	DecisionAmend   OrderDecision = "amend"
)

// Case is a single application record.
type Case struct {
	ID      int64    `json:"id"`
	Stage   Stage    `json:"stage"`
	Version int      `json:"version"`
	Data    CaseData `json:"data"`
}

// Clone returns a deep copy of the case.
func (c Case) Clone() Case {
	c.Data = c.Data.Clone()
	return c
}

// Address is a postal address.
type Address struct {
	Lines    []string `json:"lines,omitempty"`
	Town     string   `json:"town,omitempty"`
	Postcode string   `json:"postcode,omitempty"`
	Country  string   `json:"country,omitempty"`
}

// Empty reports whether the address has nothing to post to.
func (a Address) Empty() bool {
	return len(a.Lines) == 0 && strings.TrimSpace(a.Postcode) == ""
}

func (a Address) clone() Address {
	a.Lines = cloneStrings(a.Lines)
	return a
}

// Solicitor is a party's legal representative.
type Solicitor struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Firm      string  `json:"firm,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Address   Address `json:"address"`
}

// Applicant is one party to the case.
type Applicant struct {
	FirstName             string     `json:"firstName"`
	MiddleName            string     `json:"middleName,omitempty"`
	LastName              string     `json:"lastName"`
	Email                 string     `json:"email,omitempty"`
	Address               Address    `json:"address"`
	Gender                Gender     `json:"gender,omitempty"`
	Language              Language   `json:"language,omitempty"`
	Offline               bool       `json:"offline,omitempty"`
	ContactDetailsPrivate bool       `json:"contactDetailsPrivate,omitempty"`
	Solicitor             *Solicitor `json:"solicitor,omitempty"`
}

// Represented reports whether the applicant has a solicitor.
func (a Applicant) Represented() bool {
	return a.Solicitor != nil
}

// NotificationEmail is the effective email address for correspondence.
func (a Applicant) NotificationEmail() string {
	if a.Solicitor != nil {
		return strings.TrimSpace(a.Solicitor.Email)
	}
	return strings.TrimSpace(a.Email)
}

// PreferredLanguage defaults to English.
func (a Applicant) PreferredLanguage() Language {
	if a.Language == Welsh {
		return Welsh
	}
	return English
}

// FullName joins the applicant's names.
func (a Applicant) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (a Applicant) clone() Applicant {
	a.Address = a.Address.clone()
	if a.Solicitor != nil {
		s := *a.Solicitor
		s.Address = s.Address.clone()
		a.Solicitor = &s
	}
	return a
}

// Application holds the originating application details.
type Application struct {
	PaymentMethod           PaymentMethod `json:"paymentMethod,omitempty"`
	HelpWithFeesReference   string        `json:"helpWithFeesReference,omitempty"`
	PaymentReference        string        `json:"paymentReference,omitempty"`
	FeePaid                 bool          `json:"feePaid,omitempty"`
	DocumentsAwaited        []string      `json:"documentsAwaited,omitempty"`
	ServeAnotherWay         bool          `json:"serveAnotherWay,omitempty"`
	Applicant2Invited       bool          `json:"applicant2Invited,omitempty"`
	Applicant2Approved      bool          `json:"applicant2Approved,omitempty"`
	StatementOfTruth        bool          `json:"statementOfTruth,omitempty"`
	Applicant2StatementTrue bool          `json:"applicant2StatementOfTruth,omitempty"`
	CreatedAt               time.Time     `json:"createdAt,omitempty"`
	SubmittedAt             time.Time     `json:"submittedAt,omitempty"`
	IssuedAt                time.Time     `json:"issuedAt,omitempty"`
	AosSubmittedAt          time.Time     `json:"aosSubmittedAt,omitempty"`
	RejectionReason         string        `json:"rejectionReason,omitempty"`
}

// AwaitingDocuments reports whether supporting documents are still outstanding.
func (a Application) AwaitingDocuments() bool {
	return len(a.DocumentsAwaited) > 0
}

// OrderApplication is one applicant's side of an order application.
type OrderApplication struct {
	Status      OrderStatus `json:"status,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt,omitempty"`
}

// Submitted reports whether the applicant has applied.
func (o OrderApplication) Submitted() bool {
	return o.Status == OrderSubmitted
}

// ConditionalOrder holds conditional order progress.
type ConditionalOrder struct {
	Applicant1            OrderApplication `json:"applicant1"`
	Applicant2            OrderApplication `json:"applicant2"`
	Decision              OrderDecision    `json:"decision,omitempty"`
	ClarificationReasons  []string         `json:"clarificationReasons,omitempty"`
	ClarificationResponse string           `json:"clarificationResponse,omitempty"`
	DecisionAt            time.Time        `json:"decisionAt,omitempty"`
	Court                 string           `json:"court,omitempty"`
	HearingAt             time.Time        `json:"hearingAt,omitempty"`
	GrantedAt             time.Time        `json:"grantedAt,omitempty"`
}

// FinalOrder holds final order progress.
type FinalOrder struct {
	Applicant1   OrderApplication `json:"applicant1"`
	Applicant2   OrderApplication `json:"applicant2"`
	EligibleFrom time.Time        `json:"eligibleFrom,omitempty"`
	GrantedAt    time.Time        `json:"grantedAt,omitempty"`
}

// Bailiff tracks personal service by a court bailiff.
type Bailiff struct {
	PackIssuedAt time.Time `json:"packIssuedAt,omitempty"`
	ReturnedAt   time.Time `json:"returnedAt,omitempty"`
	Served       bool      `json:"served,omitempty"`
}

// AlternativeService is an active request to serve the respondent another way.
type AlternativeService struct {
	Type              ServiceType `json:"type"`
	ReceivedAt        time.Time   `json:"receivedAt,omitempty"`
	ReceivedFromStage Stage       `json:"receivedFromStage,omitempty"`
	FeeRequired       bool        `json:"feeRequired,omitempty"`
	PaymentReference  string      `json:"paymentReference,omitempty"`
	Paid              bool        `json:"paid,omitempty"`
	Bailiff           *Bailiff    `json:"bailiff,omitempty"`
}

func (s *AlternativeService) clone() *AlternativeService {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Bailiff != nil {
		b := *s.Bailiff
		cp.Bailiff = &b
	}
	return &cp
}

// ServiceOutcome records a decided alternative service request.
type ServiceOutcome struct {
	Type      ServiceType `json:"type"`
	Granted   bool        `json:"granted"`
	Refused   bool        `json:"refused,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	DecidedAt time.Time   `json:"decidedAt"`
}

// GeneralReferral is a pending referral to a judge or legal advisor.
type GeneralReferral struct {
	Reason      string    `json:"reason"`
	FeeRequired bool      `json:"feeRequired,omitempty"`
	Paid        bool      `json:"paid,omitempty"`
	Urgent      bool      `json:"urgent,omitempty"`
	ReferredAt  time.Time `json:"referredAt,omitempty"`
	FromStage   Stage     `json:"fromStage,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	DecidedAt   time.Time `json:"decidedAt,omitempty"`
}

// Document references a generated or uploaded document.
type Document struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Filename  string    `json:"filename,omitempty"`
	Language  Language  `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Note is a caseworker note.
type Note struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// CaseData is the nested data bag carried by a case.
type CaseData struct {
	ApplicationType      ApplicationType      `json:"applicationType"`
	DivorceOrDissolution DivorceOrDissolution `json:"divorceOrDissolution"`
	Applicant1           Applicant            `json:"applicant1"`
	Applicant2           Applicant            `json:"applicant2"`
	Application          Application          `json:"application"`
	ConditionalOrder     ConditionalOrder     `json:"conditionalOrder"`
	FinalOrder           FinalOrder           `json:"finalOrder"`
	AlternativeService   *AlternativeService  `json:"alternativeService,omitempty"`
	ServiceOutcomes      []ServiceOutcome     `json:"serviceOutcomes,omitempty"`
	GeneralReferral      *GeneralReferral     `json:"generalReferral,omitempty"`
	ReferralHistory      []GeneralReferral    `json:"referralHistory,omitempty"`
	Documents            []Document           `json:"documents,omitempty"`
	Notes                []Note               `json:"notes,omitempty"`
	Flags                map[string]bool      `json:"flags,omitempty"`
	DueDate              time.Time            `json:"dueDate,omitempty"`
	PreviousStage        Stage                `json:"previousStage,omitempty"`
}

// IsSole reports whether the case is a sole application.
func (d CaseData) IsSole() bool {
	return d.ApplicationType != JointApplication
}

// IsDivorce reports whether the case concerns a marriage.
func (d CaseData) IsDivorce() bool {
	return d.DivorceOrDissolution != Dissolution
}

// Clone returns a deep copy sharing no pointers, slices or maps with d.
func (d CaseData) Clone() CaseData {
	d.Applicant1 = d.Applicant1.clone()
	d.Applicant2 = d.Applicant2.clone()
	d.Application.DocumentsAwaited = cloneStrings(d.Application.DocumentsAwaited)
	d.ConditionalOrder.ClarificationReasons = cloneStrings(d.ConditionalOrder.ClarificationReasons)
	d.AlternativeService = d.AlternativeService.clone()
	if d.ServiceOutcomes != nil {
		d.ServiceOutcomes = append([]ServiceOutcome(nil), d.ServiceOutcomes...)
	}
	if d.GeneralReferral != nil {
		gr := *d.GeneralReferral
		d.GeneralReferral = &gr
	}
	if d.ReferralHistory != nil {
		d.ReferralHistory = append([]GeneralReferral(nil), d.ReferralHistory...)
	}
	if d.Documents != nil {
		d.Documents = append([]Document(nil), d.Documents...)
	}
	if d.Notes != nil {
		d.Notes = append([]Note(nil), d.Notes...)
	}
	if d.Flags != nil {
		flags := make(map[string]bool, len(d.Flags))
		for k, v := range d.Flags {
			flags[k] = v
		}
		d.Flags = flags
	}
	return d
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
