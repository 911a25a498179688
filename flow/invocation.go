package flow

import (
	"strings"
	"time"

	"github.com/goliatone/go-casework"
)

// Invocation is one request to run an event against a case.
type Invocation struct {
	EventID     string
	Actor       casework.Actor
	Case        casework.Case
	Payload     *casework.CaseData
	RequestedAt time.Time
}

func (i Invocation) Type() string { return "casework.invocation" }

// Validate checks the invocation envelope, not the business payload.
func (i Invocation) Validate() error {
	if strings.TrimSpace(i.EventID) == "" {
		return casework.NewError(casework.ErrUnknownEvent, "", nil, nil)
	}
	if strings.TrimSpace(string(i.Actor.Role)) == "" {
		return casework.NewError(casework.ErrForbidden, "", nil, map[string]any{"reason": "missing_role"})
	}
	return nil
}

// proposed returns the data hooks start from.
func (i Invocation) proposed() casework.CaseData {
	if i.Payload != nil {
		return i.Payload.Clone()
	}
	return i.Case.Data.Clone()
}

// Outcome is the result of a committed execution.
type Outcome struct {
	ExecutionID   string
	EventID       string
	CaseID        int64
	PreviousStage casework.Stage
	Stage         casework.Stage
	Version       int
	Data          casework.CaseData
	Warnings      []error
}

// Case returns the committed case.
func (o *Outcome) Case() casework.Case {
	if o == nil {
		return casework.Case{}
	}
	return casework.Case{ID: o.CaseID, Stage: o.Stage, Version: o.Version, Data: o.Data.Clone()}
}

// Changed reports whether the execution moved the case to another stage.
func (o *Outcome) Changed() bool {
	return o != nil && o.PreviousStage != o.Stage
}
