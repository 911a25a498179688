package casework

import (
	"context"
	"time"
)

// Transition is the snapshot handed to each hook of an event execution.
// Hooks receive a private copy and return the snapshot the next hook sees.
type Transition struct {
	ExecutionID string
	EventID     string
	CaseID      int64
	Actor       Actor
	Source      Stage
	Candidate   Stage
	Data        CaseData
	Before      CaseData
	At          time.Time
}

// Clone deep-copies both data snapshots.
func (t Transition) Clone() Transition {
	t.Data = t.Data.Clone()
	t.Before = t.Before.Clone()
	return t
}

// WithData returns a copy of t carrying data.
func (t Transition) WithData(data CaseData) Transition {
	t.Data = data
	return t
}

// WithCandidate returns a copy of t proposing stage as the next stage.
func (t Transition) WithCandidate(stage Stage) Transition {
	t.Candidate = stage
	return t
}

// PreStartHook primes default values before validation. It cannot move the stage.
type PreStartHook func(ctx context.Context, t Transition) (Transition, error)

// Guard checks a business precondition. A non-nil error fails the event and its
// message is shown to the caller.
type Guard func(ctx context.Context, t Transition) error

// ValidateHook reports field-level problems with the proposed data.
type ValidateHook func(ctx context.Context, t Transition) FieldErrors

// CommitHook performs the business mutation and may propose a candidate stage.
type CommitHook func(ctx context.Context, t Transition) (Transition, error)

// TargetResolver computes the next stage from the mutated snapshot.
type TargetResolver func(ctx context.Context, t Transition) (Stage, error)

// CommittedHook runs after the new stage is stored. Failures never undo the transition.
type CommittedHook func(ctx context.Context, t Transition) error
