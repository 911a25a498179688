// Package scanner sweeps cases whose due date has passed and runs the system
// event that moves each one on.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/flow"
)

// Source lists cases due on or before a moment.
type Source interface {
	DueCases(ctx context.Context, at time.Time) ([]casework.Case, error)
}

// Executor runs one invocation.
type Executor interface {
	Execute(ctx context.Context, inv flow.Invocation) (*flow.Outcome, error)
}

// DefaultRules maps each waiting stage to the system event that progresses it.
func DefaultRules() map[casework.Stage]string {
	return map[casework.Stage]string{
		casework.StageAwaitingAos:                "system-aos-overdue",
		casework.StageAosDrafted:                 "system-aos-overdue",
		casework.StageHolding:                    "system-progress-held-case",
		casework.StageConditionalOrderPronounced: "system-progress-to-awaiting-final-order",
	}
}

// Report summarises one sweep.
type Report struct {
	At         time.Time
	Due        int
	Progressed int
	Skipped    int
	Failed     int
}

// Scanner progresses due cases as the system actor.
type Scanner struct {
	source   Source
	executor Executor
	actor    casework.Actor
	rules    map[casework.Stage]string
	logger   casework.Logger
	now      func() time.Time
}

// New builds a scanner. actorID identifies the system user in case history.
func New(source Source, executor Executor, actorID string, opts ...Option) (*Scanner, error) {
	if source == nil {
		return nil, fmt.Errorf("due case source required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor required")
	}
	if actorID == "" {
		actorID = "system"
	}
	s := &Scanner{
		source:   source,
		executor: executor,
		actor:    casework.Actor{ID: actorID, Role: casework.RoleSystemUpdate},
		rules:    DefaultRules(),
		logger:   casework.NewFmtLogger(nil),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Sweep runs the progressing event for every due case. A case whose guard still
// refuses is skipped; other failures are joined into the returned error.
func (s *Scanner) Sweep(ctx context.Context) (Report, error) {
	at := s.now()
	report := Report{At: at}
	due, err := s.source.DueCases(ctx, at)
	if err != nil {
		return report, fmt.Errorf("list due cases: %w", err)
	}
	report.Due = len(due)

	var errs []error
	for _, c := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		event, ok := s.rules[c.Stage]
		if !ok {
			report.Skipped++
			continue
		}
		out, err := s.executor.Execute(ctx, flow.Invocation{
			EventID:     event,
			Actor:       s.actor,
			Case:        c,
			RequestedAt: at,
		})
		switch {
		case err == nil:
			report.Progressed++
			s.logger.Info("case %d progressed by %s to %s", c.ID, event, out.Stage)
		case casework.HasCode(err, casework.ErrCodeGuardFailed),
			casework.HasCode(err, casework.ErrCodeVersionConflict):
			report.Skipped++
			s.logger.Debug("case %d not progressed by %s: %v", c.ID, event, err)
		default:
			report.Failed++
			errs = append(errs, fmt.Errorf("case %d %s: %w", c.ID, event, err))
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("sweep at %s: %d of %d due cases failed", at.Format(time.RFC3339), report.Failed, report.Due)
	}
	return report, errors.Join(errs...)
}
