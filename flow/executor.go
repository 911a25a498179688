// Package flow runs case events through the ordered hook pipeline and commits
// the resulting stage.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/permission"
	"github.com/goliatone/go-casework/registry"
)

const tracerName = "github.com/goliatone/go-casework/flow"

// CaseStore persists committed cases with optimistic version checks.
// SaveIfVersion returns an error coded CASE_VERSION_CONFLICT on mismatch.
type CaseStore interface {
	Load(ctx context.Context, id int64) (*casework.Case, error)
	SaveIfVersion(ctx context.Context, c casework.Case, expectedVersion int) (int, error)
}

// IDAllocator assigns identifiers to cases created by an event.
type IDAllocator interface {
	NextID(ctx context.Context) (int64, error)
}

// Executor orchestrates single event invocations.
type Executor struct {
	events          *registry.Registry
	perms           *permission.Table
	store           CaseStore
	history         HistoryStore
	logger          casework.Logger
	metrics         MetricsRecorder
	tracer          trace.Tracer
	lifecycle       []LifecycleHook
	hookFailureMode HookFailureMode
	now             func() time.Time
	newID           func() string
}

// New builds an executor over a compiled registry and permission table.
func New(events *registry.Registry, perms *permission.Table, opts ...Option) (*Executor, error) {
	if events == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if perms == nil {
		return nil, fmt.Errorf("permission table required")
	}
	e := &Executor{
		events:          events,
		perms:           perms,
		logger:          casework.NewFmtLogger(nil),
		tracer:          otel.Tracer(tracerName),
		hookFailureMode: HookFailureModeFailOpen,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Execute runs inv. Every failure before commit leaves the case untouched; failures of
// post-commit hooks are returned as Outcome warnings.
func (e *Executor) Execute(ctx context.Context, inv Invocation) (out *Outcome, err error) {
	start := time.Now()
	executionID := e.newID()
	eventID := strings.TrimSpace(inv.EventID)
	metricEvent := eventID

	ctx, span := e.tracer.Start(ctx, "casework.execute", trace.WithAttributes(
		attribute.String("casework.event", eventID),
		attribute.Int64("casework.case_id", inv.Case.ID),
		attribute.String("casework.role", string(inv.Actor.Role)),
		attribute.String("casework.stage", string(inv.Case.Stage)),
	))
	defer span.End()

	fields := map[string]any{
		"case_id":      inv.Case.ID,
		"event":        eventID,
		"execution_id": executionID,
		"role":         string(inv.Actor.Role),
		"stage":        string(inv.Case.Stage),
	}
	logger := casework.LoggerWithFields(e.logger.WithContext(ctx), fields)
	logger.Debug("event execution requested")

	defer func() {
		if e.metrics != nil {
			e.metrics.RecordDuration(metricEvent, time.Since(start))
			if err != nil {
				e.metrics.RecordError(metricEvent, casework.ErrorCode(err))
			} else {
				e.metrics.RecordSuccess(metricEvent)
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, casework.ErrorCode(err))
		} else if out != nil {
			span.SetAttributes(attribute.String("casework.next_stage", string(out.Stage)))
		}
	}()

	if verr := inv.Validate(); verr != nil {
		metricEvent = "invalid"
		return nil, e.reject(ctx, logger, inv, executionID, verr)
	}

	evt, ok := e.events.Lookup(eventID)
	if !ok {
		metricEvent = "unknown"
		return nil, e.reject(ctx, logger, inv, executionID, casework.NewError(casework.ErrUnknownEvent, "", nil, fields))
	}

	access := e.perms.For(evt.ID, inv.Actor.Role)
	if access == permission.HistoryOnly {
		return nil, e.reject(ctx, logger, inv, executionID, casework.NewError(casework.ErrForbidden, "", nil,
			withField(fields, "reason", "history_only")))
	}
	if !access.Satisfies(evt.MinAccess) {
		return nil, e.reject(ctx, logger, inv, executionID, casework.NewError(casework.ErrForbidden, "", nil,
			withField(fields, "reason", "access_"+access.String())))
	}

	if !evt.AllowsFrom(inv.Case.Stage) {
		return nil, e.reject(ctx, logger, inv, executionID, casework.NewError(
			casework.ErrInvalidStageForEvent,
			fmt.Sprintf("event %s cannot run from stage %s", evt.ID, stageLabel(inv.Case.Stage)),
			nil,
			fields,
		))
	}

	if lerr := e.emit(ctx, logger, e.lifecycleEvent(PhaseAttempted, inv, executionID, inv.Case.Stage, inv.Case.Version, nil)); lerr != nil {
		return nil, lerr
	}

	requestedAt := inv.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = e.now()
	}
	tr := casework.Transition{
		ExecutionID: executionID,
		EventID:     evt.ID,
		CaseID:      inv.Case.ID,
		Actor:       inv.Actor,
		Source:      inv.Case.Stage,
		Candidate:   inv.Case.Stage,
		Data:        inv.proposed(),
		Before:      inv.Case.Data.Clone(),
		At:          requestedAt,
	}

	tr, target, herr := e.runHooks(ctx, logger, evt, tr)
	if herr != nil {
		return nil, e.reject(ctx, logger, inv, executionID, herr)
	}

	caseID := inv.Case.ID
	if evt.Creates && caseID == 0 {
		if alloc, ok := e.store.(IDAllocator); ok {
			id, aerr := alloc.NextID(ctx)
			if aerr != nil {
				return nil, e.reject(ctx, logger, inv, executionID, casework.NewError(casework.ErrCommitFailed, "", aerr, fields))
			}
			caseID = id
		}
	}
	committed := casework.Case{ID: caseID, Stage: target, Version: inv.Case.Version, Data: tr.Data}
	version, cerr := e.commit(ctx, committed, inv.Case.Version, fields)
	if cerr != nil {
		return nil, e.reject(ctx, logger, inv, executionID, cerr)
	}
	committed.Version = version
	tr.CaseID = caseID
	tr.Candidate = target
	logger.Info("event committed stage=%s->%s version=%d", stageLabel(inv.Case.Stage), target, version)

	out = &Outcome{
		ExecutionID:   executionID,
		EventID:       evt.ID,
		CaseID:        caseID,
		PreviousStage: inv.Case.Stage,
		Stage:         target,
		Version:       version,
		Data:          committed.Data.Clone(),
	}

	committedInv := inv
	committedInv.Case = committed
	if lerr := e.emit(ctx, logger, e.lifecycleEvent(PhaseCommitted, committedInv, executionID, inv.Case.Stage, version, nil)); lerr != nil {
		logger.Warn("committed lifecycle dispatch failed post-commit: %v", lerr)
		out.Warnings = append(out.Warnings, lerr)
	}
	out.Warnings = append(out.Warnings, e.runCommitted(ctx, logger, evt, tr)...)
	return out, nil
}

// Run loads the case from the configured store and executes the event against it.
// A zero caseID runs a creating event on a new case.
func (e *Executor) Run(ctx context.Context, eventID string, caseID int64, actor casework.Actor, payload *casework.CaseData) (*Outcome, error) {
	if e.store == nil {
		return nil, fmt.Errorf("case store not configured")
	}
	var current casework.Case
	if caseID != 0 {
		loaded, err := e.store.Load(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, casework.NewError(casework.ErrCaseNotFound, "", nil, map[string]any{"case_id": caseID})
		}
		current = *loaded
	}
	return e.Execute(ctx, Invocation{
		EventID: eventID,
		Actor:   actor,
		Case:    current,
		Payload: payload,
	})
}

// Allowed lists the events role may invoke on c in its current stage.
func (e *Executor) Allowed(c casework.Case, role casework.Role) []string {
	events := e.events.From(c.Stage)
	out := make([]string, 0, len(events))
	for _, evt := range events {
		if e.perms.For(evt.ID, role).Satisfies(evt.MinAccess) {
			out = append(out, evt.ID)
		}
	}
	return out
}

// View checks that role may read c: it holds read access on an event available
// from the case's stage, or can see at least one entry of the case's history.
func (e *Executor) View(ctx context.Context, c casework.Case, role casework.Role) error {
	for _, evt := range e.events.From(c.Stage) {
		if e.perms.For(evt.ID, role).Satisfies(permission.ReadOnly) {
			return nil
		}
	}
	if e.history != nil {
		entries, err := e.History(ctx, c.ID, role)
		if err != nil && !casework.HasCode(err, casework.ErrCodeForbidden) {
			return err
		}
		if len(entries) > 0 {
			return nil
		}
	}
	return casework.NewError(casework.ErrForbidden, "", nil, map[string]any{
		"case_id": c.ID,
		"reason":  "no_case_access",
	})
}

// History returns the committed executions of caseID visible to role. Roles with
// HistoryOnly access see the entries of those events.
func (e *Executor) History(ctx context.Context, caseID int64, role casework.Role) ([]HistoryEntry, error) {
	if e.history == nil {
		return nil, fmt.Errorf("history store not configured")
	}
	entries, err := e.history.List(ctx, caseID)
	if err != nil {
		return nil, err
	}
	visible := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if e.perms.For(entry.EventID, role).CanViewHistory() {
			visible = append(visible, entry)
		}
	}
	if len(entries) > 0 && len(visible) == 0 {
		return nil, casework.NewError(casework.ErrForbidden, "", nil, map[string]any{
			"case_id": caseID,
			"reason":  "no_history_access",
		})
	}
	return visible, nil
}

func (e *Executor) runHooks(ctx context.Context, logger casework.Logger, evt *registry.Event, tr casework.Transition) (casework.Transition, casework.Stage, error) {
	for _, h := range evt.PreStart {
		next, err := protect(h.Name, func() (casework.Transition, error) { return h.Fn(ctx, tr.Clone()) })
		if err != nil {
			return tr, casework.StageNone, hookError(evt.ID, h.Name, err)
		}
		tr = tr.WithData(next.Data)
	}

	for _, g := range evt.Guards {
		_, err := protect(g.Name, func() (struct{}, error) { return struct{}{}, g.Fn(ctx, tr.Clone()) })
		if err != nil {
			return tr, casework.StageNone, guardError(evt.ID, g.Name, err)
		}
	}

	var problems casework.FieldErrors
	for _, v := range evt.Validate {
		found, err := protect(v.Name, func() (casework.FieldErrors, error) { return v.Fn(ctx, tr.Clone()), nil })
		if err != nil {
			return tr, casework.StageNone, hookError(evt.ID, v.Name, err)
		}
		problems = append(problems, found...)
	}
	if len(problems) > 0 {
		logger.Debug("event validation failed with %d errors", len(problems))
		return tr, casework.StageNone, casework.NewError(casework.ErrValidationFailed, problems.Error(), problems,
			map[string]any{"event": evt.ID})
	}

	for _, c := range evt.Commit {
		next, err := protect(c.Name, func() (casework.Transition, error) { return c.Fn(ctx, tr.Clone()) })
		if err != nil {
			return tr, casework.StageNone, hookError(evt.ID, c.Name, err)
		}
		tr = tr.WithData(next.Data)
		if next.Candidate != casework.StageNone {
			tr = tr.WithCandidate(next.Candidate)
		}
	}

	target := tr.Candidate
	switch {
	case evt.FixedTarget():
		if tr.Candidate != tr.Source && tr.Candidate != evt.To {
			logger.Debug("commit candidate %s ignored for fixed target %s", tr.Candidate, evt.To)
		}
		target = evt.To
	case evt.Resolve != nil:
		resolved, err := protect(evt.Resolve.Name, func() (casework.Stage, error) { return evt.Resolve.Fn(ctx, tr.Clone()) })
		if err != nil {
			return tr, casework.StageNone, hookError(evt.ID, evt.Resolve.Name, err)
		}
		if resolved != casework.StageNone {
			target = resolved
		}
	}
	if !target.Valid() {
		return tr, casework.StageNone, casework.NewError(casework.ErrHookFailed,
			fmt.Sprintf("event %s resolved unknown stage %q", evt.ID, target), nil, nil)
	}
	return tr, target, nil
}

func (e *Executor) runCommitted(ctx context.Context, logger casework.Logger, evt *registry.Event, tr casework.Transition) []error {
	var warnings []error
	for _, h := range evt.Committed {
		_, err := protect(h.Name, func() (struct{}, error) { return struct{}{}, h.Fn(ctx, tr.Clone()) })
		if err == nil {
			continue
		}
		if casework.ErrorCode(err) == "" {
			err = casework.NewError(casework.ErrNotificationDeliveryFailed,
				fmt.Sprintf("post-commit hook %s failed", h.Name), err,
				map[string]any{"event": evt.ID, "hook": h.Name, "case_id": tr.CaseID})
		}
		logger.Warn("post-commit hook %s failed: %v", h.Name, err)
		warnings = append(warnings, err)
	}
	return warnings
}

func (e *Executor) commit(ctx context.Context, c casework.Case, expected int, fields map[string]any) (int, error) {
	if e.store == nil {
		return expected + 1, nil
	}
	version, err := e.store.SaveIfVersion(ctx, c, expected)
	if err == nil {
		return version, nil
	}
	if casework.HasCode(err, casework.ErrCodeVersionConflict) {
		return 0, err
	}
	return 0, casework.NewError(casework.ErrCommitFailed, "", err, fields)
}

func (e *Executor) reject(ctx context.Context, logger casework.Logger, inv Invocation, executionID string, cause error) error {
	logger.Warn("event rejected: %v", cause)
	if lerr := e.emit(ctx, logger, e.lifecycleEvent(PhaseRejected, inv, executionID, inv.Case.Stage, inv.Case.Version, cause)); lerr != nil {
		return lerr
	}
	return cause
}

func (e *Executor) lifecycleEvent(phase Phase, inv Invocation, executionID string, previous casework.Stage, version int, cause error) LifecycleEvent {
	evt := LifecycleEvent{
		Phase:         phase,
		ExecutionID:   executionID,
		EventID:       strings.TrimSpace(inv.EventID),
		CaseID:        inv.Case.ID,
		Actor:         inv.Actor,
		PreviousStage: previous,
		Stage:         inv.Case.Stage,
		Version:       version,
		OccurredAt:    e.now(),
	}
	if cause != nil {
		evt.ErrorCode = casework.ErrorCode(cause)
		evt.ErrorMessage = cause.Error()
		evt.Metadata = map[string]any{
			"error_code":    evt.ErrorCode,
			"error_message": evt.ErrorMessage,
		}
	}
	return evt
}

func (e *Executor) emit(ctx context.Context, logger casework.Logger, evt LifecycleEvent) error {
	return fanoutLifecycleHooks(ctx, e.lifecycle, evt, e.hookFailureMode, logger)
}

func protect[R any](name string, fn func() (R, error)) (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", name, r)
		}
	}()
	return fn()
}

func hookError(event, hook string, err error) error {
	var fe casework.FieldErrors
	if errors.As(err, &fe) && casework.ErrorCode(err) == "" {
		return casework.NewError(casework.ErrValidationFailed, fe.Error(), fe, map[string]any{"event": event, "hook": hook})
	}
	if casework.ErrorCode(err) != "" {
		return err
	}
	return casework.NewError(casework.ErrHookFailed, fmt.Sprintf("hook %s failed", hook), err,
		map[string]any{"event": event, "hook": hook})
}

func guardError(event, guard string, err error) error {
	if casework.ErrorCode(err) != "" {
		return err
	}
	return casework.NewError(casework.ErrGuardFailed, err.Error(), nil, map[string]any{"event": event, "guard": guard})
}

func withField(fields map[string]any, key string, value any) map[string]any {
	out := copyMap(fields)
	if out == nil {
		out = map[string]any{}
	}
	out[key] = value
	return out
}

func stageLabel(stage casework.Stage) string {
	if stage == casework.StageNone {
		return "<new>"
	}
	return string(stage)
}
