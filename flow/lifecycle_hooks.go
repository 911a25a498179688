package flow

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-casework"
)

// Phase identifies lifecycle emission points of an execution.
type Phase string

const (
	PhaseAttempted Phase = "attempted"
	PhaseCommitted Phase = "committed"
	PhaseRejected  Phase = "rejected"
)

// HookFailureMode controls lifecycle-hook error behavior.
type HookFailureMode string

const (
	HookFailureModeFailOpen   HookFailureMode = "fail_open"
	HookFailureModeFailClosed HookFailureMode = "fail_closed"
)

// LifecycleEvent captures auditable execution metadata.
type LifecycleEvent struct {
	Phase         Phase
	ExecutionID   string
	EventID       string
	CaseID        int64
	Actor         casework.Actor
	PreviousStage casework.Stage
	Stage         casework.Stage
	Version       int
	ErrorCode     string
	ErrorMessage  string
	Metadata      map[string]any
	OccurredAt    time.Time
}

// LifecycleHook receives execution lifecycle events.
type LifecycleHook interface {
	Notify(ctx context.Context, evt LifecycleEvent) error
}

// LifecycleHookFunc adapts a function to LifecycleHook.
type LifecycleHookFunc func(ctx context.Context, evt LifecycleEvent) error

func (f LifecycleHookFunc) Notify(ctx context.Context, evt LifecycleEvent) error {
	return f(ctx, evt)
}

func normalizeHookFailureMode(mode HookFailureMode) HookFailureMode {
	switch HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case HookFailureModeFailClosed:
		return HookFailureModeFailClosed
	default:
		return HookFailureModeFailOpen
	}
}

func fanoutLifecycleHooks(
	ctx context.Context,
	hooks []LifecycleHook,
	evt LifecycleEvent,
	mode HookFailureMode,
	logger casework.Logger,
) error {
	if len(hooks) == 0 {
		return nil
	}
	mode = normalizeHookFailureMode(mode)
	fields := map[string]any{
		"case_id":      evt.CaseID,
		"event":        evt.EventID,
		"execution_id": evt.ExecutionID,
		"phase":        string(evt.Phase),
	}
	logger = casework.LoggerWithFields(casework.NormalizeLogger(logger).WithContext(ctx), fields)

	for idx, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, cloneLifecycleEvent(evt)); err != nil {
			if mode == HookFailureModeFailClosed {
				return casework.NewError(casework.ErrHookFailed, "lifecycle hook failed", err, fields)
			}
			logger.Warn("lifecycle hook failed at index=%d: %v", idx, err)
		}
	}
	return nil
}

func cloneLifecycleEvent(evt LifecycleEvent) LifecycleEvent {
	evt.Metadata = copyMap(evt.Metadata)
	return evt
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
