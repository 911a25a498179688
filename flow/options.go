package flow

import (
	"time"

	"github.com/goliatone/go-casework"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Executor.
type Option func(*Executor)

// WithStore commits executions through store. Without one, outcomes are returned
// for the caller to persist.
func WithStore(store CaseStore) Option {
	return func(e *Executor) {
		e.store = store
	}
}

// WithHistory records committed executions in store and serves History from it.
func WithHistory(store HistoryStore) Option {
	return func(e *Executor) {
		if store == nil {
			return
		}
		e.history = store
		e.lifecycle = append(e.lifecycle, NewHistoryHook(store))
	}
}

func WithLogger(logger casework.Logger) Option {
	return func(e *Executor) {
		e.logger = casework.NormalizeLogger(logger)
	}
}

func WithMetrics(recorder MetricsRecorder) Option {
	return func(e *Executor) {
		e.metrics = recorder
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithLifecycleHooks appends lifecycle hooks.
func WithLifecycleHooks(hooks ...LifecycleHook) Option {
	return func(e *Executor) {
		e.lifecycle = append(e.lifecycle, hooks...)
	}
}

// WithHookFailureMode sets how lifecycle hook errors are handled.
func WithHookFailureMode(mode HookFailureMode) Option {
	return func(e *Executor) {
		e.hookFailureMode = normalizeHookFailureMode(mode)
	}
}

// WithClock overrides the execution timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides execution id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}
