package scanner

import (
	"fmt"
	"time"

	"github.com/goliatone/go-casework"
)

// Option configures a Scanner.
type Option func(*Scanner)

// WithRules replaces the stage to event mapping.
func WithRules(rules map[casework.Stage]string) Option {
	return func(s *Scanner) {
		if len(rules) > 0 {
			s.rules = rules
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger casework.Logger) Option {
	return func(s *Scanner) {
		s.logger = casework.NormalizeLogger(logger)
	}
}

// WithClock overrides the sweep clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// InZone evaluates sweep expressions in loc, normally the court's policy zone.
func InZone(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSeconds accepts six-field expressions with a leading seconds column.
func WithSeconds() SchedulerOption {
	return func(s *Scheduler) { s.seconds = true }
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger casework.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = casework.NormalizeLogger(logger)
	}
}

// Verbose forwards cron's start, stop and skip notices at debug level.
func Verbose() SchedulerOption {
	return func(s *Scheduler) { s.verbose = true }
}

// OnFailure receives failed sweeps and recovered panics instead of the logger.
func OnFailure(fn func(error)) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.onFailure = fn
		}
	}
}

// WithJobTimeout bounds each scheduled run.
func WithJobTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = timeout }
}

// cronBridge speaks cron's logger interface. With fail set, errors go there
// and nothing is logged, which is how recovered panics reach OnFailure.
type cronBridge struct {
	logger  casework.Logger
	verbose bool
	fail    func(error)
}

func (b cronBridge) Info(msg string, kv ...any) {
	if b.verbose && b.fail == nil {
		b.logger.Debug("sweeper: %s %v", msg, kv)
	}
}

func (b cronBridge) Error(err error, msg string, kv ...any) {
	if err == nil {
		err = fmt.Errorf("%s %v", msg, kv)
	}
	if b.fail != nil {
		b.fail(err)
		return
	}
	b.logger.Error("sweeper: %s: %v", msg, err)
}
