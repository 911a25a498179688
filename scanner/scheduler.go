package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/goliatone/go-casework"
)

// Scheduler runs jobs on cron expressions.
type Scheduler struct {
	mu        sync.Mutex
	cron      *rcron.Cron
	location  *time.Location
	seconds   bool
	verbose   bool
	logger    casework.Logger
	onFailure func(error)
	timeout   time.Duration
	entries   []rcron.EntryID
	running   bool
}

// NewScheduler creates a scheduler with the provided options.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		location: time.UTC,
		logger:   casework.NewFmtLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.onFailure == nil {
		logger := s.logger
		s.onFailure = func(err error) {
			logger.Error("sweep failed: %v", err)
		}
	}
	s.cron = rcron.New(s.build()...)
	return s
}

// Schedule registers job on expr. Each run gets its own context, bounded by the
// job timeout when one is set.
func (s *Scheduler) Schedule(expr string, job func(ctx context.Context) error) (rcron.EntryID, error) {
	if expr == "" {
		return 0, fmt.Errorf("cron expression cannot be empty")
	}
	if job == nil {
		return 0, fmt.Errorf("job cannot be nil")
	}
	id, err := s.cron.AddFunc(expr, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if err := job(ctx); err != nil {
			s.onFailure(err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add job %q: %w", expr, err)
	}
	s.mu.Lock()
	s.entries = append(s.entries, id)
	s.mu.Unlock()
	return id, nil
}

// Next reports when entry id runs next.
func (s *Scheduler) Next(id rcron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) build() []rcron.Option {
	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if s.seconds {
		fields |= rcron.Second
	}
	log := cronBridge{logger: s.logger, verbose: s.verbose}
	return []rcron.Option{
		rcron.WithLocation(s.location),
		rcron.WithParser(rcron.NewParser(fields)),
		rcron.WithLogger(log),
		rcron.WithChain(
			rcron.Recover(cronBridge{logger: s.logger, fail: s.onFailure}),
			rcron.SkipIfStillRunning(log),
		),
	}
}

// ScheduleSweeps runs scanner.Sweep on expr and logs each report.
func ScheduleSweeps(s *Scheduler, scanner *Scanner, expr string) (rcron.EntryID, error) {
	if s == nil || scanner == nil {
		return 0, fmt.Errorf("scheduler and scanner required")
	}
	return s.Schedule(expr, func(ctx context.Context) error {
		report, err := scanner.Sweep(ctx)
		scanner.logger.Info("sweep done: %d due, %d progressed, %d skipped, %d failed",
			report.Due, report.Progressed, report.Skipped, report.Failed)
		return err
	})
}
