package scanner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/events"
	"github.com/goliatone/go-casework/flow"
	"github.com/goliatone/go-casework/platform"
)

var sweepNow = time.Date(2025, 8, 20, 2, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *platform.MemoryStore, c casework.Case) {
	t.Helper()
	_, err := store.SaveIfVersion(context.Background(), c, 0)
	require.NoError(t, err)
}

func newScanner(t *testing.T, store *platform.MemoryStore) *Scanner {
	t.Helper()
	registry, perms, err := events.New(events.Deps{})
	require.NoError(t, err)
	exec, err := flow.New(registry, perms, flow.WithStore(store))
	require.NoError(t, err)
	s, err := New(store, exec, "", WithClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)
	return s
}

func TestSweepProgressesDueCases(t *testing.T) {
	store := platform.NewMemoryStore()
	base := platform.FirstCaseID
	seed(t, store, casework.Case{ID: base, Stage: casework.StageHolding,
		Data: casework.CaseData{DueDate: sweepNow.Add(-24 * time.Hour)}})
	seed(t, store, casework.Case{ID: base + 1, Stage: casework.StageAwaitingAos,
		Data: casework.CaseData{DueDate: sweepNow.Add(-48 * time.Hour)}})
	seed(t, store, casework.Case{ID: base + 2, Stage: casework.StageHolding,
		Data: casework.CaseData{DueDate: sweepNow.Add(72 * time.Hour)}})
	seed(t, store, casework.Case{ID: base + 3, Stage: casework.StageDraft,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})

	report, err := newScanner(t, store).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Due)
	assert.Equal(t, 2, report.Progressed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	held, err := store.Load(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingConditionalOrder, held.Stage)
	assert.True(t, held.Data.DueDate.IsZero())

	overdue, err := store.Load(context.Background(), base+1)
	require.NoError(t, err)
	assert.Equal(t, casework.StageAosOverdue, overdue.Stage)

	future, err := store.Load(context.Background(), base+2)
	require.NoError(t, err)
	assert.Equal(t, casework.StageHolding, future.Stage)
	assert.Equal(t, 1, future.Version)
}

func TestSweepSkipsCasesTheGuardRefuses(t *testing.T) {
	store := platform.NewMemoryStore()
	seed(t, store, casework.Case{ID: platform.FirstCaseID, Stage: casework.StageConditionalOrderPronounced,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})

	report, err := newScanner(t, store).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Progressed)

	c, err := store.Load(context.Background(), platform.FirstCaseID)
	require.NoError(t, err)
	assert.Equal(t, casework.StageConditionalOrderPronounced, c.Stage)
}

func TestSweepRunsAsSystemActor(t *testing.T) {
	store := platform.NewMemoryStore()
	seed(t, store, casework.Case{ID: platform.FirstCaseID, Stage: casework.StageHolding,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})

	exec := &recordingExecutor{}
	s, err := New(store, exec, "cron-bot", WithClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)
	_, err = s.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, exec.invocations, 1)
	inv := exec.invocations[0]
	assert.Equal(t, "system-progress-held-case", inv.EventID)
	assert.Equal(t, casework.Actor{ID: "cron-bot", Role: casework.RoleSystemUpdate}, inv.Actor)
	assert.Equal(t, sweepNow, inv.RequestedAt)
}

func TestSweepJoinsUnexpectedFailures(t *testing.T) {
	store := platform.NewMemoryStore()
	seed(t, store, casework.Case{ID: platform.FirstCaseID, Stage: casework.StageHolding,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})
	seed(t, store, casework.Case{ID: platform.FirstCaseID + 1, Stage: casework.StageAwaitingAos,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})

	boom := errors.New("store offline")
	exec := &recordingExecutor{err: boom}
	s, err := New(store, exec, "system", WithClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)

	report, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, report.Failed)
}

func TestSweepReportsSourceErrors(t *testing.T) {
	s, err := New(failingSource{}, &recordingExecutor{}, "system")
	require.NoError(t, err)
	_, err = s.Sweep(context.Background())
	assert.ErrorContains(t, err, "list due cases")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, &recordingExecutor{}, "system")
	assert.Error(t, err)
	_, err = New(platform.NewMemoryStore(), nil, "system")
	assert.Error(t, err)
}

func TestSchedulerRunsSweeps(t *testing.T) {
	store := platform.NewMemoryStore()
	seed(t, store, casework.Case{ID: platform.FirstCaseID, Stage: casework.StageHolding,
		Data: casework.CaseData{DueDate: sweepNow.Add(-time.Hour)}})

	ran := make(chan flow.Invocation, 4)
	exec := &recordingExecutor{seen: ran}
	sc, err := New(store, exec, "system", WithClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)

	sched := NewScheduler(WithSeconds())
	id, err := ScheduleSweeps(sched, sc, "* * * * * *")
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	assert.False(t, sched.Next(id).IsZero())

	select {
	case inv := <-ran:
		assert.Equal(t, "system-progress-held-case", inv.EventID)
	case <-time.After(3 * time.Second):
		t.Fatal("sweep did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))
}

func TestSchedulerRejectsBadExpressions(t *testing.T) {
	sched := NewScheduler()
	_, err := sched.Schedule("", func(context.Context) error { return nil })
	assert.Error(t, err)
	_, err = sched.Schedule("not a schedule", func(context.Context) error { return nil })
	assert.Error(t, err)
	_, err = sched.Schedule("0 2 * * *", nil)
	assert.Error(t, err)
	_, err = sched.Schedule("0 2 * * *", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestSchedulerRecoversPanickingJobs(t *testing.T) {
	failures := make(chan error, 4)
	sched := NewScheduler(
		WithSeconds(),
		OnFailure(func(err error) { failures <- err }),
	)
	_, err := sched.Schedule("* * * * * *", func(context.Context) error { panic("sweep exploded") })
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	defer func() { _ = sched.Stop(context.Background()) }()

	select {
	case err := <-failures:
		assert.Contains(t, err.Error(), "sweep exploded")
	case <-time.After(3 * time.Second):
		t.Fatal("panic was not reported")
	}
}

type recordingExecutor struct {
	invocations []flow.Invocation
	seen        chan flow.Invocation
	err         error
}

func (r *recordingExecutor) Execute(_ context.Context, inv flow.Invocation) (*flow.Outcome, error) {
	r.invocations = append(r.invocations, inv)
	if r.seen != nil {
		select {
		case r.seen <- inv:
		default:
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &flow.Outcome{EventID: inv.EventID, CaseID: inv.Case.ID, Stage: inv.Case.Stage}, nil
}

type failingSource struct{}

func (failingSource) DueCases(context.Context, time.Time) ([]casework.Case, error) {
	return nil, errors.New("db closed")
}

func TestCronBridgeRoutesRecoveredPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := casework.NewFmtLogger(&buf)

	var got error
	cronBridge{logger: logger, fail: func(err error) { got = err }}.Error(errors.New("boom"), "panic")
	require.Error(t, got)
	assert.Empty(t, buf.String())

	quiet := cronBridge{logger: logger}
	quiet.Info("skip", "entry", 1)
	assert.Empty(t, buf.String())
	quiet.Error(nil, "skip", "entry", 1)
	assert.Contains(t, buf.String(), "sweeper: skip")

	buf.Reset()
	cronBridge{logger: logger, verbose: true}.Info("start")
	assert.Contains(t, buf.String(), "DEBUG")
}
