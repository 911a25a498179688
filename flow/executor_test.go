package flow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/permission"
	"github.com/goliatone/go-casework/registry"
)

const executorCatalogue = `
role_groups:
  court_admin: [CASE_WORKER, SUPER_USER]
events:
  - id: create
    creates: true
    to: Draft
    commit: [stamp]
    grants: {CREATOR: CRU}
  - id: submit
    from: [Draft]
    guards: [not-blocked]
    validate: [first-name, last-name]
    commit: [route]
    committed: [announce]
    grants: {CREATOR: CRU, court_admin: CRU, JUDGE: H, LEGAL_ADVISOR: R}
  - id: issue
    from: [Submitted, AwaitingPayment]
    to: AwaitingAos
    commit: [route]
    grants: {court_admin: CRU}
  - id: decide
    from: [AwaitingAos]
    resolve: decide
    grants: {court_admin: CRU}
  - id: explode
    from: [Draft]
    commit: [explode]
    grants: {court_admin: CRU}
  - id: note
    from: ["*"]
    grants: {court_admin: CRU, JUDGE: H}
`

var errCodedRefusal = casework.NewGuardError("Coded refusal.")

var (
	testNow  = time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)
	creator  = casework.Actor{ID: "a1", Role: casework.RoleCreator}
	worker   = casework.Actor{ID: "cw1", Role: casework.RoleCaseworker}
	judge    = casework.Actor{ID: "j1", Role: casework.RoleJudge}
	advisor  = casework.Actor{ID: "la1", Role: casework.RoleLegalAdvisor}
	stranger = casework.Actor{ID: "x", Role: casework.RoleApplicant2}
)

func testHooks(t *testing.T) *registry.Hooks {
	t.Helper()
	h := registry.NewHooks()
	require.NoError(t, h.RegisterCommit("stamp", func(_ context.Context, tr casework.Transition) (casework.Transition, error) {
		if tr.Data.Flags == nil {
			tr.Data.Flags = map[string]bool{}
		}
		tr.Data.Flags["created"] = true
		return tr, nil
	}))
	require.NoError(t, h.RegisterGuard("not-blocked", func(_ context.Context, tr casework.Transition) error {
		switch tr.Data.Applicant1.FirstName {
		case "blocked":
			return errors.New("Applicant is blocked.")
		case "coded":
			return errCodedRefusal
		}
		return nil
	}))
	require.NoError(t, h.RegisterValidator("first-name", func(_ context.Context, tr casework.Transition) casework.FieldErrors {
		if tr.Data.Applicant1.FirstName == "" {
			return casework.FieldErrors{{Field: "applicant1.firstName", Message: "Enter the first name."}}
		}
		return nil
	}))
	require.NoError(t, h.RegisterValidator("last-name", func(_ context.Context, tr casework.Transition) casework.FieldErrors {
		if tr.Data.Applicant1.LastName == "" {
			return casework.FieldErrors{{Field: "applicant1.lastName", Message: "Enter the last name."}}
		}
		return nil
	}))
	require.NoError(t, h.RegisterCommit("route", func(_ context.Context, tr casework.Transition) (casework.Transition, error) {
		tr.Data.Application.PaymentReference = "RC-1"
		if tr.Data.Application.PaymentMethod == casework.PayByHelpWithFee {
			return tr.WithCandidate(casework.StageAwaitingHWFDecision), nil
		}
		return tr.WithCandidate(casework.StageAwaitingPayment), nil
	}))
	require.NoError(t, h.RegisterResolver("decide", func(_ context.Context, tr casework.Transition) (casework.Stage, error) {
		switch tr.Data.Application.RejectionReason {
		case "holding":
			return casework.StageHolding, nil
		case "bogus":
			return casework.Stage("Bogus"), nil
		}
		return casework.StageNone, nil
	}))
	require.NoError(t, h.RegisterCommit("explode", func(context.Context, casework.Transition) (casework.Transition, error) {
		panic("boom")
	}))
	require.NoError(t, h.RegisterCommitted("announce", func(_ context.Context, tr casework.Transition) error {
		if tr.Data.Flags["failNotify"] {
			return errors.New("smtp down")
		}
		return nil
	}))
	return h
}

func compileTestCatalogue(t *testing.T) (*registry.Registry, *permission.Table) {
	t.Helper()
	cat, err := registry.ParseCatalogue([]byte(executorCatalogue))
	require.NoError(t, err)
	reg, perms, err := registry.Compile(cat, testHooks(t))
	require.NoError(t, err)
	return reg, perms
}

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	reg, perms := compileTestCatalogue(t)
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithLogger(casework.NewFmtLogger(io.Discard)),
	}
	exec, err := New(reg, perms, append(base, opts...)...)
	require.NoError(t, err)
	return exec
}

func draftCase() casework.Case {
	return casework.Case{
		ID:      42,
		Stage:   casework.StageDraft,
		Version: 3,
		Data: casework.CaseData{
			Applicant1: casework.Applicant{FirstName: "Sam", LastName: "Jones"},
			Notes:      []casework.Note{{Text: "keep"}},
		},
	}
}

func TestNewRequiresRegistryAndPermissions(t *testing.T) {
	reg, perms := compileTestCatalogue(t)
	_, err := New(nil, perms)
	assert.Error(t, err)
	_, err = New(reg, nil)
	assert.Error(t, err)
}

func TestExecuteCommitsCandidateFromCommitHook(t *testing.T) {
	exec := newTestExecutor(t)
	c := draftCase()

	out, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: c})
	require.NoError(t, err)
	assert.Equal(t, casework.StageDraft, out.PreviousStage)
	assert.Equal(t, casework.StageAwaitingPayment, out.Stage)
	assert.Equal(t, 4, out.Version)
	assert.Equal(t, "RC-1", out.Data.Application.PaymentReference)
	assert.NotEmpty(t, out.ExecutionID)
	assert.Empty(t, out.Warnings)

	assert.Empty(t, c.Data.Application.PaymentReference)
	out.Data.Notes[0].Text = "changed"
	assert.Equal(t, "keep", c.Data.Notes[0].Text)

	hwf := draftCase()
	hwf.Data.Application.PaymentMethod = casework.PayByHelpWithFee
	out, err = exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: hwf})
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingHWFDecision, out.Stage)
}

func TestFixedTargetWinsOverCandidate(t *testing.T) {
	exec := newTestExecutor(t)
	c := casework.Case{ID: 1, Stage: casework.StageSubmitted, Version: 1}
	out, err := exec.Execute(context.Background(), Invocation{EventID: "issue", Actor: worker, Case: c})
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingAos, out.Stage)
	assert.Equal(t, "RC-1", out.Data.Application.PaymentReference)
}

func TestResolverChoosesTarget(t *testing.T) {
	exec := newTestExecutor(t)
	c := casework.Case{ID: 1, Stage: casework.StageAwaitingAos, Version: 1}

	out, err := exec.Execute(context.Background(), Invocation{EventID: "decide", Actor: worker, Case: c})
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingAos, out.Stage, "empty resolution keeps the stage")

	c.Data.Application.RejectionReason = "holding"
	out, err = exec.Execute(context.Background(), Invocation{EventID: "decide", Actor: worker, Case: c})
	require.NoError(t, err)
	assert.Equal(t, casework.StageHolding, out.Stage)

	c.Data.Application.RejectionReason = "bogus"
	_, err = exec.Execute(context.Background(), Invocation{EventID: "decide", Actor: worker, Case: c})
	assert.Equal(t, casework.ErrCodeHookFailed, casework.ErrorCode(err))
}

func TestRejections(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	cases := []struct {
		name string
		inv  Invocation
		code string
	}{
		{"unknown event", Invocation{EventID: "fly", Actor: worker, Case: draftCase()}, casework.ErrCodeUnknownEvent},
		{"blank event", Invocation{EventID: " ", Actor: worker, Case: draftCase()}, casework.ErrCodeUnknownEvent},
		{"missing role", Invocation{EventID: "submit", Case: draftCase()}, casework.ErrCodeForbidden},
		{"no grant", Invocation{EventID: "submit", Actor: stranger, Case: draftCase()}, casework.ErrCodeForbidden},
		{"history only", Invocation{EventID: "submit", Actor: judge, Case: draftCase()}, casework.ErrCodeForbidden},
		{"read only", Invocation{EventID: "submit", Actor: advisor, Case: draftCase()}, casework.ErrCodeForbidden},
		{"wrong stage", Invocation{EventID: "issue", Actor: worker, Case: draftCase()}, casework.ErrCodeInvalidStageForEvent},
		{"create on existing", Invocation{EventID: "create", Actor: creator, Case: draftCase()}, casework.ErrCodeInvalidStageForEvent},
		{"unknown stage", Invocation{EventID: "note", Actor: worker, Case: casework.Case{Stage: "Limbo"}}, casework.ErrCodeInvalidStageForEvent},
		{"wildcard on new case", Invocation{EventID: "note", Actor: worker, Case: casework.Case{}}, casework.ErrCodeInvalidStageForEvent},
		{"unknown event on unknown stage", Invocation{EventID: "fly", Actor: worker, Case: casework.Case{Stage: "Limbo"}}, casework.ErrCodeUnknownEvent},
		{"no grant on unknown stage", Invocation{EventID: "note", Actor: stranger, Case: casework.Case{Stage: "Limbo"}}, casework.ErrCodeForbidden},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.inv.Case.Clone()
			out, err := exec.Execute(ctx, tt.inv)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.code, casework.ErrorCode(err))
			assert.Equal(t, before, tt.inv.Case)
		})
	}
}

func TestForbiddenIsCheckedBeforeStage(t *testing.T) {
	exec := newTestExecutor(t)
	c := casework.Case{ID: 1, Stage: casework.StageHolding}
	_, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: judge, Case: c})
	assert.Equal(t, casework.ErrCodeForbidden, casework.ErrorCode(err))
	assert.Equal(t, []string{casework.MessageForbidden}, casework.DisplayMessages(err))
}

func TestGuardFailures(t *testing.T) {
	exec := newTestExecutor(t)

	blocked := draftCase()
	blocked.Data.Applicant1.FirstName = "blocked"
	_, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: blocked})
	assert.Equal(t, casework.ErrCodeGuardFailed, casework.ErrorCode(err))
	assert.Equal(t, []string{"Applicant is blocked."}, casework.DisplayMessages(err))

	coded := draftCase()
	coded.Data.Applicant1.FirstName = "coded"
	_, err = exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: coded})
	assert.Same(t, errCodedRefusal, err)
}

func TestValidatorsAccumulateAndRepeat(t *testing.T) {
	exec := newTestExecutor(t)
	c := draftCase()
	c.Data.Applicant1 = casework.Applicant{}

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: c})
		require.Error(t, err)
		assert.Equal(t, casework.ErrCodeValidationFailed, casework.ErrorCode(err))
		assert.Equal(t, []string{"Enter the first name.", "Enter the last name."}, casework.DisplayMessages(err))
	}
}

func TestPayloadReplacesCaseData(t *testing.T) {
	exec := newTestExecutor(t)
	c := draftCase()
	c.Data.Applicant1 = casework.Applicant{}
	payload := &casework.CaseData{Applicant1: casework.Applicant{FirstName: "Ada", LastName: "Lovelace"}}

	out, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: c, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Data.Applicant1.FirstName)
	assert.Empty(t, payload.Application.PaymentReference)
}

func TestHookPanicBecomesHookFailure(t *testing.T) {
	exec := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), Invocation{EventID: "explode", Actor: worker, Case: draftCase()})
	require.Error(t, err)
	assert.Equal(t, casework.ErrCodeHookFailed, casework.ErrorCode(err))
	assert.ErrorContains(t, err, "panicked")
}

func TestCommittedHookFailureIsWarning(t *testing.T) {
	exec := newTestExecutor(t)
	c := draftCase()
	c.Data.Flags = map[string]bool{"failNotify": true}

	out, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: c})
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingPayment, out.Stage)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, casework.ErrCodeNotificationDeliveryFailed, casework.ErrorCode(out.Warnings[0]))
}

func TestRequestedAtIsHookTime(t *testing.T) {
	var seen time.Time
	hooks := registry.NewHooks()
	require.NoError(t, hooks.RegisterCommit("capture", func(_ context.Context, tr casework.Transition) (casework.Transition, error) {
		seen = tr.At
		return tr, nil
	}))
	cat, err := registry.ParseCatalogue([]byte("events:\n  - {id: tick, from: ['*'], commit: [capture], grants: {CASE_WORKER: CRU}}"))
	require.NoError(t, err)
	events, perms, err := registry.Compile(cat, hooks)
	require.NoError(t, err)
	exec, err := New(events, perms, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), Invocation{EventID: "tick", Actor: worker, Case: draftCase()})
	require.NoError(t, err)
	assert.Equal(t, testNow, seen)

	at := testNow.Add(-48 * time.Hour)
	_, err = exec.Execute(context.Background(), Invocation{EventID: "tick", Actor: worker, Case: draftCase(), RequestedAt: at})
	require.NoError(t, err)
	assert.Equal(t, at, seen)
}

type fakeStore struct {
	mu      sync.Mutex
	cases   map[int64]casework.Case
	nextID  int64
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{cases: map[int64]casework.Case{}, nextID: 100}
}

func (s *fakeStore) Load(_ context.Context, id int64) (*casework.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, nil
	}
	c = c.Clone()
	return &c, nil
}

func (s *fakeStore) SaveIfVersion(_ context.Context, c casework.Case, expected int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	if s.cases[c.ID].Version != expected {
		return 0, casework.NewError(casework.ErrVersionConflict, "", nil, nil)
	}
	c.Version = expected + 1
	s.cases[c.ID] = c.Clone()
	return c.Version, nil
}

func (s *fakeStore) NextID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func TestStoreBackedRun(t *testing.T) {
	store := newFakeStore()
	history := NewMemoryHistory()
	exec := newTestExecutor(t, WithStore(store), WithHistory(history))
	ctx := context.Background()

	created, err := exec.Run(ctx, "create", 0, creator, &casework.CaseData{
		Applicant1: casework.Applicant{FirstName: "Sam", LastName: "Jones"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), created.CaseID)
	assert.Equal(t, 1, created.Version)
	assert.True(t, created.Data.Flags["created"])

	submitted, err := exec.Run(ctx, "submit", created.CaseID, creator, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, submitted.Version)

	stored, err := store.Load(ctx, created.CaseID)
	require.NoError(t, err)
	assert.Equal(t, casework.StageAwaitingPayment, stored.Stage)
	assert.Equal(t, 2, stored.Version)

	_, err = exec.Run(ctx, "submit", 999, creator, nil)
	assert.Equal(t, casework.ErrCodeCaseNotFound, casework.ErrorCode(err))

	entries, err := exec.History(ctx, created.CaseID, casework.RoleCreator)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "create", entries[0].EventID)
	assert.Equal(t, casework.StageNone, entries[0].PreviousStage)
	assert.Equal(t, casework.StageDraft, entries[0].Stage)
	assert.Equal(t, "submit", entries[1].EventID)
	assert.Equal(t, casework.StageAwaitingPayment, entries[1].Stage)
	assert.Equal(t, creator, entries[1].Actor)

	judgeView, err := exec.History(ctx, created.CaseID, casework.RoleJudge)
	require.NoError(t, err)
	require.Len(t, judgeView, 1)
	assert.Equal(t, "submit", judgeView[0].EventID)

	_, err = exec.History(ctx, created.CaseID, casework.RoleApplicant2)
	assert.Equal(t, casework.ErrCodeForbidden, casework.ErrorCode(err))
}

func TestViewIsGatedOnPermissions(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, WithStore(store), WithHistory(NewMemoryHistory()))
	ctx := context.Background()

	created, err := exec.Run(ctx, "create", 0, creator, &casework.CaseData{
		Applicant1: casework.Applicant{FirstName: "Sam", LastName: "Jones"},
	})
	require.NoError(t, err)
	submitted, err := exec.Run(ctx, "submit", created.CaseID, creator, nil)
	require.NoError(t, err)
	c, err := store.Load(ctx, submitted.CaseID)
	require.NoError(t, err)

	assert.NoError(t, exec.View(ctx, *c, casework.RoleCaseworker), "read access from the stage")
	assert.NoError(t, exec.View(ctx, *c, casework.RoleCreator), "visible history entries")
	assert.NoError(t, exec.View(ctx, *c, casework.RoleJudge), "history-only grant on submit")

	err = exec.View(ctx, *c, casework.RoleApplicant2)
	assert.Equal(t, casework.ErrCodeForbidden, casework.ErrorCode(err))

	bare := newTestExecutor(t)
	err = bare.View(ctx, *c, casework.RoleCreator)
	assert.Equal(t, casework.ErrCodeForbidden, casework.ErrorCode(err))
}

func TestStaleVersionConflicts(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, WithStore(store))
	ctx := context.Background()

	c := draftCase()
	c.Version = 0
	_, err := store.SaveIfVersion(ctx, c, 0)
	require.NoError(t, err)

	stale := draftCase()
	stale.Version = 0
	_, err = exec.Execute(ctx, Invocation{EventID: "submit", Actor: creator, Case: stale})
	assert.Equal(t, casework.ErrCodeVersionConflict, casework.ErrorCode(err))

	stored, _ := store.Load(ctx, c.ID)
	assert.Equal(t, casework.StageDraft, stored.Stage)
}

func TestStoreFailureIsCommitFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	exec := newTestExecutor(t, WithStore(store))

	_, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: draftCase()})
	assert.Equal(t, casework.ErrCodeCommitFailed, casework.ErrorCode(err))
	assert.ErrorContains(t, err, "disk full")
}

func TestRunWithoutStore(t *testing.T) {
	exec := newTestExecutor(t)
	_, err := exec.Run(context.Background(), "submit", 1, creator, nil)
	assert.Error(t, err)
	_, err = exec.History(context.Background(), 1, casework.RoleCreator)
	assert.Error(t, err)
}

func TestAllowedEvents(t *testing.T) {
	exec := newTestExecutor(t)
	assert.Equal(t, []string{"submit", "explode", "note"}, exec.Allowed(draftCase(), casework.RoleCaseworker))
	assert.Equal(t, []string{"submit"}, exec.Allowed(draftCase(), casework.RoleCreator))
	assert.Empty(t, exec.Allowed(draftCase(), casework.RoleJudge))
	assert.Equal(t, []string{"create"}, exec.Allowed(casework.Case{}, casework.RoleCreator))
}

func TestLifecycleHooks(t *testing.T) {
	var (
		mu     sync.Mutex
		phases []Phase
		last   LifecycleEvent
	)
	hook := LifecycleHookFunc(func(_ context.Context, evt LifecycleEvent) error {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, evt.Phase)
		last = evt
		return nil
	})
	exec := newTestExecutor(t, WithLifecycleHooks(hook), WithIDGenerator(func() string { return "exec-1" }))

	_, err := exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: draftCase()})
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseAttempted, PhaseCommitted}, phases)
	assert.Equal(t, "exec-1", last.ExecutionID)
	assert.Equal(t, casework.StageDraft, last.PreviousStage)
	assert.Equal(t, casework.StageAwaitingPayment, last.Stage)
	assert.Equal(t, 4, last.Version)

	phases = nil
	bad := draftCase()
	bad.Data.Applicant1.FirstName = ""
	_, err = exec.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: bad})
	require.Error(t, err)
	assert.Equal(t, []Phase{PhaseAttempted, PhaseRejected}, phases)
	assert.Equal(t, casework.ErrCodeValidationFailed, last.ErrorCode)
	assert.Equal(t, casework.ErrCodeValidationFailed, last.Metadata["error_code"])
}

func TestLifecycleFailureModes(t *testing.T) {
	failing := LifecycleHookFunc(func(_ context.Context, evt LifecycleEvent) error {
		if evt.Phase == PhaseAttempted {
			return errors.New("audit sink down")
		}
		return nil
	})

	open := newTestExecutor(t, WithLifecycleHooks(failing))
	_, err := open.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: draftCase()})
	assert.NoError(t, err)

	closed := newTestExecutor(t, WithLifecycleHooks(failing), WithHookFailureMode(" FAIL_CLOSED "))
	_, err = closed.Execute(context.Background(), Invocation{EventID: "submit", Actor: creator, Case: draftCase()})
	assert.Equal(t, casework.ErrCodeHookFailed, casework.ErrorCode(err))
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	exec := newTestExecutor(t, WithMetrics(metrics))
	ctx := context.Background()

	_, err := exec.Execute(ctx, Invocation{EventID: "submit", Actor: creator, Case: draftCase()})
	require.NoError(t, err)
	_, err = exec.Execute(ctx, Invocation{EventID: "submit", Actor: judge, Case: draftCase()})
	require.Error(t, err)
	_, err = exec.Execute(ctx, Invocation{EventID: "fly", Actor: judge, Case: draftCase()})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Executions.WithLabelValues("submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures.WithLabelValues("submit", casework.ErrCodeForbidden)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures.WithLabelValues("unknown", casework.ErrCodeUnknownEvent)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Duration))

	var nilMetrics *Metrics
	nilMetrics.RecordSuccess("submit")
}

func TestHandleRendersResponses(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, WithStore(store))
	ctx := context.Background()

	resp := exec.Handle(ctx, Request{EventID: "create", ActorRole: "creator", ActorID: "a1",
		Payload: &casework.CaseData{Applicant1: casework.Applicant{FirstName: "Sam", LastName: "Jones"}}})
	require.True(t, resp.OK(), resp.Errors)
	assert.Equal(t, casework.StageDraft, resp.Stage)
	caseID := resp.CaseID

	resp = exec.Handle(ctx, Request{EventID: "submit", CaseID: caseID, ActorRole: "CREATOR", CurrentStage: "Holding"})
	require.True(t, resp.OK(), resp.Errors)
	assert.Equal(t, casework.StageAwaitingPayment, resp.Stage, "stored stage is authoritative")

	resp = exec.Handle(ctx, Request{EventID: "submit", CaseID: caseID, ActorRole: "wizard"})
	assert.False(t, resp.OK())
	assert.Equal(t, []string{casework.MessageForbidden}, resp.Errors)
	assert.Equal(t, casework.ErrCodeForbidden, resp.Error.Code)

	resp = exec.Handle(ctx, Request{EventID: "submit", CaseID: 12345, ActorRole: "CREATOR"})
	assert.Equal(t, casework.ErrCodeCaseNotFound, resp.Error.Code)

	stateless := newTestExecutor(t)
	resp = stateless.Handle(ctx, Request{EventID: "submit", CaseID: 7, ActorRole: "CREATOR", CurrentStage: "Nowhere"})
	assert.Equal(t, casework.ErrCodeInvalidStageForEvent, resp.Error.Code)

	resp = stateless.Handle(ctx, Request{EventID: "submit", CaseID: 7, ActorRole: "CREATOR", CurrentStage: "Draft", Version: 5,
		Payload: &casework.CaseData{}})
	assert.Equal(t, []string{"Enter the first name.", "Enter the last name."}, resp.Errors)
}
