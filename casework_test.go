package casework

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" AwaitingAos ")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingAos, s)

	_, err = ParseStage("Teleported")
	assert.Error(t, err)

	_, err = ParseStage("")
	assert.Error(t, err)
	assert.False(t, StageNone.Valid())
}

func TestAllStagesAreUniqueAndValid(t *testing.T) {
	seen := map[Stage]bool{}
	for _, s := range AllStages() {
		assert.True(t, s.Valid(), s)
		assert.False(t, seen[s], "duplicate stage %s", s)
		seen[s] = true
	}

	stages := AllStages()
	stages[0] = "Mutated"
	assert.Equal(t, StageDraft, AllStages()[0])
}

func TestTerminalStages(t *testing.T) {
	for _, s := range []Stage{StageWithdrawn, StageRejected, StageFinalOrderComplete, StageArchived} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, StageHolding.IsTerminal())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("case_worker")
	require.NoError(t, err)
	assert.Equal(t, RoleCaseworker, r)

	_, err = ParseRole("janitor")
	assert.Error(t, err)
	assert.Len(t, Roles(), 10)
}

func TestCaseDataCloneSharesNothing(t *testing.T) {
	orig := CaseData{
		Applicant1: Applicant{
			Address:   Address{Lines: []string{"1 High St"}},
			Solicitor: &Solicitor{Name: "Pat", Address: Address{Lines: []string{"Chambers"}}},
		},
		Application:        Application{DocumentsAwaited: []string{"marriage-certificate"}},
		ConditionalOrder:   ConditionalOrder{ClarificationReasons: []string{"names"}},
		AlternativeService: &AlternativeService{Type: ServiceBailiff, Bailiff: &Bailiff{Served: false}},
		ServiceOutcomes:    []ServiceOutcome{{Type: ServiceDeemed}},
		GeneralReferral:    &GeneralReferral{Reason: "urgent"},
		ReferralHistory:    []GeneralReferral{{Reason: "old"}},
		Documents:          []Document{{ID: "d1"}},
		Notes:              []Note{{Text: "n1"}},
		Flags:              map[string]bool{"paperCase": true},
	}
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Applicant1.Address.Lines[0] = "x"
	cp.Applicant1.Solicitor.Name = "x"
	cp.Applicant1.Solicitor.Address.Lines[0] = "x"
	cp.Application.DocumentsAwaited[0] = "x"
	cp.ConditionalOrder.ClarificationReasons[0] = "x"
	cp.AlternativeService.Bailiff.Served = true
	cp.ServiceOutcomes[0].Reason = "x"
	cp.GeneralReferral.Reason = "x"
	cp.ReferralHistory[0].Reason = "x"
	cp.Documents[0].ID = "x"
	cp.Notes[0].Text = "x"
	cp.Flags["paperCase"] = false

	assert.Equal(t, "1 High St", orig.Applicant1.Address.Lines[0])
	assert.Equal(t, "Pat", orig.Applicant1.Solicitor.Name)
	assert.Equal(t, "Chambers", orig.Applicant1.Solicitor.Address.Lines[0])
	assert.Equal(t, "marriage-certificate", orig.Application.DocumentsAwaited[0])
	assert.Equal(t, "names", orig.ConditionalOrder.ClarificationReasons[0])
	assert.False(t, orig.AlternativeService.Bailiff.Served)
	assert.Empty(t, orig.ServiceOutcomes[0].Reason)
	assert.Equal(t, "urgent", orig.GeneralReferral.Reason)
	assert.Equal(t, "old", orig.ReferralHistory[0].Reason)
	assert.Equal(t, "d1", orig.Documents[0].ID)
	assert.Equal(t, "n1", orig.Notes[0].Text)
	assert.True(t, orig.Flags["paperCase"])
}

func TestApplicantHelpers(t *testing.T) {
	a := Applicant{FirstName: " Sam ", LastName: "Jones", Email: "sam@example.com", Language: Welsh}
	assert.Equal(t, "Sam Jones", a.FullName())
	assert.Equal(t, "sam@example.com", a.NotificationEmail())
	assert.Equal(t, Welsh, a.PreferredLanguage())
	assert.False(t, a.Represented())

	a.Solicitor = &Solicitor{Email: " sol@example.com "}
	assert.Equal(t, "sol@example.com", a.NotificationEmail())
	assert.True(t, a.Represented())
	assert.Equal(t, English, Applicant{}.PreferredLanguage())
}

func TestCaseDataDefaults(t *testing.T) {
	var d CaseData
	assert.True(t, d.IsSole())
	assert.True(t, d.IsDivorce())
	d.ApplicationType = JointApplication
	d.DivorceOrDissolution = Dissolution
	assert.False(t, d.IsSole())
	assert.False(t, d.IsDivorce())
}

func TestTransitionCloneIsolatesSnapshots(t *testing.T) {
	tr := Transition{
		Data:   CaseData{Notes: []Note{{Text: "a"}}},
		Before: CaseData{Notes: []Note{{Text: "a"}}},
		At:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	cp := tr.Clone()
	cp.Data.Notes[0].Text = "b"
	cp.Before.Notes[0].Text = "b"
	assert.Equal(t, "a", tr.Data.Notes[0].Text)
	assert.Equal(t, "a", tr.Before.Notes[0].Text)

	moved := tr.WithCandidate(StageHolding)
	assert.Equal(t, StageHolding, moved.Candidate)
	assert.Equal(t, StageNone, tr.Candidate)
}

func TestErrorCodes(t *testing.T) {
	err := NewError(ErrVersionConflict, "", nil, map[string]any{"case_id": 1})
	assert.Equal(t, ErrCodeVersionConflict, ErrorCode(err))
	assert.True(t, HasCode(fmt.Errorf("wrapped: %w", err), ErrCodeVersionConflict))
	assert.False(t, HasCode(nil, ErrCodeVersionConflict))
	assert.Empty(t, ErrorCode(errors.New("plain")))

	hook := NewError(nil, "broke", nil, nil)
	assert.Equal(t, ErrCodeHookFailed, ErrorCode(hook))
	assert.Equal(t, "broke", hook.Message)

	assert.Equal(t, "case was updated concurrently", ErrVersionConflict.Message)
}

func TestDisplayMessages(t *testing.T) {
	fields := FieldErrors{
		{Field: "applicant1.firstName", Message: "Enter the applicant's first name."},
		{Message: "Confirm the statement of truth."},
	}
	validation := NewValidationError(fields)
	assert.Equal(t, []string{"Enter the applicant's first name.", "Confirm the statement of truth."}, DisplayMessages(validation))
	assert.Equal(t, fields, FieldErrorsOf(validation))

	assert.Equal(t, []string{MessageForbidden},
		DisplayMessages(NewError(ErrForbidden, "role JUDGE holds history only", nil, nil)))
	assert.Equal(t, []string{MessageUnknownEvent},
		DisplayMessages(NewError(ErrUnknownEvent, "no-such-event", nil, nil)))
	assert.Equal(t, []string{"No service application to reject."},
		DisplayMessages(NewGuardError("No service application to reject.")))
	assert.Equal(t, []string{"plain"}, DisplayMessages(errors.New("plain")))
	assert.Nil(t, DisplayMessages(nil))
	assert.Nil(t, FieldErrorsOf(errors.New("plain")))
}

func TestFmtLoggerFormatsArgsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFmtLogger(&buf)
	LoggerWithFields(logger, map[string]any{"case_id": 7, "event": "e"}).Info("moved to %s", StageHolding)

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "moved to Holding")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "case_id=7 event=e"))
	assert.Contains(t, line, "casework: moved to Holding")
	assert.NotNil(t, NormalizeLogger(nil))
}

func TestFmtLoggerLeadsWithCaseKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFmtLogger(&buf).
		WithFields(map[string]any{"actor": "cw1", "event": "issue"}).(FieldsLogger).
		WithFields(map[string]any{"case_id": 9, "reason": "no fee paid", "event": "reissue"})
	logger.Warn("rejected")

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, `rejected case_id=9 event=reissue actor=cw1 reason="no fee paid"`), line)
	assert.Equal(t, 1, strings.Count(line, "event="))
}
