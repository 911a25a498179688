package casework

import (
	"fmt"
	"strings"
)

// Stage is one value of the closed case lifecycle enumeration.
type Stage string

const (
	StageNone Stage = ""

	StageDraft                         Stage = "Draft"
	StageNewPaperCase                  Stage = "NewPaperCase"
	StageAwaitingApplicant1Response    Stage = "AwaitingApplicant1Response"
	StageAwaitingApplicant2Response    Stage = "AwaitingApplicant2Response"
	StageApplicant2Approved            Stage = "Applicant2Approved"
	StageAwaitingPayment               Stage = "AwaitingPayment"
	StageAwaitingHWFDecision           Stage = "AwaitingHWFDecision"
	StageAwaitingHWFEvidence           Stage = "AwaitingHWFEvidence"
	StageAwaitingHWFPartPayment        Stage = "AwaitingHWFPartPayment"
	StageAwaitingDocuments             Stage = "AwaitingDocuments"
	StageAwaitingResponseToHWFDecision Stage = "AwaitingResponseToHWFDecision"
	StageWelshTranslationReview        Stage = "WelshTranslationReview"
	StageWelshTranslationRequested     Stage = "WelshTranslationRequested"
	StageSubmitted                     Stage = "Submitted"
	StageAwaitingService               Stage = "AwaitingService"
	StageAwaitingAos                   Stage = "AwaitingAos"
	StageAosDrafted                    Stage = "AosDrafted"
	StageAosOverdue                    Stage = "AosOverdue"
	StageAwaitingAnswer                Stage = "AwaitingAnswer"
	StageAwaitingDwpResponse           Stage = "AwaitingDwpResponse"
	StageAwaitingAlternativeService    Stage = "AwaitingAlternativeService"
	StageAwaitingServiceConsideration  Stage = "AwaitingServiceConsideration"
	StageAwaitingServicePayment        Stage = "AwaitingServicePayment"
	StageServiceAdminRefusal           Stage = "ServiceAdminRefusal"
	StageAwaitingBailiffReferral       Stage = "AwaitingBailiffReferral"
	StageAwaitingBailiffService        Stage = "AwaitingBailiffService"
	StageIssuedToBailiff               Stage = "IssuedToBailiff"
	StageHolding                       Stage = "Holding"
	StageAwaitingConditionalOrder      Stage = "AwaitingConditionalOrder"
	StageConditionalOrderDrafted       Stage = "ConditionalOrderDrafted"
	StageConditionalOrderPending       Stage = "ConditionalOrderPending"
	StageAwaitingLegalAdvisorReferral  Stage = "AwaitingLegalAdvisorReferral"
	StageLAReview                      Stage = "LAReview"
	StageConditionalOrderReview        Stage = "ConditionalOrderReview"
	StageAwaitingClarification         Stage = "AwaitingClarification"
	StageClarificationSubmitted        Stage = "ClarificationSubmitted"
	StageAwaitingAdminClarification    Stage = "AwaitingAdminClarification"
	StageAwaitingJudgeClarification    Stage = "AwaitingJudgeClarification"
	StageAwaitingAmendedApplication    Stage = "AwaitingAmendedApplication"
	StageAwaitingPronouncement         Stage = "AwaitingPronouncement"
	StageConditionalOrderPronounced    Stage = "ConditionalOrderPronounced"
	StageConditionalOrderRefused       Stage = "ConditionalOrderRefused"
	StageAwaitingFinalOrder            Stage = "AwaitingFinalOrder"
	StageAwaitingFinalOrderPayment     Stage = "AwaitingFinalOrderPayment"
	StageAwaitingJointFinalOrder       Stage = "AwaitingJointFinalOrder"
	StageFinalOrderRequested           Stage = "FinalOrderRequested"
	StageRespondentFinalOrderRequested Stage = "RespondentFinalOrderRequested"
	StageFinalOrderPending             Stage = "FinalOrderPending"
	StageFinalOrderOverdue             Stage = "FinalOrderOverdue"
	StageFinalOrderComplete            Stage = "FinalOrderComplete"
	StageAwaitingGeneralReferralPay    Stage = "AwaitingGeneralReferralPayment"
	StageAwaitingGeneralConsideration  Stage = "AwaitingGeneralConsideration"
	StageGeneralConsiderationComplete  Stage = "GeneralConsiderationComplete"
	StageGeneralApplicationReceived    Stage = "GeneralApplicationReceived"
	StageAwaitingRequestedInformation  Stage = "AwaitingRequestedInformation"
	StageInformationRequested          Stage = "InformationRequested"
	StageRequestedInfoSubmitted        Stage = "RequestedInformationSubmitted"
	StagePendingHearingOutcome         Stage = "PendingHearingOutcome"
	StagePendingHearingDate            Stage = "PendingHearingDate"
	StageJSAwaitingLA                  Stage = "JSAwaitingLA"
	StageAwaitingJsNullity             Stage = "AwaitingJsNullity"
	StageSeparationOrderGranted        Stage = "SeparationOrderGranted"
	StageOfflineDocumentReceived       Stage = "OfflineDocumentReceived"
	StageBulkCaseReject                Stage = "BulkCaseReject"
	StageRejected                      Stage = "Rejected"
	StageWithdrawn                     Stage = "Withdrawn"
	StageArchived                      Stage = "Archived"
)

var allStages = []Stage{
	StageDraft,
	StageNewPaperCase,
	StageAwaitingApplicant1Response,
	StageAwaitingApplicant2Response,
	StageApplicant2Approved,
	StageAwaitingPayment,
	StageAwaitingHWFDecision,
	StageAwaitingHWFEvidence,
	StageAwaitingHWFPartPayment,
	StageAwaitingDocuments,
	StageAwaitingResponseToHWFDecision,
	StageWelshTranslationReview,
	StageWelshTranslationRequested,
	StageSubmitted,
	StageAwaitingService,
	StageAwaitingAos,
	StageAosDrafted,
	StageAosOverdue,
	StageAwaitingAnswer,
	StageAwaitingDwpResponse,
	StageAwaitingAlternativeService,
	StageAwaitingServiceConsideration,
	StageAwaitingServicePayment,
	StageServiceAdminRefusal,
	StageAwaitingBailiffReferral,
	StageAwaitingBailiffService,
	StageIssuedToBailiff,
	StageHolding,
	StageAwaitingConditionalOrder,
	StageConditionalOrderDrafted,
	StageConditionalOrderPending,
	StageAwaitingLegalAdvisorReferral,
	StageLAReview,
	StageConditionalOrderReview,
	StageAwaitingClarification,
	StageClarificationSubmitted,
	StageAwaitingAdminClarification,
	StageAwaitingJudgeClarification,
	StageAwaitingAmendedApplication,
	StageAwaitingPronouncement,
	StageConditionalOrderPronounced,
	StageConditionalOrderRefused,
	StageAwaitingFinalOrder,
	StageAwaitingFinalOrderPayment,
	StageAwaitingJointFinalOrder,
	StageFinalOrderRequested,
	StageRespondentFinalOrderRequested,
	StageFinalOrderPending,
	StageFinalOrderOverdue,
	StageFinalOrderComplete,
	StageAwaitingGeneralReferralPay,
	StageAwaitingGeneralConsideration,
	StageGeneralConsiderationComplete,
	StageGeneralApplicationReceived,
	StageAwaitingRequestedInformation,
	StageInformationRequested,
	StageRequestedInfoSubmitted,
	StagePendingHearingOutcome,
	StagePendingHearingDate,
	StageJSAwaitingLA,
	StageAwaitingJsNullity,
	StageSeparationOrderGranted,
	StageOfflineDocumentReceived,
	StageBulkCaseReject,
	StageRejected,
	StageWithdrawn,
	StageArchived,
}

var stageIndex = func() map[Stage]struct{} {
	idx := make(map[Stage]struct{}, len(allStages))
	for _, s := range allStages {
		idx[s] = struct{}{}
	}
	return idx
}()

// AllStages returns a copy of the stage enumeration in lifecycle order.
func AllStages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// ParseStage resolves a stage name, rejecting values outside the enumeration.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.TrimSpace(name))
	if !s.Valid() {
		return StageNone, fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}

// Valid reports whether s is a member of the enumeration.
func (s Stage) Valid() bool {
	_, ok := stageIndex[s]
	return ok
}

// IsTerminal reports whether s is absorbing.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageWithdrawn, StageRejected, StageFinalOrderComplete, StageArchived, StageSeparationOrderGranted:
		return true
	default:
		return false
	}
}

func (s Stage) String() string { return string(s) }
