package flow

import (
	"context"
	"strings"

	"github.com/goliatone/go-casework"
)

// Request is the transport-neutral execution request.
type Request struct {
	EventID      string             `json:"event_id"`
	CaseID       int64              `json:"case_id"`
	ActorID      string             `json:"actor_id,omitempty"`
	ActorRole    string             `json:"actor_role"`
	CurrentStage string             `json:"current_stage,omitempty"`
	Version      int                `json:"version,omitempty"`
	Payload      *casework.CaseData `json:"payload,omitempty"`
}

// Response carries either the committed stage and data or display errors.
type Response struct {
	CaseID   int64              `json:"case_id,omitempty"`
	Stage    casework.Stage     `json:"stage,omitempty"`
	Data     *casework.CaseData `json:"data,omitempty"`
	Errors   []string           `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Error    *RPCErrorEnvelope  `json:"error,omitempty"`
}

// OK reports whether the request committed.
func (r Response) OK() bool {
	return len(r.Errors) == 0 && r.Error == nil
}

// Handle runs req and renders the outcome for callers. When a store is configured the
// stored case is authoritative for the current stage and data before the event.
func (e *Executor) Handle(ctx context.Context, req Request) Response {
	role, err := casework.ParseRole(req.ActorRole)
	if err != nil {
		return errorResponse(casework.NewError(casework.ErrForbidden, "", err, map[string]any{"reason": "unknown_role"}))
	}

	current := casework.Case{ID: req.CaseID, Version: req.Version}
	if stage := strings.TrimSpace(req.CurrentStage); stage != "" {
		parsed, perr := casework.ParseStage(stage)
		if perr != nil {
			return errorResponse(casework.NewError(casework.ErrInvalidStageForEvent, perr.Error(), nil, nil))
		}
		current.Stage = parsed
	}
	if req.Payload != nil {
		current.Data = req.Payload.Clone()
	}
	if e.store != nil && req.CaseID != 0 {
		loaded, lerr := e.store.Load(ctx, req.CaseID)
		if lerr != nil {
			return errorResponse(lerr)
		}
		if loaded == nil {
			return errorResponse(casework.NewError(casework.ErrCaseNotFound, "", nil, map[string]any{"case_id": req.CaseID}))
		}
		current = *loaded
	}

	out, err := e.Execute(ctx, Invocation{
		EventID: req.EventID,
		Actor:   casework.Actor{ID: req.ActorID, Role: role},
		Case:    current,
		Payload: req.Payload,
	})
	if err != nil {
		return errorResponse(err)
	}
	data := out.Data.Clone()
	resp := Response{CaseID: out.CaseID, Stage: out.Stage, Data: &data}
	for _, w := range out.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	return resp
}

func errorResponse(err error) Response {
	return Response{
		Errors: casework.DisplayMessages(err),
		Error:  RPCErrorForError(err),
	}
}
