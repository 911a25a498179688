package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/flow"
	"github.com/goliatone/go-casework/registry"
)

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/events", a.handleEvent)
	r.Route("/cases/{id}", func(r chi.Router) {
		r.Get("/", a.handleCase)
		r.Get("/allowed", a.handleAllowed)
		r.Get("/history", a.handleHistory)
		r.Get("/deliveries", a.handleDeliveries)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return r
}

func (a *app) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req flow.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, flow.Response{Errors: []string{"request body is not valid JSON"}})
		return
	}
	resp := a.executor.Handle(r.Context(), req)
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusUnprocessableEntity
		if resp.Error != nil {
			status = flow.HTTPStatusForCode(resp.Error.Code)
		}
	}
	writeJSON(w, status, resp)
}

// caseRole reads the case id path value and the role query parameter.
func caseRole(w http.ResponseWriter, r *http.Request) (int64, casework.Role, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, flow.Response{Errors: []string{"case id must be numeric"}})
		return 0, "", false
	}
	role, err := casework.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, casework.NewError(casework.ErrForbidden, "", err, nil))
		return 0, "", false
	}
	return id, role, true
}

func (a *app) loadCase(w http.ResponseWriter, r *http.Request, id int64) (*casework.Case, bool) {
	c, err := a.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if c == nil {
		writeError(w, casework.NewError(casework.ErrCaseNotFound, "", nil, map[string]any{"case_id": id}))
		return nil, false
	}
	return c, true
}

func (a *app) handleCase(w http.ResponseWriter, r *http.Request) {
	id, role, ok := caseRole(w, r)
	if !ok {
		return
	}
	c, ok := a.loadCase(w, r, id)
	if !ok {
		return
	}
	if err := a.executor.View(r.Context(), *c, role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *app) handleAllowed(w http.ResponseWriter, r *http.Request) {
	id, role, ok := caseRole(w, r)
	if !ok {
		return
	}
	c, ok := a.loadCase(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case_id": id,
		"stage":   c.Stage,
		"events":  a.executor.Allowed(*c, role),
	})
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, role, ok := caseRole(w, r)
	if !ok {
		return
	}
	entries, err := a.executor.History(r.Context(), id, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *app) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	id, role, ok := caseRole(w, r)
	if !ok {
		return
	}
	if role != casework.RoleCaseworker && role != casework.RoleSuperUser {
		writeError(w, casework.NewError(casework.ErrForbidden, "", nil, map[string]any{"reason": "deliveries"}))
		return
	}
	deliveries, err := a.gateway.Deliveries(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, flow.HTTPStatusForError(err), flow.Response{
		Errors: casework.DisplayMessages(err),
		Error:  flow.RPCErrorForError(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// describeTarget renders where an event leads for the events listing.
func describeTarget(evt *registry.Event) string {
	switch {
	case evt == nil:
		return ""
	case evt.To != casework.StageNone:
		return "-> " + string(evt.To)
	case evt.Resolve != nil:
		return "-> (" + evt.Resolve.Name + ")"
	default:
		return "-> (unchanged)"
	}
}
