package handlers

import (
	"net/http"
	"strings"

	"warroom/core/incidents"
	"warroom/core/rbac"
	"warroom/core/utils"
)

const headerActor = "X-Actor"

type IncidentsHandler struct {
	svc    *incidents.Service
	logger *utils.Logger
}

func NewIncidentsHandler(svc *incidents.Service, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{svc: svc, logger: logger}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.List(r.Context(), incidents.ListQuery{
		Severity: strings.TrimSpace(q.Get("severity")),
		Status:   strings.TrimSpace(q.Get("status")),
		Source:   strings.TrimSpace(q.Get("source")),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
		Page:     queryInt(r, "page", 1),
		Limit:    listLimit(r),
	})
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusOK, res)
}

// listLimit keeps zero as "use the default" and floors negatives at one.
func listLimit(r *http.Request) int {
	limit := queryInt(r, "limit", 0)
	if limit < 0 {
		return 1
	}
	return limit
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := incidentID(r)
	if err != nil {
		Fail(w, err)
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusOK, detail)
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in incidents.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		Fail(w, err)
		return
	}
	inc, err := h.svc.Create(r.Context(), in)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusCreated, inc)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := incidentID(r)
	if err != nil {
		Fail(w, err)
		return
	}
	var in incidents.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		Fail(w, err)
		return
	}
	inc, err := h.svc.Update(r.Context(), id, in, actorFromRequest(r))
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusOK, inc)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *IncidentsHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := incidentID(r)
	if err != nil {
		Fail(w, err)
		return
	}
	var in commentRequest
	if err := decodeJSON(r, &in); err != nil {
		Fail(w, err)
		return
	}
	ev, err := h.svc.AddComment(r.Context(), id, in.Body, actorFromRequest(r))
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusCreated, ev)
}

func actorFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(headerActor)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get(rbac.HeaderRole)); v != "" {
		return v
	}
	return incidents.SystemActor
}
