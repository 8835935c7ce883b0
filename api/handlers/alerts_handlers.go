package handlers

import (
	"net/http"

	"warroom/core/alerts"
	"warroom/core/store"
)

type AlertsHandler struct {
	svc *alerts.Service
}

func NewAlertsHandler(svc *alerts.Service) *AlertsHandler {
	return &AlertsHandler{svc: svc}
}

func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	if items == nil {
		items = []store.AlertConfig{}
	}
	OK(w, http.StatusOK, map[string]any{"configs": items})
}

func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in alerts.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		Fail(w, err)
		return
	}
	cfg, err := h.svc.Create(r.Context(), in)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusCreated, cfg)
}
