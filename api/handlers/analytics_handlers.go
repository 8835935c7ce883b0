package handlers

import (
	"net/http"

	"warroom/core/analytics"
)

type AnalyticsHandler struct {
	svc *analytics.Service
}

func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusOK, sum)
}

func (h *AnalyticsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Timeline(r.Context(), analytics.ParsePeriod(q.Get("period")), analytics.ParseGranularity(q.Get("granularity")))
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, http.StatusOK, res)
}
