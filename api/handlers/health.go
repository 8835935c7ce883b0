package handlers

import (
	"context"
	"net/http"

	"warroom/core/apperr"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			Fail(w, apperr.Internal(err))
			return
		}
	}
	OK(w, http.StatusOK, map[string]string{"status": "ok", "message": "WarRoom server is running"})
}
