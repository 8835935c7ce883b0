package handlers

import (
	"net/http"

	"warroom/core/apperr"
	"warroom/core/store"
	"warroom/core/utils"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 500
)

type ActivityHandler struct {
	store  store.ActivityStore
	logger *utils.Logger
}

func NewActivityHandler(st store.ActivityStore, logger *utils.Logger) *ActivityHandler {
	return &ActivityHandler{store: st, logger: logger}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultActivityLimit)
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	items, err := h.store.ListActivity(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("list activity: %v", err)
		Fail(w, apperr.Internal(err))
		return
	}
	if items == nil {
		items = []store.ActivityEntry{}
	}
	OK(w, http.StatusOK, map[string]any{"entries": items})
}
