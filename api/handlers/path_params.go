package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"warroom/core/apperr"
)

func urlParam(r *http.Request, key string) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if v := rc.URLParam(key); v != "" {
			return v
		}
	}
	// Direct handler tests run without a chi route context.
	segments := strings.Split(strings.Trim(strings.TrimSpace(r.URL.Path), "/"), "/")
	return paramAfter(segments, "incidents")
}

func paramAfter(segments []string, marker string) string {
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == marker && strings.TrimSpace(segments[i+1]) != "" {
			return segments[i+1]
		}
	}
	return ""
}

func incidentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(urlParam(r, "id")), 10, 64)
	if err != nil {
		return 0, apperr.Validation("Invalid incident id")
	}
	return id, nil
}

// queryInt returns fallback when the parameter is missing or not a number.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
