package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"warroom/api/handlers"
	"warroom/core/apperr"
	"warroom/core/rbac"
	"warroom/core/store"
)

const headerRequestID = "X-Request-ID"

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, string(debug.Stack()))
				handlers.Fail(w, apperr.Internal(nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.Must(uuid.NewV4()).String()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// activityMiddleware logs every response, feeds request metrics and appends
// an activity_log row when the activity log is enabled.
func (s *Server) activityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		role := rbac.RoleFromRequest(r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		s.logger.Printf("RESP %s %s role=%s status=%d dur=%s bytes=%d", r.Method, r.URL.Path, role, rec.status, elapsed, rec.size)

		if s.activity == nil || !s.cfg.Activity.Enabled || route == metricsPath {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
		defer cancel()
		err := s.activity.LogActivity(ctx, &store.ActivityEntry{
			RequestID:  requestIDFromContext(r.Context()),
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: rec.status,
			DurationMS: elapsed.Milliseconds(),
			Role:       role,
			CreatedAt:  start.UTC(),
		})
		if err != nil {
			s.logger.Warnf("activity log %s %s: %v", r.Method, r.URL.Path, err)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) requirePermission(res rbac.Resource, act rbac.Action) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			role := rbac.RoleFromRequest(r)
			if !s.policy.Allowed(role, res, act) {
				s.logger.Debugf("role %q denied %s:%s on %s %s", role, res, act, r.Method, r.URL.Path)
				handlers.Fail(w, apperr.Forbidden("Role '"+role+"' does not have access to this resource"))
				return
			}
			next(w, r.WithContext(rbac.WithRole(r.Context(), role)))
		}
	}
}
