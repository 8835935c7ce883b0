package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warroom/config"
	"warroom/core/rbac"
	"warroom/core/utils"
)

func newBareServer(t *testing.T) *Server {
	t.Helper()
	policy, err := rbac.NewPolicy()
	require.NoError(t, err)
	return &Server{cfg: &config.AppConfig{}, policy: policy, logger: utils.NewNopLogger()}
}

func TestRequirePermissionDeniesMissingPermission(t *testing.T) {
	s := newBareServer(t)
	called := false
	handler := s.requirePermission(rbac.ResourceAlerts, rbac.ActionWrite)(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest(http.MethodPost, "/api/alert-configs", nil)
	req.Header.Set(rbac.HeaderRole, "responder")
	rr := httptest.NewRecorder()
	handler(rr, req)
	assert.False(t, called)
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Status  int    `json:"status"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
	assert.Equal(t, "Role 'responder' does not have access to this resource", body.Error.Message)
	assert.Equal(t, http.StatusForbidden, body.Error.Status)
}

func TestRequirePermissionStoresRole(t *testing.T) {
	s := newBareServer(t)
	var seen string
	handler := s.requirePermission(rbac.ResourceIncidents, rbac.ActionRead)(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.RoleFromContext(r.Context())
	})
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "viewer", seen)
}

func TestRecoverMiddlewareReturnsInternalError(t *testing.T) {
	s := newBareServer(t)
	h := s.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"INTERNAL_ERROR"`)
	assert.Contains(t, rr.Body.String(), "internal server error")
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newBareServer(t)
	var seen string
	h := s.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rr.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "upstream-1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "upstream-1", seen)
}

func TestActivityMiddlewareWithoutStore(t *testing.T) {
	s := newBareServer(t)
	h := s.activityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestStatusRecorderHijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := rec.Hijack()
	assert.Error(t, err)
}
