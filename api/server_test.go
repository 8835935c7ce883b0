package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warroom/config"
	"warroom/core/alerts"
	"warroom/core/analytics"
	"warroom/core/incidents"
	"warroom/core/live"
	"warroom/core/metrics"
	"warroom/core/rbac"
	"warroom/core/store"
	"warroom/core/utils"
)

type testEnv struct {
	server   *Server
	http     *httptest.Server
	hub      *live.Hub
	activity store.ActivityStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "api.db"),
		ListenAddr: "127.0.0.1:0",
		Activity:   config.ActivityConfig{Enabled: true},
		Live:       config.LiveConfig{SubscriberBuffer: 8, RecentFeedSize: 5, PingInterval: time.Second},
	}
	logger := utils.NewNopLogger()
	db, err := store.NewDB(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.ApplyMigrations(context.Background(), db, logger))

	policy, err := rbac.NewPolicy()
	require.NoError(t, err)
	m := metrics.New()
	hub := live.NewHub(cfg.Live.SubscriberBuffer, m, logger)
	recent := live.NewRecentFeed(cfg.Live.RecentFeedSize, 0)
	hub.AddSink(recent)
	activity := store.NewActivityStore(db)

	srv := NewServer(cfg, ServerDeps{
		DB:        db,
		Incidents: incidents.NewService(cfg, store.NewIncidentsStore(db), hub, m, logger),
		Analytics: analytics.NewService(store.NewAnalyticsStore(db), logger),
		Alerts:    alerts.NewService(store.NewAlertsStore(db), logger),
		Hub:       hub,
		Recent:    recent,
		Activity:  activity,
		Policy:    policy,
		Metrics:   m,
	}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &testEnv{server: srv, http: ts, hub: hub, activity: activity}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
	Meta *struct {
		Timestamp string `json:"timestamp"`
	} `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path, role, body string) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rdr)
	require.NoError(t, err)
	if role != "" {
		req.Header.Set(rbac.HeaderRole, role)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"status":"ok","message":"WarRoom server is running"}`, string(body.Data))
	require.NotNil(t, body.Meta)
	_, err := time.Parse(time.RFC3339, body.Meta.Timestamp)
	assert.NoError(t, err)
}

func TestIncidentLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"Database outage","source":"monitoring"}`)
	require.Equal(t, http.StatusCreated, code)
	var created store.Incident
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "critical", created.Severity)
	assert.Equal(t, "open", created.Status)

	path := fmt.Sprintf("/api/incidents/%d", created.ID)
	req, err := http.NewRequest(http.MethodPatch, env.http.URL+path, strings.NewReader(`{"status":"resolved"}`))
	require.NoError(t, err)
	req.Header.Set(rbac.HeaderRole, "admin")
	req.Header.Set("X-Actor", "alice")
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, body = env.do(t, http.MethodPost, path+"/comments", "responder", `{"body":"root cause found"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body = env.do(t, http.MethodGet, path, "viewer", "")
	require.Equal(t, http.StatusOK, code)
	var detail incidents.IncidentDetail
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	assert.Equal(t, "resolved", detail.Status)
	assert.NotNil(t, detail.ResolvedAt)
	require.Len(t, detail.Timeline, 3)
	assert.Equal(t, "created", detail.Timeline[0].Action)
	assert.Equal(t, "status_change", detail.Timeline[1].Action)
	assert.Equal(t, "alice", detail.Timeline[1].Actor)
	assert.Equal(t, "comment", detail.Timeline[2].Action)
	assert.Equal(t, "responder", detail.Timeline[2].Actor)
}

func TestPatchActorFallsBackToRole(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodPost, "/api/incidents", "admin", `{"title":"slow search","source":"user_report"}`)
	var created store.Incident
	require.NoError(t, json.Unmarshal(body.Data, &created))

	code, _ := env.do(t, http.MethodPatch, fmt.Sprintf("/api/incidents/%d", created.ID), "responder", `{"assigned_to":"ops-team"}`)
	require.Equal(t, http.StatusOK, code)

	_, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/incidents/%d", created.ID), "", "")
	var detail incidents.IncidentDetail
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	require.Len(t, detail.Timeline, 2)
	assert.Equal(t, "Assigned to ops-team", detail.Timeline[1].Details)
	assert.Equal(t, "responder", detail.Timeline[1].Actor)
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		method, path, role, body string
		want                     int
	}{
		{http.MethodGet, "/api/incidents", "", "", http.StatusOK},
		{http.MethodPost, "/api/incidents", "viewer", `{"title":"x","source":"automated"}`, http.StatusForbidden},
		{http.MethodPost, "/api/incidents", "intruder", `{"title":"x","source":"automated"}`, http.StatusForbidden},
		{http.MethodGet, "/api/alert-configs", "viewer", "", http.StatusForbidden},
		{http.MethodGet, "/api/alert-configs", "responder", "", http.StatusOK},
		{http.MethodPost, "/api/alert-configs", "responder", `{"name":"a","severity":"high","threshold":1,"window_minutes":5}`, http.StatusForbidden},
		{http.MethodPost, "/api/alert-configs", "admin", `{"name":"a","severity":"high","threshold":1,"window_minutes":5}`, http.StatusCreated},
		{http.MethodGet, "/api/activity", "responder", "", http.StatusForbidden},
		{http.MethodGet, "/api/activity", "admin", "", http.StatusOK},
		{http.MethodGet, "/api/analytics/summary", "viewer", "", http.StatusOK},
		{http.MethodGet, "/api/events/recent", "viewer", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" as "+tc.role, func(t *testing.T) {
			code, body := env.do(t, tc.method, tc.path, tc.role, tc.body)
			assert.Equal(t, tc.want, code)
			if tc.want == http.StatusForbidden {
				require.NotNil(t, body.Error)
				assert.Equal(t, "FORBIDDEN", body.Error.Code)
				assert.Equal(t, fmt.Sprintf("Role '%s' does not have access to this resource", tc.role), body.Error.Message)
				assert.Equal(t, http.StatusForbidden, body.Error.Status)
			}
		})
	}
}

func TestErrorEnvelopes(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/incidents/abc", "viewer", "")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "Invalid incident id", body.Error.Message)
	assert.False(t, body.Success)

	code, body = env.do(t, http.MethodGet, "/api/incidents/999", "viewer", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "INCIDENT_NOT_FOUND", body.Error.Code)
	assert.Equal(t, "Incident with id 999 not found", body.Error.Message)

	code, body = env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "title and source are required", body.Error.Message)

	code, body = env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"x","source":"pager"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "source must be one of: monitoring, user_report, automated, external", body.Error.Message)

	code, body = env.do(t, http.MethodPost, "/api/incidents", "responder", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	code, body = env.do(t, http.MethodPatch, "/api/incidents/999", "responder", `{"status":"open"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "INCIDENT_NOT_FOUND", body.Error.Code)

	code, body = env.do(t, http.MethodGet, "/api/nowhere", "viewer", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestListQueryParameters(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/incidents", "responder", fmt.Sprintf(`{"title":"timeout %d","source":"external"}`, i))
		require.Equal(t, http.StatusCreated, code)
	}
	code, _ := env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"cosmetic glitch","source":"automated"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := env.do(t, http.MethodGet, "/api/incidents?source=external&limit=2&page=2", "viewer", "")
	require.Equal(t, http.StatusOK, code)
	var res incidents.ListResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Len(t, res.Incidents, 1)
	assert.Equal(t, incidents.Pagination{Page: 2, Limit: 2, Total: 3, TotalPages: 2}, res.Pagination)

	_, body = env.do(t, http.MethodGet, "/api/incidents?limit=-4&page=zero", "viewer", "")
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, 1, res.Pagination.Limit)
	assert.Equal(t, 1, res.Pagination.Page)
	assert.Equal(t, 4, res.Pagination.TotalPages)

	_, body = env.do(t, http.MethodGet, "/api/incidents?limit=500", "viewer", "")
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, 100, res.Pagination.Limit)
}

func TestAlertConfigsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/alert-configs", "admin", `{"name":"Critical Spike","severity":"critical","threshold":5,"window_minutes":60}`)
	require.Equal(t, http.StatusCreated, code)
	var cfg store.AlertConfig
	require.NoError(t, json.Unmarshal(body.Data, &cfg))
	assert.True(t, cfg.Enabled)

	code, body = env.do(t, http.MethodPost, "/api/alert-configs", "admin", `{"name":"bad","severity":"high","threshold":0,"window_minutes":60}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "threshold must be greater than 0", body.Error.Message)

	code, body = env.do(t, http.MethodGet, "/api/alert-configs", "responder", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Configs []store.AlertConfig `json:"configs"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Configs, 1)
	assert.Equal(t, "Critical Spike", list.Configs[0].Name)
}

func TestAnalyticsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"Server down","source":"monitoring"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := env.do(t, http.MethodGet, "/api/analytics/summary", "viewer", "")
	require.Equal(t, http.StatusOK, code)
	var sum analytics.Summary
	require.NoError(t, json.Unmarshal(body.Data, &sum))
	assert.Equal(t, 1, sum.TotalIncidents)
	assert.Equal(t, 1, sum.SeverityDistribution["critical"])

	code, body = env.do(t, http.MethodGet, "/api/analytics/timeline?period=1y&granularity=week", "viewer", "")
	require.Equal(t, http.StatusOK, code)
	var tl analytics.TimelineResult
	require.NoError(t, json.Unmarshal(body.Data, &tl))
	assert.Equal(t, analytics.Period7d, tl.Period)
	assert.Equal(t, analytics.GranularityDay, tl.Granularity)
	require.Len(t, tl.Timeline, 1)
	assert.Equal(t, 1, tl.Timeline[0].Critical)
}

func TestRecentEventsFeed(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 7; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/incidents", "responder", fmt.Sprintf(`{"title":"noise %d","source":"automated"}`, i))
		require.Equal(t, http.StatusCreated, code)
	}
	code, body := env.do(t, http.MethodGet, "/api/events/recent", "viewer", "")
	require.Equal(t, http.StatusOK, code)
	var feed struct {
		Events []live.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &feed))
	require.Len(t, feed.Events, 5)
	assert.Equal(t, "noise 6", feed.Events[0].Incident.Title)
	assert.Equal(t, live.EventCreated, feed.Events[0].Type)
}

func TestWebsocketReceivesEvents(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set(rbac.HeaderRole, "viewer")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	code, _ := env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"Payment outage","source":"external"}`)
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev live.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, live.EventCreated, ev.Type)
	assert.Equal(t, "Payment outage", ev.Incident.Title)
	assert.Equal(t, "critical", ev.Incident.Severity)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRequiresKnownRole(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set(rbac.HeaderRole, "guest")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.hub.Count())
}

func TestActivityIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/incidents", "responder", "")

	var entries []store.ActivityEntry
	require.Eventually(t, func() bool {
		var err error
		entries, err = env.activity.ListActivity(context.Background(), 10)
		return err == nil && len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)
	last := entries[0]
	assert.Equal(t, "GET", last.Method)
	assert.Equal(t, "/api/incidents", last.Path)
	assert.Equal(t, http.StatusOK, last.StatusCode)
	assert.Equal(t, "responder", last.Role)
	assert.NotEmpty(t, last.RequestID)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/incidents", "responder", `{"title":"disk full","source":"monitoring"}`)

	resp, err := env.http.Client().Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "warroom_incidents_created_total")
}
