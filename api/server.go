package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"warroom/api/handlers"
	"warroom/api/routegroups"
	"warroom/config"
	"warroom/core/alerts"
	"warroom/core/analytics"
	"warroom/core/apperr"
	"warroom/core/incidents"
	"warroom/core/live"
	"warroom/core/metrics"
	"warroom/core/rbac"
	"warroom/core/store"
	"warroom/core/utils"
)

const metricsPath = "/metrics"

// BackgroundWorker is started with the server and stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	DB        Pinger
	Incidents *incidents.Service
	Analytics *analytics.Service
	Alerts    *alerts.Service
	Hub       *live.Hub
	Recent    *live.RecentFeed
	Activity  store.ActivityStore
	Policy    *rbac.Policy
	Metrics   *metrics.Metrics
	Workers   []BackgroundWorker
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	cfg        *config.AppConfig
	policy     *rbac.Policy
	activity   store.ActivityStore
	metrics    *metrics.Metrics
	hub        *live.Hub
	logger     *utils.Logger
	workers    []BackgroundWorker
	router     chi.Router
	httpServer *http.Server

	workersMu      sync.Mutex
	workersStarted bool
	stopped        bool
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		policy:   deps.Policy,
		activity: deps.Activity,
		metrics:  deps.Metrics,
		hub:      deps.Hub,
		logger:   logger,
		workers:  deps.Workers,
	}
	s.router = s.routes(deps)
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(deps ServerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.requestIDMiddleware)
	r.Use(s.activityMiddleware)

	if deps.Metrics != nil {
		r.Method("GET", metricsPath, deps.Metrics.Handler())
	}
	health := handlers.NewHealthHandler(deps.DB)
	r.MethodFunc("GET", "/api/health", health.Health)

	g := routegroups.Guards{RequirePermission: s.requirePermission}
	r.Route("/api", func(apiRouter chi.Router) {
		routegroups.RegisterIncidents(apiRouter, g, handlers.NewIncidentsHandler(deps.Incidents, s.logger))
		routegroups.RegisterAnalytics(apiRouter, g, handlers.NewAnalyticsHandler(deps.Analytics))
		routegroups.RegisterAlertConfigs(apiRouter, g, handlers.NewAlertsHandler(deps.Alerts))
		routegroups.RegisterLive(apiRouter, g, handlers.NewLiveHandler(s.cfg.Live, deps.Hub, deps.Recent, s.logger))
		routegroups.RegisterActivity(apiRouter, g, handlers.NewActivityHandler(deps.Activity, s.logger))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.Fail(w, apperr.NotFound(apperr.CodeNotFound, "Route "+r.Method+" "+r.URL.Path+" not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.Fail(w, apperr.NotFound(apperr.CodeNotFound, "Route "+r.Method+" "+r.URL.Path+" not found"))
	})
	return r
}

func (s *Server) startWorkers(ctx context.Context) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if s.workersStarted || s.stopped {
		return
	}
	for _, w := range s.workers {
		w.StartWithContext(ctx)
	}
	s.workersStarted = true
}

func (s *Server) stopWorkers(ctx context.Context) error {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	s.stopped = true
	if !s.workersStarted {
		return nil
	}
	var errs []error
	for i := len(s.workers) - 1; i >= 0; i-- {
		if err := s.workers[i].StopWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.workersStarted = false
	return errors.Join(errs...)
}

// Start runs background workers and blocks serving HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.startWorkers(ctx)
	s.logger.Printf("WarRoom server listening on %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes live subscriptions first so websocket handlers return,
// then drains HTTP and stops workers in reverse start order.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	httpErr := s.httpServer.Shutdown(ctx)
	workerErr := s.stopWorkers(ctx)
	return errors.Join(httpErr, workerErr)
}
