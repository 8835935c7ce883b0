package appbootstrap

import (
	"database/sql"

	"warroom/api"
	"warroom/config"
	"warroom/core/alerts"
	"warroom/core/analytics"
	"warroom/core/incidents"
	"warroom/core/live"
	"warroom/core/maintenance"
	"warroom/core/metrics"
	"warroom/core/rbac"
	"warroom/core/store"
	"warroom/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	hub        *live.Hub
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	m := metrics.New()
	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}

	hub := live.NewHub(cfg.Live.SubscriberBuffer, m, logger.With("component", "live"))
	recent := live.NewRecentFeed(cfg.Live.RecentFeedSize, cfg.Live.RecentFeedTTL)
	hub.AddSink(recent)
	workers := []api.BackgroundWorker{recent}
	if cfg.AMQPEnabled() {
		sink := live.NewAMQPSink(cfg.AMQP, m, logger.With("component", "amqp"))
		hub.AddSink(sink)
		workers = append(workers, sink)
	}

	incidentsStore := store.NewIncidentsStore(db)
	analyticsStore := store.NewAnalyticsStore(db)
	alertsStore := store.NewAlertsStore(db)
	activityStore := store.NewActivityStore(db)

	incidentsSvc := incidents.NewService(cfg, incidentsStore, hub, m, logger.With("component", "incidents"))
	analyticsSvc := analytics.NewService(analyticsStore, logger.With("component", "analytics"))
	alertsSvc := alerts.NewService(alertsStore, logger.With("component", "alerts"))

	if cfg.Activity.Enabled {
		workers = append(workers, maintenance.NewScheduler(cfg.Scheduler, cfg.Activity.Retention, activityStore, logger.With("component", "maintenance")))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			DB:        db,
			Incidents: incidentsSvc,
			Analytics: analyticsSvc,
			Alerts:    alertsSvc,
			Hub:       hub,
			Recent:    recent,
			Activity:  activityStore,
			Policy:    policy,
			Metrics:   m,
			Workers:   workers,
		},
		hub:     hub,
		workers: workers,
	}, nil
}
