package routegroups

import (
	"github.com/go-chi/chi/v5"

	"warroom/api/handlers"
	"warroom/core/rbac"
)

func RegisterAnalytics(apiRouter chi.Router, g Guards, analytics *handlers.AnalyticsHandler) {
	apiRouter.Route("/analytics", func(analyticsRouter chi.Router) {
		analyticsRouter.MethodFunc("GET", "/summary", g.Perm(rbac.ResourceAnalytics, rbac.ActionRead, analytics.Summary))
		analyticsRouter.MethodFunc("GET", "/timeline", g.Perm(rbac.ResourceAnalytics, rbac.ActionRead, analytics.Timeline))
	})
}

func RegisterAlertConfigs(apiRouter chi.Router, g Guards, alerts *handlers.AlertsHandler) {
	apiRouter.MethodFunc("GET", "/alert-configs", g.Perm(rbac.ResourceAlerts, rbac.ActionRead, alerts.List))
	apiRouter.MethodFunc("POST", "/alert-configs", g.Perm(rbac.ResourceAlerts, rbac.ActionWrite, alerts.Create))
}

func RegisterLive(apiRouter chi.Router, g Guards, live *handlers.LiveHandler) {
	apiRouter.MethodFunc("GET", "/events/recent", g.Perm(rbac.ResourceEvents, rbac.ActionRead, live.Recent))
	apiRouter.MethodFunc("GET", "/ws", g.Perm(rbac.ResourceEvents, rbac.ActionRead, live.Subscribe))
}

func RegisterActivity(apiRouter chi.Router, g Guards, activity *handlers.ActivityHandler) {
	apiRouter.MethodFunc("GET", "/activity", g.Perm(rbac.ResourceActivity, rbac.ActionRead, activity.List))
}
