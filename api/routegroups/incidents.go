package routegroups

import (
	"github.com/go-chi/chi/v5"

	"warroom/api/handlers"
	"warroom/core/rbac"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, incidents *handlers.IncidentsHandler) {
	apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
		incidentsRouter.MethodFunc("GET", "/", g.Perm(rbac.ResourceIncidents, rbac.ActionRead, incidents.List))
		incidentsRouter.MethodFunc("POST", "/", g.Perm(rbac.ResourceIncidents, rbac.ActionWrite, incidents.Create))
		incidentsRouter.MethodFunc("GET", "/{id}", g.Perm(rbac.ResourceIncidents, rbac.ActionRead, incidents.Get))
		incidentsRouter.MethodFunc("PATCH", "/{id}", g.Perm(rbac.ResourceIncidents, rbac.ActionWrite, incidents.Update))
		incidentsRouter.MethodFunc("POST", "/{id}/comments", g.Perm(rbac.ResourceIncidents, rbac.ActionWrite, incidents.AddComment))
	})
}
