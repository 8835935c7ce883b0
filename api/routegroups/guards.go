package routegroups

import (
	"net/http"

	"warroom/core/rbac"
)

type Guards struct {
	RequirePermission func(rbac.Resource, rbac.Action) func(http.HandlerFunc) http.HandlerFunc
}

func (g Guards) Perm(res rbac.Resource, act rbac.Action, h http.HandlerFunc) http.HandlerFunc {
	return g.RequirePermission(res, act)(h)
}
