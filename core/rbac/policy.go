package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Role string

const (
	RoleViewer    Role = "viewer"
	RoleResponder Role = "responder"
	RoleAdmin     Role = "admin"
)

type Resource string

const (
	ResourceIncidents Resource = "incidents"
	ResourceAnalytics Resource = "analytics"
	ResourceEvents    Resource = "events"
	ResourceAlerts    Resource = "alerts"
	ResourceActivity  Resource = "activity"
)

type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var permissions = [][]string{
	{string(RoleViewer), string(ResourceIncidents), string(ActionRead)},
	{string(RoleViewer), string(ResourceAnalytics), string(ActionRead)},
	{string(RoleViewer), string(ResourceEvents), string(ActionRead)},
	{string(RoleResponder), string(ResourceIncidents), string(ActionWrite)},
	{string(RoleResponder), string(ResourceAlerts), string(ActionRead)},
	{string(RoleAdmin), string(ResourceAlerts), string(ActionWrite)},
	{string(RoleAdmin), string(ResourceActivity), string(ActionRead)},
}

// responder inherits viewer, admin inherits responder
var inheritance = [][]string{
	{string(RoleResponder), string(RoleViewer)},
	{string(RoleAdmin), string(RoleResponder)},
}

type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	if _, err := e.AddPolicies(permissions); err != nil {
		return nil, fmt.Errorf("rbac policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(inheritance); err != nil {
		return nil, fmt.Errorf("rbac roles: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

func KnownRole(role string) bool {
	switch Role(role) {
	case RoleViewer, RoleResponder, RoleAdmin:
		return true
	}
	return false
}

// Allowed reports whether role may perform action on resource. Unknown roles
// are always denied.
func (p *Policy) Allowed(role string, resource Resource, action Action) bool {
	if p == nil || !KnownRole(role) {
		return false
	}
	ok, err := p.enforcer.Enforce(role, string(resource), string(action))
	return err == nil && ok
}
