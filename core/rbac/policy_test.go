package rbac

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyMatrix(t *testing.T) {
	p, err := NewPolicy()
	require.NoError(t, err)

	cases := []struct {
		role     string
		resource Resource
		action   Action
		want     bool
	}{
		{"viewer", ResourceIncidents, ActionRead, true},
		{"viewer", ResourceAnalytics, ActionRead, true},
		{"viewer", ResourceEvents, ActionRead, true},
		{"viewer", ResourceIncidents, ActionWrite, false},
		{"viewer", ResourceAlerts, ActionRead, false},
		{"responder", ResourceIncidents, ActionRead, true},
		{"responder", ResourceIncidents, ActionWrite, true},
		{"responder", ResourceAlerts, ActionRead, true},
		{"responder", ResourceAlerts, ActionWrite, false},
		{"admin", ResourceAlerts, ActionWrite, true},
		{"admin", ResourceIncidents, ActionWrite, true},
		{"admin", ResourceActivity, ActionRead, true},
		{"responder", ResourceActivity, ActionRead, false},
		{"root", ResourceIncidents, ActionRead, false},
		{"", ResourceIncidents, ActionRead, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.Allowed(tc.role, tc.resource, tc.action), "%s %s %s", tc.role, tc.action, tc.resource)
	}
}

func TestNilPolicyDenies(t *testing.T) {
	var p *Policy
	assert.False(t, p.Allowed("admin", ResourceIncidents, ActionRead))
}

func TestRoleFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/incidents", nil)
	assert.Equal(t, "viewer", RoleFromRequest(r))
	r.Header.Set("X-Role", " admin ")
	assert.Equal(t, "admin", RoleFromRequest(r))

	ctx := WithRole(context.Background(), "responder")
	assert.Equal(t, "responder", RoleFromContext(ctx))
	assert.Equal(t, "", RoleFromContext(context.Background()))
}
