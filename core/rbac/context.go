package rbac

import (
	"context"
	"net/http"
	"strings"
)

const HeaderRole = "X-Role"

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// RoleFromRequest reads the caller-supplied role label, defaulting to viewer.
func RoleFromRequest(r *http.Request) string {
	role := strings.TrimSpace(r.Header.Get(HeaderRole))
	if role == "" {
		return string(RoleViewer)
	}
	return role
}
