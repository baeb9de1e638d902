// Package middleware provides HTTP middleware for the storefront
package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	traceIDKey  contextKey = "trace_id"
)

// Identity is the signed-in visitor attached to a request.
type Identity struct {
	UserID int64
	Role   string
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity extracts the signed-in identity from ctx.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != 0
}

// DeniedFunc responds to a request rejected by an access guard.
type DeniedFunc func(w http.ResponseWriter, r *http.Request)

// RequireLogin passes only requests with an identity.
func RequireLogin(onDenied DeniedFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r.Context()); !ok {
				onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole passes only identities holding one of roles. Requests without
// any identity go to onAnonymous, wrong roles to onForbidden.
func RequireRole(onAnonymous, onForbidden DeniedFunc, roles ...string) mux.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				onAnonymous(w, r)
				return
			}
			if !allowed[id.Role] {
				onForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
