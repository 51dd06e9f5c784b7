package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const repIDKey ctxKey = "rep/id"

// RepIDHeader carries the authenticated rep identifier set by the gateway.
// Authentication itself happens upstream; the core trusts this header the
// same way it trusts the store connection string.
const RepIDHeader = "X-Rep-ID"

// WithRepID stores the acting rep identifier on the provided context.
func WithRepID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, repIDKey, id)
}

// RepID extracts the acting rep identifier from the context if present.
func RepID(ctx context.Context) (string, bool) {
	v := ctx.Value(repIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// RepAuth lifts the gateway-provided rep header into the request context.
type RepAuth struct{}

// Middleware populates the rep identity; it does not reject anonymous
// requests so read-only endpoints stay reachable without it.
func (RepAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(RepIDHeader)); id != "" {
			r = r.WithContext(WithRepID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRep rejects requests that arrived without a rep identity.
func RequireRep(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := RepID(r.Context())
		if !ok || strings.TrimSpace(id) == "" {
			JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "rep identity required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
