// Package auth issues session tokens and resolves the viewer of a request.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

func WithViewer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// ViewerID returns the authenticated user id, or "" for anonymous requests.
func ViewerID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware attaches the viewer to the request context when a valid
// bearer token is present. Requests without a token pass through anonymous.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := i.Parse(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), claims.UserID)))
	})
}

// Require rejects anonymous requests.
func Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ViewerID(r.Context()) == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
