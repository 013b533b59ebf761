package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerFrom returns the caller stored by Middleware, if any.
func CallerFrom(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Caller)
	return c, ok && c != nil
}

// Middleware attaches the bearer token's caller to the request context.
// Requests without a token pass through anonymous; a bad token is rejected.
func Middleware(issuer *Issuer, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
				unauthorized(w, "missing_token")
				return
			}
			c, err := issuer.Parse(strings.TrimSpace(h[len("bearer "):]))
			if err != nil {
				logger.Debugw("token rejected", "err", err, "path", r.URL.Path)
				unauthorized(w, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
		})
	}
}

// Require wraps h so it only runs for authenticated callers, and only for
// admins when admin is set.
func Require(admin bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFrom(r.Context())
		if !ok {
			unauthorized(w, "missing_token")
			return
		}
		if admin && !c.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		h(w, r)
	}
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
