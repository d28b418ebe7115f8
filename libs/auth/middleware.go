package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFromContext returns the verified caller, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// Verifier turns bearer tokens into claims.
type Verifier struct {
	Secret string
	Now    func() time.Time
}

func (v Verifier) verify(r *http.Request) (*Claims, bool, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return nil, false, nil
	}
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || v.Secret == "" {
		return nil, true, ErrInvalidToken
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	claims, err := ParseAndVerifyHS256(strings.TrimSpace(token), v.Secret, now())
	if err != nil {
		return nil, true, err
	}
	claims.Role = strings.ToLower(strings.TrimSpace(claims.Role))
	return claims, true, nil
}

// Optional attaches claims when a valid token is present. A malformed token is rejected.
func (v Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, present, err := v.verify(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Required rejects anonymous callers, and callers outside roles when roles are given.
func (v Verifier) Required(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, present, err := v.verify(r)
		if !present || err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(role, a) {
			return true
		}
	}
	return false
}
