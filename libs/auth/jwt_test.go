package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newClaims(sub, role string, exp time.Time) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestHS256RoundTrip(t *testing.T) {
	now := time.Now()
	claims := newClaims("cust-1", RoleCustomer, now.Add(time.Hour))
	claims.Email = "ana@example.com"
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret, now)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Subject != "cust-1" || parsed.Role != RoleCustomer || parsed.Email != claims.Email {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret", now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, secret, now.Add(2*time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseRejectsUnsafeTokens(t *testing.T) {
	now := time.Now()
	secret := "test-secret"

	noExp := newClaims("cust-1", RoleCustomer, now.Add(time.Hour))
	noExp.ExpiresAt = nil
	token, err := SignHS256(noExp, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, secret, now); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}

	token, err = SignHS256(newClaims("", RoleCustomer, now.Add(time.Hour)), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, secret, now); err == nil {
		t.Fatal("expected token without sub to be rejected")
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, newClaims("cust-1", RoleCustomer, now.Add(time.Hour))).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := ParseAndVerifyHS256(hs512, secret, now); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, newClaims("cust-1", RoleAdmin, now.Add(time.Hour))).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseAndVerifyHS256(none, secret, now); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestVerifierMiddleware(t *testing.T) {
	v := Verifier{Secret: "s3cret"}
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// anonymous passes Optional with no claims
	rec := httptest.NewRecorder()
	v.Optional(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil))
	if rec.Code != http.StatusOK || seen != nil {
		t.Fatalf("expected anonymous pass-through, got %d %+v", rec.Code, seen)
	}

	// garbage token is rejected even on Optional
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	v.Optional(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	token, _ := SignHS256(newClaims("cust-7", RoleCustomer, time.Now().Add(time.Hour)), "s3cret")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhooks/local", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	v.Required(next, RoleAdmin).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer on admin route, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	v.Required(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen == nil || seen.Subject != "cust-7" {
		t.Fatalf("expected claims for cust-7, got %d %+v", rec.Code, seen)
	}
}

func TestVerifierNormalizesRole(t *testing.T) {
	v := Verifier{Secret: "s3cret"}
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
	})

	token, _ := SignHS256(newClaims("admin-1", " Admin ", time.Now().Add(time.Hour)), "s3cret")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	v.Required(next, RoleAdmin).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.Role != RoleAdmin {
		t.Fatalf("expected role %q downstream, got %+v", RoleAdmin, seen)
	}
}
