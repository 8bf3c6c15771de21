package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if claims, ok := AdminClaimsFromContext(r.Context()); !ok || claims.Subject != "ops" {
			t.Errorf("expected admin claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, called := serveAdmin(t, "", "Bearer x")
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTInvalidToken(t *testing.T) {
	token, err := IssueAdminToken("wrong", "ops", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTRejectsWrongAudience(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+signed)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token without audience, got %d", rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	token, err := IssueAdminToken("secret", "ops", 5*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, called := serveAdmin(t, "secret", "Bearer "+token)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler call with 200, got %d", rec.Code)
	}
}

func TestAdminJWTExpiredToken(t *testing.T) {
	token, err := IssueAdminToken("secret", "ops", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}
