package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serve(t *testing.T, secret, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok || claims.Subject != "ops" {
			t.Fatalf("expected admin claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, called := serve(t, "", "Bearer x")
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, called := serve(t, "secret", "")
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTWrongSecret(t *testing.T) {
	token, err := IssueAdminToken("wrong", "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rec, called := serve(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	token, err := IssueAdminToken("secret", "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rec, called := serve(t, "secret", "Bearer "+token)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler to be called with 200, got %d", rec.Code)
	}
}

func TestParseAdminTokenRejectsForeignClaims(t *testing.T) {
	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	cases := map[string]string{
		"no expiry":    sign(jwt.RegisteredClaims{Issuer: AdminIssuer, Subject: "ops"}),
		"wrong issuer": sign(jwt.RegisteredClaims{Issuer: "other", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}),
		"expired":      sign(jwt.RegisteredClaims{Issuer: AdminIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}),
	}
	for name, token := range cases {
		if _, err := ParseAdminToken("secret", token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer: AdminIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAdminToken("secret", hs512); err == nil {
		t.Error("expected HS512 token to be rejected")
	}
}

func TestIssueAdminTokenRequiresSecret(t *testing.T) {
	if _, err := IssueAdminToken("", "ops", time.Minute); err == nil {
		t.Fatal("expected error without secret")
	}
}
