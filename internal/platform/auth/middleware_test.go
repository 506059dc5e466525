package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role:  role,
		OrgID: "ORG-M",
	}
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, path string) (*Caller, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if path != "" {
		c.SetPath(path)
	}

	var got *Caller
	h := mw(func(c echo.Context) error {
		got, _ = CallerFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	return got, h(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d error", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "")
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims("manufacturer"), testSigningKey))

	caller, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller == nil {
		t.Fatal("expected caller in context")
	}
	if caller.ID != "user-123" || caller.Role != RoleManufacturer || caller.OrganizationID != "ORG-M" {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := validClaims("admin")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noSubject := validClaims("admin")
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"expired", createTestToken(t, expired, testSigningKey)},
		{"wrong key", createTestToken(t, validClaims("admin"), []byte("other-key"))},
		{"unknown role", createTestToken(t, validClaims("surgeon"), testSigningKey)},
		{"no subject", createTestToken(t, noSubject, testSigningKey)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "")
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	caller, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller != nil {
		t.Errorf("expected no caller on public path, got %+v", caller)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	caller, err := run(t, DevAuthMiddleware(JWTConfig{}), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller == nil || caller.ID != "dev-user" || caller.Role != RoleAdmin {
		t.Errorf("expected dev admin caller, got %+v", caller)
	}
}

func TestDevAuthMiddleware_HeaderOverrides(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "alice")
	req.Header.Set(DevRoleHeader, "consumer")
	req.Header.Set(DevOrgHeader, "ORG-P")

	caller, err := run(t, DevAuthMiddleware(JWTConfig{}), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.ID != "alice" || caller.Role != RoleConsumer || caller.OrganizationID != "ORG-P" {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestDevAuthMiddleware_UnknownRoleHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevRoleHeader, "root")
	_, err := run(t, DevAuthMiddleware(JWTConfig{}), req, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_ValidatesBearerWhenKeyed(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims("pharmacist"), testSigningKey))
	caller, err := run(t, DevAuthMiddleware(cfg), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.Role != RolePharmacist {
		t.Errorf("expected pharmacist from token, got %s", caller.Role)
	}

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Bearer not-a-jwt")
	_, err = run(t, DevAuthMiddleware(cfg), bad, "")
	expectStatus(t, err, http.StatusUnauthorized)
}
