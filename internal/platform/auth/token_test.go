package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueToken_RoundTrip(t *testing.T) {
	tok, err := IssueToken(testSigningKey, TokenRequest{
		Subject:        "dist-1",
		Role:           RoleDistributor,
		OrganizationID: "ORG-D",
		TTL:            10 * time.Minute,
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	caller, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req, "")
	if err != nil {
		t.Fatalf("minted token rejected: %v", err)
	}
	if caller.ID != "dist-1" || caller.Role != RoleDistributor || caller.OrganizationID != "ORG-D" {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	now := time.Now()
	if _, err := IssueToken(nil, TokenRequest{Subject: "a", Role: RoleAdmin}, now); err == nil {
		t.Error("expected error without key")
	}
	if _, err := IssueToken(testSigningKey, TokenRequest{Role: RoleAdmin}, now); err == nil {
		t.Error("expected error without subject")
	}
	if _, err := IssueToken(testSigningKey, TokenRequest{Subject: "a", Role: "root"}, now); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestIssueToken_AudienceAndIssuer(t *testing.T) {
	tok, err := IssueToken(testSigningKey, TokenRequest{
		Subject: "a", Role: RoleAdmin, Issuer: "rxchain", Audience: "rxchain-api",
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "rxchain", Audience: "rxchain-api"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if _, err := run(t, JWTMiddleware(cfg), req, ""); err != nil {
		t.Fatalf("expected token to validate: %v", err)
	}

	cfg.Audience = "someone-else"
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, err = run(t, JWTMiddleware(cfg), req, "")
	expectStatus(t, err, http.StatusUnauthorized)
}
