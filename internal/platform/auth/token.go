package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenRequest describes a bearer token to mint.
type TokenRequest struct {
	Subject        string
	Role           Role
	OrganizationID string
	Issuer         string
	Audience       string
	TTL            time.Duration
}

// IssueToken signs an HS256 token for req. It is used by the CLI to mint
// development tokens against AUTH_SIGNING_KEY.
func IssueToken(key []byte, req TokenRequest, now time.Time) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("signing key is required")
	}
	if req.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if _, ok := ParseRole(string(req.Role)); !ok {
		return "", fmt.Errorf("unknown role %q", req.Role)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			Issuer:    req.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  string(req.Role),
		OrgID: req.OrganizationID,
	}
	if req.Audience != "" {
		claims.Audience = jwt.ClaimStrings{req.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
