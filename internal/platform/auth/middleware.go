package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Dev-mode headers that override the default development caller.
const (
	DevUserHeader = "X-Dev-User-ID"
	DevRoleHeader = "X-Dev-Role"
	DevOrgHeader  = "X-Dev-Org-ID"
)

// Claims is the bearer token payload: sub, role and org_id.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	OrgID string `json:"org_id,omitempty"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey selects HS256 validation instead of JWKS.
	SigningKey []byte
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache holds RSA keys fetched from a JWKS endpoint for ttl.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	url       string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:   make(map[string]*rsa.PublicKey),
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Key returns the key for kid, refetching on a miss or after expiry.
func (c *JWKSCache) Key(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) <= c.ttl
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(); err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok = c.keys[kid]; !ok {
		return nil, fmt.Errorf("kid %q not in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		if pub, err := rsaKey(k); err == nil {
			keys[k.Kid] = pub
		}
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

const jwksTTL = 5 * time.Minute

// verifier parses bearer tokens into callers.
type verifier struct {
	cfg     JWTConfig
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
}

func newVerifier(cfg JWTConfig) *verifier {
	v := &verifier{cfg: cfg}
	if len(cfg.SigningKey) > 0 {
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
	} else {
		cache := NewJWKSCache(cfg.JWKSURL, jwksTTL)
		v.keyFunc = func(t *jwt.Token) (interface{}, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return cache.Key(kid)
		}
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256"}))
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v
}

func (v *verifier) configured() bool {
	return len(v.cfg.SigningKey) > 0 || v.cfg.JWKSURL != ""
}

func (v *verifier) caller(header string) (*Caller, error) {
	scheme, raw, ok := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, v.opts...)
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token has an unknown role")
	}
	return &Caller{ID: claims.Subject, Role: role, OrganizationID: claims.OrgID}, nil
}

func attach(c echo.Context, caller *Caller) {
	c.Set("user_id", caller.ID)
	c.SetRequest(c.Request().WithContext(WithCaller(c.Request().Context(), caller)))
}

// JWTMiddleware authenticates every non-public request from its bearer token.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newVerifier(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			caller, err := v.caller(header)
			if err != nil {
				return err
			}
			attach(c, caller)
			return next(c)
		}
	}
}

// DevAuthMiddleware treats requests without a bearer token as the
// development admin, overridable through the X-Dev-* headers. A bearer token,
// when present and a key is configured, is still validated.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newVerifier(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			req := c.Request()
			if header := req.Header.Get("Authorization"); header != "" && v.configured() {
				caller, err := v.caller(header)
				if err != nil {
					return err
				}
				attach(c, caller)
				return next(c)
			}

			caller := &Caller{ID: "dev-user", Role: RoleAdmin}
			if id := req.Header.Get(DevUserHeader); id != "" {
				caller.ID = id
			}
			if r := req.Header.Get(DevRoleHeader); r != "" {
				role, ok := ParseRole(r)
				if !ok {
					return echo.NewHTTPError(http.StatusUnauthorized, "unknown role in "+DevRoleHeader)
				}
				caller.Role = role
			}
			caller.OrganizationID = req.Header.Get(DevOrgHeader)
			attach(c, caller)
			return next(c)
		}
	}
}
