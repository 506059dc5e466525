package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	var blocked error
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		err := h(e.NewContext(req, rec))
		if i < 2 && err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
		if i == 2 {
			blocked = err
			if rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
		}
	}

	httpErr, ok := blocked.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", blocked)
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, user := range []string{"alice", "bob"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set("user_id", user)
		if err := h(c); err != nil {
			t.Errorf("%s: unexpected error %v", user, err)
		}
	}
}

func TestClientKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	c := e.NewContext(req, httptest.NewRecorder())

	if got := clientKey(c); got != "ip:192.0.2.7" {
		t.Errorf("expected ip key, got %s", got)
	}
	c.Set("user_id", "u-1")
	if got := clientKey(c); got != "user:u-1" {
		t.Errorf("expected user key, got %s", got)
	}
}
