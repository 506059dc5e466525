package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestCreated(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.Set("request_id", "rid-1")

	if err := Created(c, "batch created", map[string]string{"batch_id": "B1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || env.Message != "batch created" || env.RequestID != "rid-1" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		kind      apperr.Kind
		retryable bool
	}{
		{"conflict", apperr.Conflict("cannot cancel a request in status delivered"), http.StatusBadRequest, apperr.KindConflict, false},
		{"not found", apperr.NotFound("batch B9 not found"), http.StatusNotFound, apperr.KindNotFound, false},
		{"ledger down", apperr.Wrap(apperr.KindLedgerUnavailable, errors.New("dial"), "ledger unavailable"), http.StatusServiceUnavailable, apperr.KindLedgerUnavailable, true},
		{"echo 401", echo.NewHTTPError(http.StatusUnauthorized, "invalid token"), http.StatusUnauthorized, apperr.KindAuthenticationRequired, false},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, apperr.KindInternal, false},
	}

	handler := ErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handler(tt.err, c)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			env := decode(t, rec)
			if env.Success {
				t.Error("expected success=false")
			}
			if env.Kind != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, env.Kind)
			}
			if env.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v", tt.retryable)
			}
			if env.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}
