package organization

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

func TestHandler_List(t *testing.T) {
	h := NewHandler(newTestService(t))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations?type=manufacturer", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Success bool            `json:"success"`
		Data    []*Organization `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.Data) != 2 {
		t.Errorf("expected 2 manufacturers, got %+v", body)
	}
}

func TestHandler_List_BadType(t *testing.T) {
	h := NewHandler(newTestService(t))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations?type=hospital", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.List(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_Get(t *testing.T) {
	h := NewHandler(newTestService(t))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("org_id")
	c.SetParamValues("ORG-D1")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("org_id")
	c.SetParamValues("ORG-NOPE")
	if err := h.Get(c); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
