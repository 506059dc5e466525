package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/response"
)

func newRequestContext(e *echo.Echo, ctx context.Context, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Create(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"batch_id":"B1","product_name":"Amoxicillin","manufacture_date":"2025-01-10","expiry_date":"2027-01-10",
		"total_quantity":1000,"unit_dosage":"500mg","unit_price":"3.10","owner_org_id":"ORG-M"}`
	c, rec := newRequestContext(e, as(auth.RoleManufacturer, "ORG-M"), http.MethodPost, "/api/v1/batches", body)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var out struct {
		Success bool   `json:"success"`
		Data    Result `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Data.Batch.BatchID != "B1" || out.Data.Batch.UnitPrice != "3.10" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Create_BadBody(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	c, _ := newRequestContext(echo.New(), as(auth.RoleAdmin, ""), http.MethodPost, "/api/v1/batches", `{"total_quantity":"many"}`)

	if err := h.Create(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_TransferThroughRouter(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateBatch(as(auth.RoleAdmin, ""), createInput("B1", "ORG-A", 100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	caller := &auth.Caller{ID: "u-1", Role: auth.RoleDistributor, OrganizationID: "ORG-A"}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithCaller(req.Context(), caller)))
			return next(c)
		}
	})
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"))

	body := `{"from_org_id":"ORG-A","to_org_id":"ORG-B","quantity":50}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/B1/transfers", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/batches/B1/deliveries", strings.NewReader(`{"delivered_to_org_id":"ORG-B"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for distributor delivery, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/batches/NOPE", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_History(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateBatch(as(auth.RoleAdmin, ""), createInput("B1", "ORG-A", 100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := NewHandler(f.svc)
	c, rec := newRequestContext(echo.New(), as(auth.RolePharmacist, "ORG-P"), http.MethodGet, "/", "")
	c.SetParamNames("batch_id")
	c.SetParamValues("B1")

	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
