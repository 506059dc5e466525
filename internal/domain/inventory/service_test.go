package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

type stubDirectory map[string]bool

func (d stubDirectory) Exists(_ context.Context, orgID string) (bool, error) {
	return d[orgID], nil
}

func newTestService() *Service {
	dir := stubDirectory{"ORG-M": true, "ORG-D": true, "ORG-P": true}
	return NewService(NewMemoryRepo(nil), dir, DefaultThresholds(), zerolog.Nop())
}

func seed(t *testing.T, svc *Service, org, batch string, qty int) Key {
	t.Helper()
	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID:    org,
		BatchID:           batch,
		ProductName:       "Amoxicillin 500mg",
		UnitDosage:        "500mg",
		UnitPrice:         decimal.RequireFromString("2.50"),
		AvailableQuantity: qty,
	})
	if err != nil {
		t.Fatalf("seed %s/%s: %v", org, batch, err)
	}
	return Key{OrganizationID: org, BatchID: batch}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	seed(t, svc, "ORG-M", "B1", 5)

	rec, err := svc.Get(ctx, Key{OrganizationID: "ORG-M", BatchID: "B1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != StatusLowStock || rec.ID.String() == "" {
		t.Errorf("unexpected record: %+v", rec)
	}

	tests := []struct {
		name string
		in   CreateInput
		kind apperr.Kind
	}{
		{"duplicate", CreateInput{OrganizationID: "ORG-M", BatchID: "B1", ProductName: "X"}, apperr.KindConflict},
		{"unknown org", CreateInput{OrganizationID: "ORG-X", BatchID: "B1", ProductName: "X"}, apperr.KindNotFound},
		{"missing batch", CreateInput{OrganizationID: "ORG-M", ProductName: "X"}, apperr.KindValidation},
		{"negative quantity", CreateInput{OrganizationID: "ORG-M", BatchID: "B2", ProductName: "X", AvailableQuantity: -1}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestService_ReserveThenReleaseRestores(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := seed(t, svc, "ORG-M", "B1", 1000)

	if _, err := svc.Reserve(ctx, key, 100); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	rec, err := svc.ReleaseReserved(ctx, key, 100)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if rec.AvailableQuantity != 1000 || rec.ReservedQuantity != 0 {
		t.Errorf("expected 1000/0, got %d/%d", rec.AvailableQuantity, rec.ReservedQuantity)
	}
}

func TestService_ReserveInsufficient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := seed(t, svc, "ORG-M", "B1", 3)

	_, err := svc.Reserve(ctx, key, 4)
	if !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	rec, _ := svc.Get(ctx, key)
	if rec.AvailableQuantity != 3 || rec.ReservedQuantity != 0 {
		t.Errorf("failed reservation mutated record: %+v", rec)
	}

	if _, err := svc.Reserve(ctx, key, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.Reserve(ctx, Key{OrganizationID: "ORG-M", BatchID: "NOPE"}, 1); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_ConcurrentReserve(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := seed(t, svc, "ORG-M", "B1", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, key, 6)
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.Is(err, apperr.KindInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one failure, got %d/%d", succeeded, insufficient)
	}

	rec, _ := svc.Get(ctx, key)
	if rec.AvailableQuantity != 4 || rec.ReservedQuantity != 6 {
		t.Errorf("expected available=4 reserved=6, got %d/%d", rec.AvailableQuantity, rec.ReservedQuantity)
	}
}

func TestService_ConcurrentMixedOperationsStayNonNegative(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := seed(t, svc, "ORG-M", "B1", 50)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				_, _ = svc.Reserve(ctx, key, 7)
			case 1:
				_, _ = svc.ReleaseReserved(ctx, key, 3)
			case 2:
				_, _ = svc.Adjust(ctx, key, -5)
			case 3:
				_, _ = svc.ConsumeReserved(ctx, key, 2)
			}
		}(i)
	}
	wg.Wait()

	rec, _ := svc.Get(ctx, key)
	if rec.AvailableQuantity < 0 || rec.ReservedQuantity < 0 {
		t.Errorf("quantities went negative: %+v", rec)
	}
	if rec.Status != DeriveStatus(rec.AvailableQuantity, svc.Thresholds()) {
		t.Errorf("status %s out of sync with available %d", rec.Status, rec.AvailableQuantity)
	}
}

func TestService_Adjust(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := seed(t, svc, "ORG-M", "B1", 5)

	rec, err := svc.Adjust(ctx, key, 20)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if rec.AvailableQuantity != 25 || rec.Status != StatusAvailable {
		t.Errorf("unexpected record after restock: %+v", rec)
	}

	if _, err := svc.Adjust(ctx, key, -26); !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Errorf("expected insufficient stock, got %v", err)
	}
	if _, err := svc.Adjust(ctx, key, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_FindAvailable(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	seed(t, svc, "ORG-M", "B1", 100)
	seed(t, svc, "ORG-D", "B1", 40)
	seed(t, svc, "ORG-P", "B1", 5)

	recs, err := svc.FindAvailable(ctx, "amoxi", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].OrganizationID != "ORG-M" {
		t.Errorf("expected only ORG-M, got %+v", recs)
	}

	recs, _ = svc.FindAvailable(ctx, "AMOXI", 1)
	if len(recs) != 2 {
		t.Errorf("expected low-stock record excluded, got %d records", len(recs))
	}

	if _, err := svc.FindAvailable(ctx, "  ", 1); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_ApplyTransfer(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	from := seed(t, svc, "ORG-M", "B1", 100)

	first := TransferInput{BatchID: "B1", FromOrgID: "ORG-M", ToOrgID: "ORG-D", Quantity: 30}
	if err := svc.HoldTransfer(ctx, first); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := svc.ApplyTransfer(ctx, first); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}
	src, _ := svc.Get(ctx, from)
	dst, err := svc.Get(ctx, Key{OrganizationID: "ORG-D", BatchID: "B1"})
	if err != nil {
		t.Fatalf("destination not created: %v", err)
	}
	if src.AvailableQuantity != 70 || src.ReservedQuantity != 0 || dst.AvailableQuantity != 30 {
		t.Errorf("expected 70/0 and 30, got %d/%d and %d", src.AvailableQuantity, src.ReservedQuantity, dst.AvailableQuantity)
	}
	if dst.ProductName != src.ProductName || !dst.UnitPrice.Equal(src.UnitPrice) {
		t.Errorf("destination did not copy product details: %+v", dst)
	}

	second := TransferInput{BatchID: "B1", FromOrgID: "ORG-M", ToOrgID: "ORG-D", Quantity: 20}
	if err := svc.HoldTransfer(ctx, second); err != nil {
		t.Fatalf("second hold: %v", err)
	}
	if err := svc.ApplyTransfer(ctx, second); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	dst, _ = svc.Get(ctx, Key{OrganizationID: "ORG-D", BatchID: "B1"})
	if dst.AvailableQuantity != 50 {
		t.Errorf("expected existing destination credited to 50, got %d", dst.AvailableQuantity)
	}
}

func TestService_HoldTransfer(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	from := seed(t, svc, "ORG-M", "B1", 10)
	if _, err := svc.Reserve(ctx, from, 8); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	in := TransferInput{BatchID: "B1", FromOrgID: "ORG-M", ToOrgID: "ORG-D", Quantity: 5}
	if err := svc.HoldTransfer(ctx, in); !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Fatalf("expected reserved units to be untransferable, got %v", err)
	}
	src, _ := svc.Get(ctx, from)
	if src.AvailableQuantity != 2 || src.ReservedQuantity != 8 {
		t.Errorf("reservations must not be touched: %+v", src)
	}

	missing := TransferInput{BatchID: "B1", FromOrgID: "ORG-X", ToOrgID: "ORG-D", Quantity: 1}
	if err := svc.HoldTransfer(ctx, missing); !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Errorf("expected insufficient stock without a source record, got %v", err)
	}

	in.Quantity = 2
	if err := svc.HoldTransfer(ctx, in); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := svc.ReleaseTransfer(ctx, in); err != nil {
		t.Fatalf("release: %v", err)
	}
	src, _ = svc.Get(ctx, from)
	if src.AvailableQuantity != 2 || src.ReservedQuantity != 8 {
		t.Errorf("release did not restore stock: %+v", src)
	}
}
