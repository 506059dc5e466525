package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/domain/inventory"
	"github.com/rxchain/rxchain/internal/domain/organization"
	"github.com/rxchain/rxchain/internal/platform/apperr"
)

func newInventory(t *testing.T) *inventory.Service {
	t.Helper()
	p := requireDB(t)
	orgs := organization.NewService(organization.NewRepoPG(p))
	createOrg(t, orgs, "ORG-M1", organization.TypeManufacturer)
	createOrg(t, orgs, "ORG-D1", organization.TypeDistributor)
	return inventory.NewService(inventory.NewRepoPG(p), orgs, inventory.DefaultThresholds(), zerolog.Nop())
}

func seedStock(t *testing.T, svc *inventory.Service, org, batchID string, qty int) inventory.Key {
	t.Helper()
	rec, err := svc.Create(context.Background(), inventory.CreateInput{
		OrganizationID:    org,
		BatchID:           batchID,
		ProductName:       "Amoxicillin 500mg",
		UnitDosage:        "500mg capsule",
		UnitPrice:         decimal.RequireFromString("2.50"),
		AvailableQuantity: qty,
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec.Key()
}

func TestInventoryRepo_CreateAndGet(t *testing.T) {
	svc := newInventory(t)
	ctx := context.Background()
	key := seedStock(t, svc, "ORG-M1", "B1", 40)

	rec, err := svc.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !rec.UnitPrice.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected unit price 2.50, got %s", rec.UnitPrice)
	}
	if rec.Status != inventory.StatusAvailable {
		t.Errorf("expected available, got %s", rec.Status)
	}

	_, err = svc.Create(ctx, inventory.CreateInput{OrganizationID: "ORG-M1", BatchID: "B1", ProductName: "Dup", AvailableQuantity: 1})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict on duplicate key, got %v", err)
	}
	_, err = svc.Create(ctx, inventory.CreateInput{OrganizationID: "ORG-X", BatchID: "B9", ProductName: "Ghost", AvailableQuantity: 1})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected unknown organization to be not found, got %v", err)
	}
	if _, err := svc.Get(ctx, inventory.Key{OrganizationID: "ORG-M1", BatchID: "nope"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestInventoryRepo_ConcurrentReservations(t *testing.T) {
	svc := newInventory(t)
	key := seedStock(t, svc, "ORG-M1", "B1", 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), key, 6)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || short != 1 {
		t.Fatalf("expected exactly one reservation to win, got %d ok and %d short", succeeded, short)
	}
	rec, _ := svc.Get(context.Background(), key)
	if rec.AvailableQuantity != 4 || rec.ReservedQuantity != 6 {
		t.Errorf("expected 4 available and 6 reserved, got %d/%d", rec.AvailableQuantity, rec.ReservedQuantity)
	}
	if rec.Status != inventory.StatusLowStock {
		t.Errorf("expected low_stock, got %s", rec.Status)
	}
}

func TestInventoryRepo_AdjustAndSearch(t *testing.T) {
	svc := newInventory(t)
	ctx := context.Background()
	key := seedStock(t, svc, "ORG-M1", "B1", 20)
	seedStock(t, svc, "ORG-D1", "B2", 3)

	if _, err := svc.Adjust(ctx, key, -25); !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	rec, err := svc.Adjust(ctx, key, -20)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if rec.Status != inventory.StatusOutOfStock {
		t.Errorf("expected out_of_stock, got %s", rec.Status)
	}
	if _, err := svc.Adjust(ctx, key, 15); err != nil {
		t.Fatalf("restock: %v", err)
	}

	found, err := svc.FindAvailable(ctx, "amoxi", 5)
	if err != nil {
		t.Fatalf("FindAvailable: %v", err)
	}
	if len(found) != 1 || found[0].BatchID != "B1" {
		t.Errorf("expected only B1 with 15 available, got %d records", len(found))
	}

	recs, err := svc.ListByOrganization(ctx, "ORG-D1")
	if err != nil || len(recs) != 1 {
		t.Errorf("expected one ORG-D1 record, got %d (%v)", len(recs), err)
	}
}

func TestInventoryRepo_ApplyTransfer(t *testing.T) {
	svc := newInventory(t)
	ctx := context.Background()
	seedStock(t, svc, "ORG-M1", "B1", 50)

	in := inventory.TransferInput{BatchID: "B1", FromOrgID: "ORG-M1", ToOrgID: "ORG-D1", Quantity: 20}
	if err := svc.HoldTransfer(ctx, in); err != nil {
		t.Fatalf("HoldTransfer: %v", err)
	}
	if err := svc.ApplyTransfer(ctx, in); err != nil {
		t.Fatalf("ApplyTransfer: %v", err)
	}
	src, _ := svc.Get(ctx, inventory.Key{OrganizationID: "ORG-M1", BatchID: "B1"})
	dst, err := svc.Get(ctx, inventory.Key{OrganizationID: "ORG-D1", BatchID: "B1"})
	if err != nil {
		t.Fatalf("destination record: %v", err)
	}
	if src.AvailableQuantity != 30 || dst.AvailableQuantity != 20 {
		t.Errorf("expected 30/20, got %d/%d", src.AvailableQuantity, dst.AvailableQuantity)
	}
	if dst.ProductName != src.ProductName || !dst.UnitPrice.Equal(src.UnitPrice) {
		t.Error("expected product details copied to the destination")
	}
}
