package inventory

import "testing"

func TestDeriveStatus(t *testing.T) {
	th := Thresholds{LowStock: 10}
	tests := []struct {
		available int
		want      Status
	}{
		{0, StatusOutOfStock},
		{1, StatusLowStock},
		{9, StatusLowStock},
		{10, StatusAvailable},
		{1000, StatusAvailable},
	}
	for _, tt := range tests {
		if got := DeriveStatus(tt.available, th); got != tt.want {
			t.Errorf("DeriveStatus(%d) = %s, want %s", tt.available, got, tt.want)
		}
	}

	if got := DeriveStatus(20, Thresholds{LowStock: 50}); got != StatusLowStock {
		t.Errorf("expected configured threshold to apply, got %s", got)
	}
}

func TestRecord_ReserveRelease(t *testing.T) {
	th := DefaultThresholds()
	r := &Record{BatchID: "B1", AvailableQuantity: 12}

	if err := r.reserve(5, th); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if r.AvailableQuantity != 7 || r.ReservedQuantity != 5 || r.Status != StatusLowStock {
		t.Errorf("unexpected record after reserve: %+v", r)
	}
	if r.OnHand() != 12 {
		t.Errorf("reserve changed on-hand stock: %d", r.OnHand())
	}

	if err := r.releaseReserved(5, th); err != nil {
		t.Fatalf("release: %v", err)
	}
	if r.AvailableQuantity != 12 || r.ReservedQuantity != 0 || r.Status != StatusAvailable {
		t.Errorf("release did not restore record: %+v", r)
	}

	if err := r.releaseReserved(1, th); err == nil {
		t.Error("expected error releasing more than reserved")
	}
}

func TestRecord_ConsumeReserved(t *testing.T) {
	r := &Record{BatchID: "B1", AvailableQuantity: 4, ReservedQuantity: 6}
	if err := r.consumeReserved(6); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if r.AvailableQuantity != 4 || r.ReservedQuantity != 0 {
		t.Errorf("consume must only drop reserved: %+v", r)
	}
	if err := r.consumeReserved(1); err == nil {
		t.Error("expected error consuming more than reserved")
	}
}
