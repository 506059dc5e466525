package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// Status is derived from the available quantity; it is never set directly.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusLowStock   Status = "low_stock"
	StatusOutOfStock Status = "out_of_stock"
)

// Thresholds configures status derivation.
type Thresholds struct {
	LowStock int
}

func DefaultThresholds() Thresholds {
	return Thresholds{LowStock: 10}
}

// DeriveStatus maps an available quantity to its stock status.
func DeriveStatus(available int, th Thresholds) Status {
	switch {
	case available <= 0:
		return StatusOutOfStock
	case available < th.LowStock:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

// Key identifies one inventory record.
type Key struct {
	OrganizationID string
	BatchID        string
}

type Record struct {
	ID                uuid.UUID       `json:"id"`
	OrganizationID    string          `json:"organization_id"`
	BatchID           string          `json:"batch_id"`
	ProductName       string          `json:"product_name"`
	UnitDosage        string          `json:"unit_dosage"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity int             `json:"available_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (r *Record) Key() Key {
	return Key{OrganizationID: r.OrganizationID, BatchID: r.BatchID}
}

// OnHand is the physical stock held: available plus reserved.
func (r *Record) OnHand() int {
	return r.AvailableQuantity + r.ReservedQuantity
}

func (r *Record) reserve(q int, th Thresholds) error {
	if r.AvailableQuantity < q {
		return apperr.InsufficientStock("insufficient stock for batch %s: available %d, requested %d",
			r.BatchID, r.AvailableQuantity, q)
	}
	r.AvailableQuantity -= q
	r.ReservedQuantity += q
	r.Status = DeriveStatus(r.AvailableQuantity, th)
	return nil
}

// releaseReserved returns reserved stock to the available pool.
func (r *Record) releaseReserved(q int, th Thresholds) error {
	if r.ReservedQuantity < q {
		return apperr.Conflict("cannot release %d units of batch %s: only %d reserved",
			q, r.BatchID, r.ReservedQuantity)
	}
	r.ReservedQuantity -= q
	r.AvailableQuantity += q
	r.Status = DeriveStatus(r.AvailableQuantity, th)
	return nil
}

// consumeReserved removes shipped stock; available is untouched.
func (r *Record) consumeReserved(q int) error {
	if r.ReservedQuantity < q {
		return apperr.Conflict("cannot ship %d units of batch %s: only %d reserved",
			q, r.BatchID, r.ReservedQuantity)
	}
	r.ReservedQuantity -= q
	return nil
}

func (r *Record) adjust(delta int, th Thresholds) error {
	if r.AvailableQuantity+delta < 0 {
		return apperr.InsufficientStock("adjustment of %d would make available stock of batch %s negative (available %d)",
			delta, r.BatchID, r.AvailableQuantity)
	}
	r.AvailableQuantity += delta
	r.Status = DeriveStatus(r.AvailableQuantity, th)
	return nil
}
