package batch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/ledger"
)

const dateLayout = "2006-01-02"

type CreateInput struct {
	BatchID         string          `json:"batch_id"`
	ProductName     string          `json:"product_name"`
	ManufactureDate string          `json:"manufacture_date"`
	ExpiryDate      string          `json:"expiry_date"`
	TotalQuantity   int             `json:"total_quantity"`
	UnitDosage      string          `json:"unit_dosage"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	OwnerOrgID      string          `json:"owner_org_id"`
}

func (in *CreateInput) validate() error {
	in.BatchID = strings.TrimSpace(in.BatchID)
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.OwnerOrgID = strings.TrimSpace(in.OwnerOrgID)
	switch {
	case in.BatchID == "":
		return apperr.Validation("batch_id is required")
	case in.ProductName == "":
		return apperr.Validation("product_name is required")
	case strings.TrimSpace(in.UnitDosage) == "":
		return apperr.Validation("unit_dosage is required")
	case in.TotalQuantity <= 0:
		return apperr.Validation("total_quantity must be positive")
	case in.UnitPrice.IsNegative():
		return apperr.Validation("unit_price cannot be negative")
	case in.OwnerOrgID == "":
		return apperr.Validation("owner_org_id is required")
	}
	made, err := time.Parse(dateLayout, in.ManufactureDate)
	if err != nil {
		return apperr.Validation("manufacture_date must be YYYY-MM-DD")
	}
	expires, err := time.Parse(dateLayout, in.ExpiryDate)
	if err != nil {
		return apperr.Validation("expiry_date must be YYYY-MM-DD")
	}
	if !expires.After(made) {
		return apperr.Validation("expiry_date must be after manufacture_date")
	}
	return nil
}

func (in *CreateInput) args() []string {
	return []string{
		in.BatchID, in.ProductName, in.ManufactureDate, in.ExpiryDate,
		strconv.Itoa(in.TotalQuantity), in.UnitDosage, in.UnitPrice.StringFixed(2), in.OwnerOrgID,
	}
}

type TransferInput struct {
	BatchID   string                 `json:"-"`
	FromOrgID string                 `json:"from_org_id"`
	ToOrgID   string                 `json:"to_org_id"`
	Quantity  int                    `json:"quantity"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (in *TransferInput) validate() error {
	in.FromOrgID = strings.TrimSpace(in.FromOrgID)
	in.ToOrgID = strings.TrimSpace(in.ToOrgID)
	switch {
	case strings.TrimSpace(in.BatchID) == "":
		return apperr.Validation("batch_id is required")
	case in.FromOrgID == "" || in.ToOrgID == "":
		return apperr.Validation("from_org_id and to_org_id are required")
	case in.FromOrgID == in.ToOrgID:
		return apperr.Validation("cannot transfer a batch to the organization that holds it")
	case in.Quantity <= 0:
		return apperr.Validation("quantity must be positive")
	}
	return nil
}

func (in *TransferInput) args() ([]string, error) {
	meta := in.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, apperr.Validation("metadata must be a JSON object")
	}
	return []string{in.BatchID, in.FromOrgID, in.ToOrgID, strconv.Itoa(in.Quantity), string(raw)}, nil
}

// DeliverInput marks stock received by its final holder. A zero Quantity
// means the organization's whole undelivered holding.
type DeliverInput struct {
	BatchID          string `json:"-"`
	DeliveredToOrgID string `json:"delivered_to_org_id"`
	Quantity         int    `json:"quantity"`
}

func (in *DeliverInput) validate() error {
	in.DeliveredToOrgID = strings.TrimSpace(in.DeliveredToOrgID)
	switch {
	case strings.TrimSpace(in.BatchID) == "":
		return apperr.Validation("batch_id is required")
	case in.DeliveredToOrgID == "":
		return apperr.Validation("delivered_to_org_id is required")
	case in.Quantity < 0:
		return apperr.Validation("quantity cannot be negative")
	}
	return nil
}

// Result is a ledger outcome plus any local follow-up that did not complete.
type Result struct {
	Batch    *ledger.Batch `json:"batch"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
