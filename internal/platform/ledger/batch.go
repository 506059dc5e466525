package ledger

import (
	"encoding/json"
	"time"
)

// Status is the ledger-side batch status.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
)

type Ownership struct {
	OrgID    string `json:"orgId"`
	Quantity int    `json:"quantity"`
}

type Transfer struct {
	FromOrgID string                 `json:"fromOrgId"`
	ToOrgID   string                 `json:"toOrgId"`
	Quantity  int                    `json:"quantity"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type Delivery struct {
	OrgID     string    `json:"orgId"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Batch is the ledger's record of a batch, as returned by the chaincode.
type Batch struct {
	BatchID         string      `json:"batchId"`
	ProductName     string      `json:"productName"`
	ManufactureDate string      `json:"manufactureDate"`
	ExpiryDate      string      `json:"expiryDate"`
	TotalQuantity   int         `json:"totalQuantity"`
	UnitDosage      string      `json:"unitDosage"`
	UnitPrice       string      `json:"unitPrice,omitempty"`
	Status          Status      `json:"status"`
	Ownerships      []Ownership `json:"ownerships"`
	Transfers       []Transfer  `json:"transfers"`
	Deliveries      []Delivery  `json:"deliveries"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Held returns the quantity orgID currently owns.
func (b *Batch) Held(orgID string) int {
	for _, o := range b.Ownerships {
		if o.OrgID == orgID {
			return o.Quantity
		}
	}
	return 0
}

// Delivered returns the quantity already marked delivered to orgID.
func (b *Batch) Delivered(orgID string) int {
	n := 0
	for _, d := range b.Deliveries {
		if d.OrgID == orgID {
			n += d.Quantity
		}
	}
	return n
}

// Undelivered is the part of orgID's holding that may still move.
func (b *Batch) Undelivered(orgID string) int {
	return b.Held(orgID) - b.Delivered(orgID)
}

// Conserved reports whether the ownership split adds up to the total.
func (b *Batch) Conserved() bool {
	sum := 0
	for _, o := range b.Ownerships {
		if o.Quantity < 0 {
			return false
		}
		sum += o.Quantity
	}
	return sum == b.TotalQuantity
}

// HistoryEntry is one committed write of a batch key.
type HistoryEntry struct {
	TxID      string          `json:"txId"`
	Timestamp *time.Time      `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
	IsDelete  bool            `json:"isDelete"`
}
