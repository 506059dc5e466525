package medrequest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusInTransit, StatusDelivered, StatusCancelled},
	StatusInTransit: {StatusDelivered},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusApproved, StatusInTransit, StatusDelivered, StatusRejected, StatusCancelled:
		return st, true
	}
	return "", false
}

// assigned reports whether requests in s carry a manufacturer and batch.
func (s Status) assigned() bool {
	return s == StatusApproved || s == StatusInTransit || s == StatusDelivered
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Request struct {
	ID                     uuid.UUID  `json:"id"`
	RequestNumber          string     `json:"request_number"`
	ConsumerID             string     `json:"consumer_id"`
	ProductName            string     `json:"product_name"`
	RequestedQuantity      int        `json:"requested_quantity"`
	UnitDosage             string     `json:"unit_dosage"`
	PrescriptionRequired   bool       `json:"prescription_required"`
	PrescriptionDocument   *string    `json:"prescription_document"`
	Notes                  *string    `json:"notes"`
	AssignedManufacturerID *string    `json:"assigned_manufacturer_id"`
	AssignedBatchID        *string    `json:"assigned_batch_id"`
	Status                 Status     `json:"status"`
	RejectionReason        *string    `json:"rejection_reason"`
	ApprovedBy             *string    `json:"approved_by"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	ApprovedAt             *time.Time `json:"approved_at"`
	DeliveredAt            *time.Time `json:"delivered_at"`
}

func (r *Request) ManufacturerID() string {
	if r.AssignedManufacturerID == nil {
		return ""
	}
	return *r.AssignedManufacturerID
}

func (r *Request) BatchID() string {
	if r.AssignedBatchID == nil {
		return ""
	}
	return *r.AssignedBatchID
}

// moveTo applies a transition, failing with Conflict if it is not allowed.
func (r *Request) moveTo(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return apperr.Conflict("cannot move request %s from %s to %s", r.RequestNumber, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now
	if !to.assigned() {
		r.AssignedManufacturerID = nil
		r.AssignedBatchID = nil
	}
	return nil
}

// check enforces the field invariants tied to status.
func (r *Request) check() error {
	hasAssignment := r.AssignedManufacturerID != nil && r.AssignedBatchID != nil
	if r.Status.assigned() != hasAssignment {
		return fmt.Errorf("request %s: assignment must be set exactly when approved, in transit or delivered (status %s)",
			r.RequestNumber, r.Status)
	}
	if (r.Status == StatusRejected) != (r.RejectionReason != nil) {
		return fmt.Errorf("request %s: rejection reason must be set exactly when rejected (status %s)",
			r.RequestNumber, r.Status)
	}
	return nil
}

// NewRequestNumber returns a time-ordered, human-shareable identifier such
// as REQ-20250301090000-1A2B3C4D.
func NewRequestNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "REQ-" + now.UTC().Format("20060102150405") + "-" + suffix
}

type CreateInput struct {
	ProductName          string `json:"product_name"`
	RequestedQuantity    int    `json:"requested_quantity"`
	UnitDosage           string `json:"unit_dosage"`
	PrescriptionRequired bool   `json:"prescription_required"`
	PrescriptionDocument string `json:"prescription_document"`
	Notes                string `json:"notes"`
}

func (in *CreateInput) validate() error {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.UnitDosage = strings.TrimSpace(in.UnitDosage)
	in.PrescriptionDocument = strings.TrimSpace(in.PrescriptionDocument)
	if n := utf8.RuneCountInString(in.ProductName); n < 3 || n > 255 {
		return apperr.Validation("product_name must be between 3 and 255 characters")
	}
	if in.RequestedQuantity < 1 {
		return apperr.Validation("requested_quantity must be at least 1")
	}
	if in.UnitDosage == "" {
		return apperr.Validation("unit_dosage is required")
	}
	if utf8.RuneCountInString(in.UnitDosage) > 100 {
		return apperr.Validation("unit_dosage must be at most 100 characters")
	}
	if in.PrescriptionRequired && in.PrescriptionDocument == "" {
		return apperr.Validation("prescription_document is required when prescription_required is true")
	}
	return nil
}

type ApproveInput struct {
	BatchID                string `json:"batch_id"`
	AssignedManufacturerID string `json:"assigned_manufacturer_id"`
}

const (
	minReasonLen = 10
	maxReasonLen = 500
)

// ValidateRejectionReason checks the reason before any lookup happens.
func ValidateRejectionReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < minReasonLen || n > maxReasonLen {
		return "", apperr.Validation("rejection_reason must be between %d and %d characters", minReasonLen, maxReasonLen)
	}
	return reason, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
