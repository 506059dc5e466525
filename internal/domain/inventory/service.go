package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// OrgDirectory answers whether an organization exists.
type OrgDirectory interface {
	Exists(ctx context.Context, orgID string) (bool, error)
}

// Service is the only writer of available and reserved quantities.
type Service struct {
	repo   Repository
	orgs   OrgDirectory
	th     Thresholds
	logger zerolog.Logger
}

func NewService(repo Repository, orgs OrgDirectory, th Thresholds, logger zerolog.Logger) *Service {
	if th.LowStock <= 0 {
		th = DefaultThresholds()
	}
	return &Service{repo: repo, orgs: orgs, th: th, logger: logger.With().Str("component", "inventory").Logger()}
}

func (s *Service) Thresholds() Thresholds { return s.th }

type CreateInput struct {
	OrganizationID    string          `json:"organization_id"`
	BatchID           string          `json:"batch_id"`
	ProductName       string          `json:"product_name"`
	UnitDosage        string          `json:"unit_dosage"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity int             `json:"available_quantity"`
}

func (in *CreateInput) validate() error {
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	in.BatchID = strings.TrimSpace(in.BatchID)
	in.ProductName = strings.TrimSpace(in.ProductName)
	switch {
	case in.OrganizationID == "":
		return apperr.Validation("organization_id is required")
	case in.BatchID == "":
		return apperr.Validation("batch_id is required")
	case in.ProductName == "":
		return apperr.Validation("product_name is required")
	case in.AvailableQuantity < 0:
		return apperr.Validation("available_quantity cannot be negative")
	case in.UnitPrice.IsNegative():
		return apperr.Validation("unit_price cannot be negative")
	}
	return nil
}

// Create adds a record for (organization, batch). It fails with Conflict if
// one already exists.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.orgs != nil {
		ok, err := s.orgs.Exists(ctx, in.OrganizationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("organization %s not found", in.OrganizationID)
		}
	}
	rec := &Record{
		ID:                uuid.New(),
		OrganizationID:    in.OrganizationID,
		BatchID:           in.BatchID,
		ProductName:       in.ProductName,
		UnitDosage:        in.UnitDosage,
		UnitPrice:         in.UnitPrice,
		AvailableQuantity: in.AvailableQuantity,
		Status:            DeriveStatus(in.AvailableQuantity, s.th),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("organization_id", rec.OrganizationID).
		Str("batch_id", rec.BatchID).
		Int("available", rec.AvailableQuantity).
		Msg("inventory record created")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, key Key) (*Record, error) {
	return s.repo.Get(ctx, key)
}

func positive(q int, what string) error {
	if q <= 0 {
		return apperr.Validation("%s quantity must be positive", what)
	}
	return nil
}

// Reserve moves q units from available to reserved. Concurrent reservations
// on the same key never jointly exceed availability.
func (s *Service) Reserve(ctx context.Context, key Key, q int) (*Record, error) {
	if err := positive(q, "reserve"); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, key, func(r *Record) error { return r.reserve(q, s.th) })
}

// ReleaseReserved returns q reserved units to available, as when a
// fulfillment is abandoned before shipment.
func (s *Service) ReleaseReserved(ctx context.Context, key Key, q int) (*Record, error) {
	if err := positive(q, "release"); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, key, func(r *Record) error { return r.releaseReserved(q, s.th) })
}

// ConsumeReserved drops q reserved units that have physically shipped.
func (s *Service) ConsumeReserved(ctx context.Context, key Key, q int) (*Record, error) {
	if err := positive(q, "ship"); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, key, func(r *Record) error { return r.consumeReserved(q) })
}

// Adjust restocks (delta > 0) or writes off (delta < 0) available stock.
func (s *Service) Adjust(ctx context.Context, key Key, delta int) (*Record, error) {
	if delta == 0 {
		return nil, apperr.Validation("delta must be non-zero")
	}
	return s.repo.Update(ctx, key, func(r *Record) error { return r.adjust(delta, s.th) })
}

func (s *Service) FindAvailable(ctx context.Context, productName string, minQuantity int) ([]*Record, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return nil, apperr.Validation("product_name is required")
	}
	if minQuantity < 1 {
		minQuantity = 1
	}
	return s.repo.FindAvailable(ctx, productName, minQuantity)
}

func (s *Service) ListByOrganization(ctx context.Context, orgID string) ([]*Record, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperr.Validation("organization_id is required")
	}
	return s.repo.ListByOrganization(ctx, orgID)
}

// Seed creates the owner's record for a freshly created batch.
func (s *Service) Seed(ctx context.Context, in CreateInput) error {
	_, err := s.Create(ctx, in)
	return err
}

// TransferInput describes custody that already moved on the ledger.
type TransferInput struct {
	BatchID   string
	FromOrgID string
	ToOrgID   string
	Quantity  int
}

// HoldTransfer sets the source's units aside before custody moves on the
// ledger. Units already reserved for requests cannot be held, so a transfer
// never hands over stock that is promised elsewhere.
func (s *Service) HoldTransfer(ctx context.Context, in TransferInput) error {
	from := Key{OrganizationID: in.FromOrgID, BatchID: in.BatchID}
	_, err := s.Reserve(ctx, from, in.Quantity)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.InsufficientStock("organization %s holds no local stock of batch %s", in.FromOrgID, in.BatchID)
	}
	return err
}

// ReleaseTransfer returns a hold whose ledger transfer did not happen.
func (s *Service) ReleaseTransfer(ctx context.Context, in TransferInput) error {
	_, err := s.ReleaseReserved(ctx, Key{OrganizationID: in.FromOrgID, BatchID: in.BatchID}, in.Quantity)
	return err
}

// ApplyTransfer mirrors a ledger transfer in local stock: the source's held
// units leave and the destination is credited, creating its record from the
// source's product details when needed. Both sides are attempted; the
// returned error joins whatever failed.
func (s *Service) ApplyTransfer(ctx context.Context, in TransferInput) error {
	if err := positive(in.Quantity, "transfer"); err != nil {
		return err
	}
	from := Key{OrganizationID: in.FromOrgID, BatchID: in.BatchID}
	to := Key{OrganizationID: in.ToOrgID, BatchID: in.BatchID}

	src, srcErr := s.repo.Update(ctx, from, func(r *Record) error { return r.consumeReserved(in.Quantity) })
	if src == nil {
		// product details are still needed to open the destination record
		src, _ = s.repo.Get(ctx, from)
	}

	_, dstErr := s.repo.Update(ctx, to, func(r *Record) error { return r.adjust(in.Quantity, s.th) })
	if apperr.Is(dstErr, apperr.KindNotFound) {
		dstErr = s.openFromTransfer(ctx, to, src, in.Quantity)
	}
	return errors.Join(srcErr, dstErr)
}

func (s *Service) openFromTransfer(ctx context.Context, to Key, src *Record, q int) error {
	if src == nil {
		return apperr.NotFound("no local record for batch %s to copy product details from", to.BatchID)
	}
	rec := &Record{
		ID:                uuid.New(),
		OrganizationID:    to.OrganizationID,
		BatchID:           to.BatchID,
		ProductName:       src.ProductName,
		UnitDosage:        src.UnitDosage,
		UnitPrice:         src.UnitPrice,
		AvailableQuantity: q,
		Status:            DeriveStatus(q, s.th),
	}
	err := s.repo.Create(ctx, rec)
	if apperr.Is(err, apperr.KindConflict) {
		// created concurrently; credit it instead
		_, err = s.repo.Update(ctx, to, func(r *Record) error { return r.adjust(q, s.th) })
	}
	return err
}
