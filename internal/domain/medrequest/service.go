package medrequest

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/domain/inventory"
	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/clock"
	"github.com/rxchain/rxchain/internal/platform/db"
	"github.com/rxchain/rxchain/internal/platform/events"
)

// Stock is the part of the reservation engine a request needs.
type Stock interface {
	Reserve(ctx context.Context, key inventory.Key, q int) (*inventory.Record, error)
	ReleaseReserved(ctx context.Context, key inventory.Key, q int) (*inventory.Record, error)
	ConsumeReserved(ctx context.Context, key inventory.Key, q int) (*inventory.Record, error)
}

// Service owns every request status change. Inventory effects run while the
// request is locked. When the store's transaction covers them they roll back
// with a failed status write; otherwise they are compensated.
type Service struct {
	repo   Repository
	stock  Stock
	events events.Publisher
	clock  clock.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, stock Stock, pub events.Publisher, clk clock.Clock, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Discard
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		repo:   repo,
		stock:  stock,
		events: pub,
		clock:  clk,
		logger: logger.With().Str("component", "medrequest").Logger(),
	}
}

func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpCreateRequest)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &Request{
		ID:                   uuid.New(),
		RequestNumber:        NewRequestNumber(now),
		ConsumerID:           caller.ID,
		ProductName:          in.ProductName,
		RequestedQuantity:    in.RequestedQuantity,
		UnitDosage:           in.UnitDosage,
		PrescriptionRequired: in.PrescriptionRequired,
		PrescriptionDocument: optional(in.PrescriptionDocument),
		Notes:                optional(strings.TrimSpace(in.Notes)),
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_number", req.RequestNumber).
		Str("consumer_id", req.ConsumerID).
		Str("product_name", req.ProductName).
		Int("quantity", req.RequestedQuantity).
		Msg("medication request created")
	s.publish(ctx, events.RequestCreated, req, caller)
	return req, nil
}

// manufacturerFor resolves which manufacturer an approval assigns. Only
// admins may assign a manufacturer other than their own organization.
func manufacturerFor(caller *auth.Caller, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if caller.IsAdmin() {
		if requested == "" {
			return "", apperr.Validation("assigned_manufacturer_id is required")
		}
		return requested, nil
	}
	if requested == "" {
		requested = caller.OrganizationID
	}
	if !caller.InOrganization(requested) {
		return "", apperr.Forbidden("cannot assign requests to manufacturer %s", requested)
	}
	return requested, nil
}

func (s *Service) ApproveRequest(ctx context.Context, id uuid.UUID, in ApproveInput) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpApproveRequest)
	if err != nil {
		return nil, err
	}
	batchID := strings.TrimSpace(in.BatchID)
	if batchID == "" {
		return nil, apperr.Validation("batch_id is required")
	}
	mfr, err := manufacturerFor(caller, in.AssignedManufacturerID)
	if err != nil {
		return nil, err
	}

	key := inventory.Key{OrganizationID: mfr, BatchID: batchID}
	reserved := 0
	req, err := s.repo.Transition(ctx, id, func(ctx context.Context, r *Request) error {
		if r.Status != StatusPending {
			return apperr.Conflict("cannot approve a request in status %s", r.Status)
		}
		if _, err := s.stock.Reserve(ctx, key, r.RequestedQuantity); err != nil {
			return err
		}
		if db.TxFromContext(ctx) == nil {
			reserved = r.RequestedQuantity
		}

		now := s.clock.Now()
		if err := r.moveTo(StatusApproved, now); err != nil {
			return err
		}
		r.AssignedManufacturerID = &mfr
		r.AssignedBatchID = &batchID
		approver := caller.ID
		r.ApprovedBy = &approver
		r.ApprovedAt = &now
		return nil
	})
	if err != nil {
		if reserved > 0 {
			s.compensate(ctx, "release", key, reserved, err, s.stock.ReleaseReserved)
		}
		return nil, err
	}

	s.logger.Info().
		Str("request_number", req.RequestNumber).
		Str("manufacturer_id", mfr).
		Str("batch_id", batchID).
		Str("approved_by", caller.ID).
		Msg("medication request approved")
	s.publish(ctx, events.RequestApproved, req, caller)
	return req, nil
}

func (s *Service) RejectRequest(ctx context.Context, id uuid.UUID, reason string) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpRejectRequest)
	if err != nil {
		return nil, err
	}
	reason, err = ValidateRejectionReason(reason)
	if err != nil {
		return nil, err
	}

	req, err := s.repo.Transition(ctx, id, func(ctx context.Context, r *Request) error {
		if r.Status != StatusPending {
			return apperr.Conflict("cannot reject a request in status %s", r.Status)
		}
		if err := r.moveTo(StatusRejected, s.clock.Now()); err != nil {
			return err
		}
		r.RejectionReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("request_number", req.RequestNumber).Str("rejected_by", caller.ID).Msg("medication request rejected")
	s.publish(ctx, events.RequestRejected, req, caller)
	return req, nil
}

// CancelRequest cancels a pending or approved request. An approved
// request's reservation is returned to available stock first.
func (s *Service) CancelRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpCancelRequest)
	if err != nil {
		return nil, err
	}

	var (
		key      inventory.Key
		released int
		atomic   bool
	)
	req, err := s.repo.Transition(ctx, id, func(ctx context.Context, r *Request) error {
		if !caller.IsAdmin() && r.ConsumerID != caller.ID {
			return apperr.Forbidden("only the requesting consumer or an admin can cancel request %s", r.RequestNumber)
		}
		if r.Status != StatusPending && r.Status != StatusApproved {
			return apperr.Conflict("cannot cancel a request in status %s", r.Status)
		}
		if r.Status == StatusApproved {
			key = inventory.Key{OrganizationID: r.ManufacturerID(), BatchID: r.BatchID()}
			if _, err := s.stock.ReleaseReserved(ctx, key, r.RequestedQuantity); err != nil {
				return err
			}
			released = r.RequestedQuantity
			atomic = db.TxFromContext(ctx) != nil
		}
		return r.moveTo(StatusCancelled, s.clock.Now())
	})
	if err != nil {
		if released > 0 && !atomic {
			s.compensate(ctx, "reserve", key, released, err, s.stock.Reserve)
		}
		return nil, err
	}

	s.logger.Info().
		Str("request_number", req.RequestNumber).
		Str("cancelled_by", caller.ID).
		Int("released", released).
		Msg("medication request cancelled")
	s.publish(ctx, events.RequestCancelled, req, caller)
	return req, nil
}

// MarkInTransit ships an approved request; its reservation leaves stock.
func (s *Service) MarkInTransit(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.ship(ctx, id, StatusInTransit, events.RequestInTransit)
}

// MarkDelivered completes an approved or in-transit request.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.ship(ctx, id, StatusDelivered, events.RequestDelivered)
}

func (s *Service) ship(ctx context.Context, id uuid.UUID, to Status, evt events.Type) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpShipRequest)
	if err != nil {
		return nil, err
	}

	req, err := s.repo.Transition(ctx, id, func(ctx context.Context, r *Request) error {
		if !caller.IsAdmin() && !caller.InOrganization(r.ManufacturerID()) {
			return apperr.Forbidden("request %s is not assigned to your organization", r.RequestNumber)
		}
		if !CanTransition(r.Status, to) {
			return apperr.Conflict("cannot move a request in status %s to %s", r.Status, to)
		}
		if r.Status == StatusApproved {
			key := inventory.Key{OrganizationID: r.ManufacturerID(), BatchID: r.BatchID()}
			if _, err := s.stock.ConsumeReserved(ctx, key, r.RequestedQuantity); err != nil {
				return err
			}
		}
		now := s.clock.Now()
		if err := r.moveTo(to, now); err != nil {
			return err
		}
		if to == StatusDelivered {
			r.DeliveredAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("request_number", req.RequestNumber).Str("status", string(to)).Msg("medication request shipped")
	s.publish(ctx, evt, req, caller)
	return req, nil
}

// canView reports whether caller may read r.
func canView(caller *auth.Caller, r *Request) bool {
	switch caller.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleConsumer:
		return r.ConsumerID == caller.ID
	case auth.RoleManufacturer:
		return r.Status == StatusPending || caller.InOrganization(r.ManufacturerID())
	}
	return false
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	caller, err := auth.Authorize(ctx, auth.OpReadRequest)
	if err != nil {
		return nil, err
	}
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, req) {
		return nil, apperr.Forbidden("cannot view request %s", req.RequestNumber)
	}
	return req, nil
}

// ListQuery narrows ListMyRequests. AllStatuses lifts the admin's default
// pending-only view.
type ListQuery struct {
	Status      Status
	AllStatuses bool
	Limit       int
	Offset      int
}

// ListMyRequests returns the caller's view: consumers see their own
// requests, manufacturers those assigned to their organization, admins the
// pending queue unless a status is given.
func (s *Service) ListMyRequests(ctx context.Context, q ListQuery) ([]*Request, int, error) {
	caller, err := auth.Authorize(ctx, auth.OpReadRequest)
	if err != nil {
		return nil, 0, err
	}
	f := Filter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		f.Statuses = []Status{q.Status}
	}

	switch caller.Role {
	case auth.RoleConsumer:
		f.ConsumerID = caller.ID
	case auth.RoleManufacturer:
		if caller.OrganizationID == "" {
			return nil, 0, apperr.Forbidden("manufacturer caller has no organization")
		}
		f.ManufacturerID = caller.OrganizationID
	case auth.RoleAdmin:
		if q.Status == "" && !q.AllStatuses {
			f.Statuses = []Status{StatusPending}
		}
	default:
		return nil, 0, apperr.Forbidden("role %s has no medication request view", caller.Role)
	}
	return s.repo.List(ctx, f)
}

// compensate undoes an inventory effect whose status write failed. A failed
// compensation is logged for operators and never hides the original error.
func (s *Service) compensate(ctx context.Context, action string, key inventory.Key, q int, cause error,
	undo func(context.Context, inventory.Key, int) (*inventory.Record, error)) {
	if _, err := undo(context.WithoutCancel(ctx), key, q); err != nil {
		s.logger.Error().Err(err).
			Bool("alert", true).
			AnErr("cause", cause).
			Str("action", action).
			Str("org_id", key.OrganizationID).
			Str("batch_id", key.BatchID).
			Int("quantity", q).
			Msg("inventory compensation failed")
		return
	}
	s.logger.Warn().Err(cause).
		Str("action", action).
		Str("org_id", key.OrganizationID).
		Str("batch_id", key.BatchID).
		Int("quantity", q).
		Msg("inventory effect compensated after failed status write")
}

func (s *Service) publish(ctx context.Context, t events.Type, r *Request, caller *auth.Caller) {
	attrs := map[string]string{
		"request_number": r.RequestNumber,
		"consumer_id":    r.ConsumerID,
		"product_name":   r.ProductName,
		"quantity":       strconv.Itoa(r.RequestedQuantity),
		"status":         string(r.Status),
	}
	if r.AssignedManufacturerID != nil {
		attrs["manufacturer_id"] = *r.AssignedManufacturerID
	}
	if r.AssignedBatchID != nil {
		attrs["batch_id"] = *r.AssignedBatchID
	}
	if r.RejectionReason != nil {
		attrs["rejection_reason"] = *r.RejectionReason
	}
	if err := s.events.Publish(ctx, events.New(t, r.ID.String(), caller.ID, s.clock.Now(), attrs)); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(t)).Str("request_id", r.ID.String()).Msg("event publish failed")
	}
}
