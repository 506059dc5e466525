package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/domain/inventory"
	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/clock"
	"github.com/rxchain/rxchain/internal/platform/events"
	"github.com/rxchain/rxchain/internal/platform/ledger"
)

// StockKeeper mirrors ledger custody into local inventory.
type StockKeeper interface {
	Seed(ctx context.Context, in inventory.CreateInput) error
	HoldTransfer(ctx context.Context, in inventory.TransferInput) error
	ReleaseTransfer(ctx context.Context, in inventory.TransferInput) error
	ApplyTransfer(ctx context.Context, in inventory.TransferInput) error
}

// Service fronts the ledger for batch custody. The ledger is the system of
// record; local stock follows it and is never allowed to roll it back.
type Service struct {
	ledger ledger.Gateway
	stock  StockKeeper
	events events.Publisher
	clock  clock.Clock
	logger zerolog.Logger
}

func NewService(gw ledger.Gateway, stock StockKeeper, pub events.Publisher, clk clock.Clock, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Discard
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		ledger: gw,
		stock:  stock,
		events: pub,
		clock:  clk,
		logger: logger.With().Str("component", "batch").Logger(),
	}
}

// actsFor rejects non-admin callers acting on behalf of another organization.
func actsFor(caller *auth.Caller, orgID, action string) error {
	if caller.IsAdmin() || caller.InOrganization(orgID) {
		return nil
	}
	return apperr.Forbidden("cannot %s on behalf of organization %s", action, orgID)
}

func (s *Service) CreateBatch(ctx context.Context, in CreateInput) (*Result, error) {
	caller, err := auth.Authorize(ctx, auth.OpCreateBatch)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := actsFor(caller, in.OwnerOrgID, "create a batch"); err != nil {
		return nil, err
	}

	raw, err := s.ledger.Submit(ctx, ledger.OpCreateBatch, in.args()...)
	if err != nil {
		return nil, err
	}
	b, err := ledger.DecodeBatch(raw)
	if err != nil {
		return nil, err
	}
	res := &Result{Batch: b}

	s.logger.Info().
		Str("batch_id", b.BatchID).
		Str("owner_org_id", in.OwnerOrgID).
		Int("total_quantity", b.TotalQuantity).
		Str("user_id", caller.ID).
		Msg("batch created on ledger")

	err = s.stock.Seed(ctx, inventory.CreateInput{
		OrganizationID:    in.OwnerOrgID,
		BatchID:           b.BatchID,
		ProductName:       in.ProductName,
		UnitDosage:        in.UnitDosage,
		UnitPrice:         in.UnitPrice,
		AvailableQuantity: in.TotalQuantity,
	})
	if err != nil {
		s.syncFailed(ctx, caller, "seed", b.BatchID, in.OwnerOrgID, in.TotalQuantity, err)
		res.warn(fmt.Sprintf("batch recorded on ledger but inventory for %s was not seeded: %s",
			in.OwnerOrgID, apperr.MessageOf(err)))
	}

	s.publish(ctx, events.BatchCreated, b.BatchID, caller, map[string]string{
		"owner_org_id":   in.OwnerOrgID,
		"product_name":   in.ProductName,
		"total_quantity": strconv.Itoa(in.TotalQuantity),
	})
	return res, nil
}

// TransferBatch moves custody on the ledger only. The ledger enforces
// conservation and rejects transfers that exceed the source's holding.
func (s *Service) TransferBatch(ctx context.Context, in TransferInput) (*Result, error) {
	caller, args, err := s.prepareTransfer(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.submitTransfer(ctx, caller, in, args)
}

func (s *Service) prepareTransfer(ctx context.Context, in TransferInput) (*auth.Caller, []string, error) {
	caller, err := auth.Authorize(ctx, auth.OpTransferBatch)
	if err != nil {
		return nil, nil, err
	}
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	if err := actsFor(caller, in.FromOrgID, "transfer a batch"); err != nil {
		return nil, nil, err
	}
	args, err := in.args()
	if err != nil {
		return nil, nil, err
	}
	return caller, args, nil
}

func (s *Service) submitTransfer(ctx context.Context, caller *auth.Caller, in TransferInput, args []string) (*Result, error) {
	raw, err := s.ledger.Submit(ctx, ledger.OpTransferBatch, args...)
	if err != nil {
		return nil, err
	}
	b, err := ledger.DecodeBatch(raw)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", in.BatchID).
		Str("from_org_id", in.FromOrgID).
		Str("to_org_id", in.ToOrgID).
		Int("quantity", in.Quantity).
		Msg("batch transferred on ledger")

	s.publish(ctx, events.BatchTransferred, in.BatchID, caller, map[string]string{
		"from_org_id": in.FromOrgID,
		"to_org_id":   in.ToOrgID,
		"quantity":    strconv.Itoa(in.Quantity),
	})
	return &Result{Batch: b}, nil
}

// TransferAndReconcile holds the source's local available stock, transfers
// on the ledger and then moves the held quantity to the destination's local
// stock. A source without enough unreserved stock is refused before the
// ledger is touched. Failures after the ledger write are reported as
// warnings; the ledger transfer stands.
func (s *Service) TransferAndReconcile(ctx context.Context, in TransferInput) (*Result, error) {
	caller, args, err := s.prepareTransfer(ctx, in)
	if err != nil {
		return nil, err
	}
	local := inventory.TransferInput{
		BatchID:   in.BatchID,
		FromOrgID: in.FromOrgID,
		ToOrgID:   in.ToOrgID,
		Quantity:  in.Quantity,
	}
	if err := s.stock.HoldTransfer(ctx, local); err != nil {
		return nil, err
	}

	res, err := s.submitTransfer(ctx, caller, in, args)
	if err != nil {
		if rerr := s.stock.ReleaseTransfer(context.WithoutCancel(ctx), local); rerr != nil {
			s.syncFailed(ctx, caller, "transfer_release", in.BatchID, in.FromOrgID, in.Quantity, rerr)
		}
		return nil, err
	}

	if err := s.stock.ApplyTransfer(ctx, local); err != nil {
		s.syncFailed(ctx, caller, "transfer", in.BatchID, in.FromOrgID+"->"+in.ToOrgID, in.Quantity, err)
		res.warn(fmt.Sprintf("transfer recorded on ledger but local inventory was not fully reconciled: %s",
			apperr.MessageOf(err)))
	}
	return res, nil
}

// MarkBatchDelivered records final receipt. The quantity is capped at what
// the organization still holds undelivered, read from the ledger just before
// the write.
func (s *Service) MarkBatchDelivered(ctx context.Context, in DeliverInput) (*Result, error) {
	caller, err := auth.Authorize(ctx, auth.OpMarkBatchDelivered)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := actsFor(caller, in.DeliveredToOrgID, "confirm delivery"); err != nil {
		return nil, err
	}

	current, err := s.getBatch(ctx, in.BatchID)
	if err != nil {
		return nil, err
	}
	undelivered := current.Undelivered(in.DeliveredToOrgID)
	if undelivered <= 0 {
		return nil, apperr.Conflict("organization %s holds no undelivered units of batch %s",
			in.DeliveredToOrgID, in.BatchID)
	}
	res := &Result{}
	qty := in.Quantity
	switch {
	case qty == 0:
		qty = undelivered
	case qty > undelivered:
		res.warn(fmt.Sprintf("requested %d units but only %d are undelivered; delivered %d", qty, undelivered, undelivered))
		qty = undelivered
	}

	raw, err := s.ledger.Submit(ctx, ledger.OpMarkBatchDelivered, in.BatchID, in.DeliveredToOrgID, strconv.Itoa(qty))
	if err != nil {
		return nil, err
	}
	if res.Batch, err = ledger.DecodeBatch(raw); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", in.BatchID).
		Str("org_id", in.DeliveredToOrgID).
		Int("quantity", qty).
		Msg("batch delivery recorded")

	s.publish(ctx, events.BatchDelivered, in.BatchID, caller, map[string]string{
		"org_id":   in.DeliveredToOrgID,
		"quantity": strconv.Itoa(qty),
	})
	return res, nil
}

func (s *Service) GetBatch(ctx context.Context, batchID string) (*ledger.Batch, error) {
	if _, err := auth.Authorize(ctx, auth.OpReadBatch); err != nil {
		return nil, err
	}
	return s.getBatch(ctx, batchID)
}

func (s *Service) getBatch(ctx context.Context, batchID string) (*ledger.Batch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, apperr.Validation("batch_id is required")
	}
	raw, err := s.ledger.Query(ctx, ledger.OpGetBatch, batchID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, apperr.NotFound("batch %s not found", batchID)
	}
	return ledger.DecodeBatch(raw)
}

func (s *Service) GetBatchHistory(ctx context.Context, batchID string) ([]ledger.HistoryEntry, error) {
	if _, err := auth.Authorize(ctx, auth.OpReadBatch); err != nil {
		return nil, err
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, apperr.Validation("batch_id is required")
	}
	raw, err := s.ledger.Query(ctx, ledger.OpGetBatchHistory, batchID)
	if err != nil {
		return nil, err
	}
	history, err := ledger.DecodeHistory(raw)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, apperr.NotFound("batch %s not found", batchID)
	}
	return history, nil
}

// syncFailed puts a ledger/inventory divergence on the operator channel.
func (s *Service) syncFailed(ctx context.Context, caller *auth.Caller, step, batchID, orgID string, qty int, cause error) {
	s.logger.Error().Err(cause).
		Bool("alert", true).
		Str("step", step).
		Str("batch_id", batchID).
		Str("org_id", orgID).
		Int("quantity", qty).
		Msg("inventory out of sync with ledger")

	s.publish(ctx, events.InventorySyncFailed, batchID, caller, map[string]string{
		"step":     step,
		"org_id":   orgID,
		"quantity": strconv.Itoa(qty),
		"error":    cause.Error(),
	})
}

func (s *Service) publish(ctx context.Context, t events.Type, subjectID string, caller *auth.Caller, attrs map[string]string) {
	actor := ""
	if caller != nil {
		actor = caller.ID
	}
	if err := s.events.Publish(ctx, events.New(t, subjectID, actor, s.clock.Now(), attrs)); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(t)).Str("batch_id", subjectID).Msg("event publish failed")
	}
}
