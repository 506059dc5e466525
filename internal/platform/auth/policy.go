package auth

import (
	"context"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// Operation names a guarded action.
type Operation string

const (
	OpCreateBatch        Operation = "create_batch"
	OpTransferBatch      Operation = "transfer_batch"
	OpMarkBatchDelivered Operation = "mark_batch_delivered"
	OpReadBatch          Operation = "read_batch"

	OpCreateInventory Operation = "create_inventory"
	OpAdjustInventory Operation = "adjust_inventory"
	OpReadInventory   Operation = "read_inventory"
	OpSearchInventory Operation = "search_inventory"

	OpCreateRequest  Operation = "create_request"
	OpApproveRequest Operation = "approve_request"
	OpRejectRequest  Operation = "reject_request"
	OpCancelRequest  Operation = "cancel_request"
	OpShipRequest    Operation = "ship_request"
	OpReadRequest    Operation = "read_request"

	OpReadNotifications Operation = "read_notifications"
	OpReadOrganizations Operation = "read_organizations"
)

var (
	everyone  = []Role{RoleAdmin, RoleManufacturer, RoleDistributor, RolePharmacist, RoleConsumer}
	custodian = []Role{RoleAdmin, RoleManufacturer, RoleDistributor, RolePharmacist}
)

var policy = map[Operation][]Role{
	OpCreateBatch:        {RoleAdmin, RoleManufacturer},
	OpTransferBatch:      custodian,
	OpMarkBatchDelivered: {RoleAdmin, RolePharmacist},
	OpReadBatch:          everyone,

	OpCreateInventory: {RoleAdmin, RoleManufacturer},
	OpAdjustInventory: custodian,
	OpReadInventory:   custodian,
	OpSearchInventory: everyone,

	OpCreateRequest:  {RoleConsumer},
	OpApproveRequest: {RoleAdmin, RoleManufacturer},
	OpRejectRequest:  {RoleAdmin, RoleManufacturer},
	OpCancelRequest:  {RoleAdmin, RoleConsumer},
	OpShipRequest:    {RoleAdmin, RoleManufacturer},
	OpReadRequest:    everyone,

	OpReadNotifications: everyone,
	OpReadOrganizations: everyone,
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(role Role, op Operation) bool {
	for _, r := range policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticated returns the caller in ctx or an authentication-required error.
func Authenticated(ctx context.Context) (*Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	return caller, nil
}

// Authorize returns the caller in ctx if its role may perform op.
func Authorize(ctx context.Context, op Operation) (*Caller, error) {
	caller, err := Authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !Allowed(caller.Role, op) {
		return nil, apperr.Forbidden("role %s may not perform %s", caller.Role, op)
	}
	return caller, nil
}
