// Package ledger talks to the distributed ledger that is the system of record
// for batch custody. It exposes the chaincode's named operations through a
// single Gateway interface, with a Fabric implementation for real networks and
// an in-memory implementation for development and tests.
package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// Operation is a chaincode transaction name.
type Operation string

// Argument order for each operation:
//
//	createBatch(batchId, productName, manufactureDate, expiryDate, totalQuantity, unitDosage, unitPrice, ownerOrgId)
//	transferBatch(batchId, fromOrgId, toOrgId, quantity, metadataJson)
//	markBatchDelivered(batchId, deliveredToOrgId, quantity)
//	getBatch(batchId)
//	getBatchHistory(batchId)
const (
	OpCreateBatch        Operation = "createBatch"
	OpTransferBatch      Operation = "transferBatch"
	OpMarkBatchDelivered Operation = "markBatchDelivered"
	OpGetBatch           Operation = "getBatch"
	OpGetBatchHistory    Operation = "getBatchHistory"
)

var arity = map[Operation]int{
	OpCreateBatch:        8,
	OpTransferBatch:      5,
	OpMarkBatchDelivered: 3,
	OpGetBatch:           1,
	OpGetBatchHistory:    1,
}

// Gateway executes named operations against the ledger. Submit is a write
// that is either durably committed or fails; Query is a read. Errors are
// classified as ledger_unavailable (retryable), ledger_rejected or not_found
// (the ledger refused the call), or internal.
type Gateway interface {
	Submit(ctx context.Context, op Operation, args ...string) ([]byte, error)
	Query(ctx context.Context, op Operation, args ...string) ([]byte, error)
}

func checkArgs(op Operation, args []string) error {
	n, ok := arity[op]
	if !ok {
		return apperr.New(apperr.KindInternal, "unknown ledger operation %s", op)
	}
	if len(args) != n {
		return apperr.New(apperr.KindInternal, "%s takes %d arguments, got %d", op, n, len(args))
	}
	return nil
}

// Rejected classifies a refusal reported by the chaincode. Missing batches
// become not_found so callers can distinguish them.
func Rejected(message string) error {
	if strings.Contains(message, "does not exist") {
		return apperr.New(apperr.KindNotFound, "%s", message)
	}
	return apperr.New(apperr.KindLedgerRejected, "%s", message)
}

// Unavailable wraps a transport failure as retryable.
func Unavailable(err error) error {
	return apperr.Wrap(apperr.KindLedgerUnavailable, err, "ledger unavailable")
}

// DecodeBatch parses a getBatch/createBatch/transferBatch result.
func DecodeBatch(raw []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "malformed ledger response")
	}
	if b.BatchID == "" {
		return nil, apperr.New(apperr.KindInternal, "malformed ledger response: missing batchId")
	}
	return &b, nil
}

// DecodeHistory parses a getBatchHistory result.
func DecodeHistory(raw []byte) ([]HistoryEntry, error) {
	var h []HistoryEntry
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "malformed ledger history")
	}
	return h, nil
}
