package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/clock"
)

// Memory is an in-process ledger with the chaincode's semantics. Every write
// appends a history snapshot, and the ownership split always sums to the
// batch total.
type Memory struct {
	mu      sync.Mutex
	batches map[string]*Batch
	history map[string][]HistoryEntry
	clock   clock.Clock
}

func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Memory{
		batches: make(map[string]*Batch),
		history: make(map[string][]HistoryEntry),
		clock:   clk,
	}
}

func (m *Memory) Submit(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	if err := checkArgs(op, args); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		b   *Batch
		err error
	)
	switch op {
	case OpCreateBatch:
		b, err = m.create(args)
	case OpTransferBatch:
		b, err = m.transfer(args)
	case OpMarkBatchDelivered:
		b, err = m.deliver(args)
	default:
		return nil, apperr.New(apperr.KindInternal, "%s is not a submit operation", op)
	}
	if err != nil {
		return nil, err
	}
	return m.commit(b)
}

func (m *Memory) Query(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	if err := checkArgs(op, args); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch op {
	case OpGetBatch:
		b, err := m.read(args[0])
		if err != nil {
			return nil, err
		}
		return json.Marshal(b)
	case OpGetBatchHistory:
		if _, err := m.read(args[0]); err != nil {
			return nil, err
		}
		return json.Marshal(m.history[args[0]])
	default:
		return nil, apperr.New(apperr.KindInternal, "%s is not a query operation", op)
	}
}

func (m *Memory) read(batchID string) (*Batch, error) {
	b, ok := m.batches[batchID]
	if !ok {
		return nil, Rejected(fmt.Sprintf("Batch %s does not exist", batchID))
	}
	return b, nil
}

// commit stores b and records a snapshot of it.
func (m *Memory) commit(b *Batch) ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	m.batches[b.BatchID] = b
	ts := b.UpdatedAt
	m.history[b.BatchID] = append(m.history[b.BatchID], HistoryEntry{
		TxID:      uuid.NewString(),
		Timestamp: &ts,
		Value:     raw,
	})
	return raw, nil
}

func positive(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, Rejected(fmt.Sprintf("%s must be a positive integer", name))
	}
	return n, nil
}

func (m *Memory) create(args []string) (*Batch, error) {
	batchID, owner := args[0], args[7]
	if _, exists := m.batches[batchID]; exists {
		return nil, Rejected(fmt.Sprintf("Batch %s already exists", batchID))
	}
	total, err := positive("totalQuantity", args[4])
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, Rejected("ownerOrgId is required")
	}

	now := m.clock.Now()
	return &Batch{
		BatchID:         batchID,
		ProductName:     args[1],
		ManufactureDate: args[2],
		ExpiryDate:      args[3],
		TotalQuantity:   total,
		UnitDosage:      args[5],
		UnitPrice:       args[6],
		Status:          StatusCreated,
		Ownerships:      []Ownership{{OrgID: owner, Quantity: total}},
		Transfers:       []Transfer{},
		Deliveries:      []Delivery{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// clone deep-copies the slices so a rejected write never mutates stored state.
func clone(b *Batch) *Batch {
	c := *b
	c.Ownerships = append([]Ownership(nil), b.Ownerships...)
	c.Transfers = append([]Transfer(nil), b.Transfers...)
	c.Deliveries = append([]Delivery(nil), b.Deliveries...)
	return &c
}

func (m *Memory) transfer(args []string) (*Batch, error) {
	stored, err := m.read(args[0])
	if err != nil {
		return nil, err
	}
	from, to := args[1], args[2]
	if from == to {
		return nil, Rejected("fromOrgId and toOrgId must differ")
	}
	qty, err := positive("quantity", args[3])
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if args[4] != "" {
		if err := json.Unmarshal([]byte(args[4]), &metadata); err != nil {
			return nil, Rejected("transferMetadataJson is not valid JSON")
		}
	}

	if avail := stored.Undelivered(from); avail < qty {
		return nil, Rejected(fmt.Sprintf(
			"Insufficient ownership. %s holds %d transferable units of batch %s, requested %d",
			from, avail, stored.BatchID, qty))
	}

	b := clone(stored)
	now := m.clock.Now()
	owners := b.Ownerships[:0]
	credited := false
	for _, o := range b.Ownerships {
		switch o.OrgID {
		case from:
			o.Quantity -= qty
		case to:
			o.Quantity += qty
			credited = true
		}
		if o.Quantity > 0 {
			owners = append(owners, o)
		}
	}
	if !credited {
		owners = append(owners, Ownership{OrgID: to, Quantity: qty})
	}
	b.Ownerships = owners
	b.Transfers = append(b.Transfers, Transfer{
		FromOrgID: from,
		ToOrgID:   to,
		Quantity:  qty,
		Timestamp: now,
		Metadata:  metadata,
	})
	b.Status = StatusInTransit
	b.UpdatedAt = now

	if !b.Conserved() {
		return nil, apperr.New(apperr.KindInternal, "transfer of batch %s would break conservation", b.BatchID)
	}
	return b, nil
}

func (m *Memory) deliver(args []string) (*Batch, error) {
	stored, err := m.read(args[0])
	if err != nil {
		return nil, err
	}
	org := args[1]
	qty, err := positive("quantity", args[2])
	if err != nil {
		return nil, err
	}
	if avail := stored.Undelivered(org); avail < qty {
		return nil, Rejected(fmt.Sprintf(
			"Cannot mark delivered: %s holds %d undelivered units of batch %s, requested %d",
			org, avail, stored.BatchID, qty))
	}

	b := clone(stored)
	now := m.clock.Now()
	b.Deliveries = append(b.Deliveries, Delivery{OrgID: org, Quantity: qty, Timestamp: now})
	b.Status = StatusDelivered
	b.UpdatedAt = now
	return b, nil
}
