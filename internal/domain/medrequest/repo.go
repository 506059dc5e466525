package medrequest

import (
	"context"

	"github.com/google/uuid"
)

// Filter selects requests for listing. Empty fields do not filter.
type Filter struct {
	ConsumerID     string
	ManufacturerID string
	Statuses       []Status
	Limit          int
	Offset         int
}

// Repository persists requests. Transition serializes callers on the same
// id: fn sees the latest state and its result is stored only if fn returns
// nil and the stored state still satisfies the status invariants. The ctx
// passed to fn carries the store's transaction, if it has one; work done
// with it is atomic with the status write.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Transition(ctx context.Context, id uuid.UUID, fn func(context.Context, *Request) error) (*Request, error)
	List(ctx context.Context, f Filter) ([]*Request, int, error)
}
