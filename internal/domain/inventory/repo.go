package inventory

import "context"

// Repository persists inventory records. Update must serialize callers on
// the same key: fn sees the latest committed state and its changes are
// stored only when it returns nil.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, key Key) (*Record, error)
	Update(ctx context.Context, key Key, fn func(*Record) error) (*Record, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*Record, error)
	FindAvailable(ctx context.Context, productName string, minQuantity int) ([]*Record, error)
}
