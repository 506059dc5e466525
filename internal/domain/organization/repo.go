package organization

import "context"

// Repository persists the organization directory.
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, orgID string) (*Organization, error)
	ListByType(ctx context.Context, t Type) ([]*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
	AddMember(ctx context.Context, m *Member) error
	MemberIDs(ctx context.Context, orgID, role string) ([]string, error)
}
