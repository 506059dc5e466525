package organization

import (
	"context"

	"github.com/rxchain/rxchain/internal/platform/auth"
)

// Recipients exposes organization membership as string ids for the
// notification dispatcher.
type Recipients struct {
	svc *Service
}

func NewRecipients(svc *Service) *Recipients {
	return &Recipients{svc: svc}
}

// OrganizationIDs lists the active organizations of orgType.
func (r *Recipients) OrganizationIDs(ctx context.Context, orgType string) ([]string, error) {
	t, _ := ParseType(orgType)
	orgs, err := r.svc.FindByType(ctx, t)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(orgs))
	for _, o := range orgs {
		ids = append(ids, o.OrgID)
	}
	return ids, nil
}

func (r *Recipients) MemberIDs(ctx context.Context, orgID, role string) ([]string, error) {
	return r.svc.MemberIDs(ctx, orgID, auth.Role(role))
}
