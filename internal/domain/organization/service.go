package organization

import (
	"context"
	"strings"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
)

// Service is the organization directory consulted by inventory checks and
// notification fan-out.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, org *Organization) error {
	org.OrgID = strings.TrimSpace(org.OrgID)
	org.Name = strings.TrimSpace(org.Name)
	if t, ok := ParseType(string(org.Type)); ok {
		org.Type = t
	}
	if err := org.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, org)
}

func (s *Service) FindByID(ctx context.Context, orgID string) (*Organization, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperr.Validation("org_id is required")
	}
	return s.repo.GetByID(ctx, orgID)
}

// FindByType lists active organizations of type t.
func (s *Service) FindByType(ctx context.Context, t Type) ([]*Organization, error) {
	if _, ok := ParseType(string(t)); !ok {
		return nil, apperr.Validation("unknown organization type %q", t)
	}
	return s.repo.ListByType(ctx, t)
}

func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	return s.repo.List(ctx)
}

// Exists reports whether orgID names a known organization.
func (s *Service) Exists(ctx context.Context, orgID string) (bool, error) {
	_, err := s.repo.GetByID(ctx, orgID)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) AddMember(ctx context.Context, orgID, userID string, role auth.Role) (*Member, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if _, ok := auth.ParseRole(string(role)); !ok {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	m := &Member{OrganizationID: orgID, UserID: userID, Role: string(role)}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MemberIDs returns the user ids holding role in orgID.
func (s *Service) MemberIDs(ctx context.Context, orgID string, role auth.Role) ([]string, error) {
	return s.repo.MemberIDs(ctx, orgID, string(role))
}
