package organization

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

type memoryRepo struct {
	mu      sync.RWMutex
	orgs    map[string]*Organization
	members map[string]map[string]*Member
}

// NewMemoryRepo returns a process-local directory.
func NewMemoryRepo() Repository {
	return &memoryRepo{
		orgs:    make(map[string]*Organization),
		members: make(map[string]map[string]*Member),
	}
}

func (r *memoryRepo) Create(_ context.Context, org *Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[org.OrgID]; ok {
		return apperr.Conflict("organization %s already exists", org.OrgID)
	}
	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	cp := *org
	r.orgs[org.OrgID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, orgID string) (*Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return nil, apperr.NotFound("organization %s not found", orgID)
	}
	cp := *org
	return &cp, nil
}

func (r *memoryRepo) ListByType(_ context.Context, t Type) ([]*Organization, error) {
	return r.filter(func(o *Organization) bool { return o.Type == t && o.Active }), nil
}

func (r *memoryRepo) List(_ context.Context) ([]*Organization, error) {
	return r.filter(func(*Organization) bool { return true }), nil
}

func (r *memoryRepo) filter(keep func(*Organization) bool) []*Organization {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Organization
	for _, o := range r.orgs {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out
}

func (r *memoryRepo) AddMember(_ context.Context, m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[m.OrganizationID] == nil {
		r.members[m.OrganizationID] = make(map[string]*Member)
	}
	m.CreatedAt = time.Now().UTC()
	cp := *m
	r.members[m.OrganizationID][m.UserID] = &cp
	return nil
}

func (r *memoryRepo) MemberIDs(_ context.Context, orgID, role string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, m := range r.members[orgID] {
		if m.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
