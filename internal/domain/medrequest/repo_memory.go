package medrequest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

type memoryRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*Request
	numbers  map[string]bool
	locks    sync.Map
}

func NewMemoryRepo() Repository {
	return &memoryRepo{
		requests: make(map[uuid.UUID]*Request),
		numbers:  make(map[string]bool),
	}
}

func clone(r *Request) *Request {
	cp := *r
	return &cp
}

func (m *memoryRepo) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numbers[r.RequestNumber] {
		return apperr.Conflict("request number %s already exists", r.RequestNumber)
	}
	m.requests[r.ID] = clone(r)
	m.numbers[r.RequestNumber] = true
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("medication request %s not found", id)
	}
	return clone(r), nil
}

func (m *memoryRepo) Transition(ctx context.Context, id uuid.UUID, fn func(context.Context, *Request) error) (*Request, error) {
	l, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := l.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	r, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, r); err != nil {
		return nil, err
	}
	if err := r.check(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests[id] = clone(r)
	m.mu.Unlock()
	return r, nil
}

func (m *memoryRepo) List(_ context.Context, f Filter) ([]*Request, int, error) {
	m.mu.RLock()
	var matched []*Request
	for _, r := range m.requests {
		if f.ConsumerID != "" && r.ConsumerID != f.ConsumerID {
			continue
		}
		if f.ManufacturerID != "" && r.ManufacturerID() != f.ManufacturerID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
			continue
		}
		matched = append(matched, clone(r))
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func hasStatus(statuses []Status, s Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
