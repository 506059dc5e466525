package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/clock"
)

type memoryRepo struct {
	clock clock.Clock

	mu      sync.RWMutex
	records map[Key]*Record

	// one writer per key; the map lock is only held for lookups
	locks sync.Map
}

// NewMemoryRepo returns a process-local repository that serializes updates
// per key.
func NewMemoryRepo(clk clock.Clock) Repository {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &memoryRepo{clock: clk, records: make(map[Key]*Record)}
}

func (r *memoryRepo) keyLock(key Key) *sync.Mutex {
	l, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (r *memoryRepo) Create(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Key()]; ok {
		return apperr.Conflict("inventory record for batch %s in organization %s already exists",
			rec.BatchID, rec.OrganizationID)
	}
	now := r.clock.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	cp := *rec
	r.records[rec.Key()] = &cp
	return nil
}

func (r *memoryRepo) Get(_ context.Context, key Key) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, notFound(key)
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepo) Update(ctx context.Context, key Key, fn func(*Record) error) (*Record, error) {
	l := r.keyLock(key)
	l.Lock()
	defer l.Unlock()

	rec, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = r.clock.Now()

	r.mu.Lock()
	cp := *rec
	r.records[key] = &cp
	r.mu.Unlock()
	return rec, nil
}

func (r *memoryRepo) ListByOrganization(_ context.Context, orgID string) ([]*Record, error) {
	out := r.filter(func(rec *Record) bool { return rec.OrganizationID == orgID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out, nil
}

func (r *memoryRepo) FindAvailable(_ context.Context, productName string, minQuantity int) ([]*Record, error) {
	needle := strings.ToLower(productName)
	out := r.filter(func(rec *Record) bool {
		return rec.Status == StatusAvailable &&
			rec.AvailableQuantity >= minQuantity &&
			strings.Contains(strings.ToLower(rec.ProductName), needle)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvailableQuantity != out[j].AvailableQuantity {
			return out[i].AvailableQuantity > out[j].AvailableQuantity
		}
		if out[i].OrganizationID != out[j].OrganizationID {
			return out[i].OrganizationID < out[j].OrganizationID
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out, nil
}

func (r *memoryRepo) filter(keep func(*Record) bool) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}
