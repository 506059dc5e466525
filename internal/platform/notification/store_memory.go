package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Notification
}

func NewMemoryStore() Store {
	return &memoryStore{items: make(map[uuid.UUID]*Notification)}
}

func (m *memoryStore) Create(_ context.Context, n *Notification) error {
	cp := *n
	m.mu.Lock()
	m.items[n.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	m.mu.RLock()
	var matched []*Notification
	for _, n := range m.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (m *memoryStore) MarkRead(_ context.Context, userID string, id uuid.UUID, at time.Time) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return nil, notFound(id)
	}
	if !n.IsRead {
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
	}
	cp := *n
	return &cp, nil
}

func (m *memoryStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.UserID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		count++
	}
	return count, nil
}

func (m *memoryStore) Delete(_ context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return notFound(id)
	}
	delete(m.items, id)
	return nil
}
