package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/shortlinks/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[string]*shortener.Link // id -> link
	codes map[shortener.Code]string  // code -> id
}

// NewMemoryStore creates a new in-memory link store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*shortener.Link),
		codes: make(map[shortener.Code]string),
	}
}

func (m *MemoryStore) Save(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.codes[link.Code]; taken {
		return shortener.ErrCodeConflict
	}

	stored := *link
	m.links[link.ID] = &stored
	m.codes[link.Code] = link.ID

	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	link := *m.links[id]

	return &link, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, userID string) ([]*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*shortener.Link, 0)

	for _, l := range m.links {
		if l.UserID == userID {
			link := *l
			out = append(out, &link)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (m *MemoryStore) DeleteOwned(_ context.Context, id, userID string) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok || link.UserID != userID {
		return nil, shortener.ErrNotFound
	}

	delete(m.links, id)
	delete(m.codes, link.Code)

	return link, nil
}

func (m *MemoryStore) ListExpired(_ context.Context, before time.Time) ([]*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*shortener.Link

	for _, l := range m.links {
		if l.Expired(before) {
			link := *l
			out = append(out, &link)
		}
	}

	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return false, nil
	}

	delete(m.links, id)
	delete(m.codes, link.Code)

	return true, nil
}

func (m *MemoryStore) IncrementClicks(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[code]
	if !ok {
		return shortener.ErrNotFound
	}

	m.links[id].Clicks++

	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.links)), nil
}

// Evict is a no-op; the memory store is its own source of truth.
func (m *MemoryStore) Evict(_ context.Context, _ shortener.Code) error {
	return nil
}

var (
	_ shortener.Repository = (*MemoryStore)(nil)
	_ shortener.Cache      = (*MemoryStore)(nil)
)
