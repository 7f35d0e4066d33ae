// Package shops provides the shop record stores consumed by the search
// service. Stores return approved shops only.
package shops

import (
	"context"
	"sync"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

type Store interface {
	ListShops(ctx context.Context, service model.ServiceFilter) ([]model.Shop, error)
	Count(ctx context.Context) (int, error)
}

// Memory keeps shops in insertion order.
type Memory struct {
	mu     sync.RWMutex
	shops  []model.Shop
	nextID int64
}

func NewMemory(seed ...model.Shop) *Memory {
	m := &Memory{nextID: 1}
	for _, s := range seed {
		m.add(s)
	}
	return m
}

// Add stores s, assigning an id and defaulting the status to approved.
func (m *Memory) Add(_ context.Context, s model.Shop) model.Shop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(s)
}

func (m *Memory) add(s model.Shop) model.Shop {
	if s.ID == 0 {
		s.ID = m.nextID
	}
	if s.ID >= m.nextID {
		m.nextID = s.ID + 1
	}
	if s.Status == "" {
		s.Status = model.StatusApproved
	}
	m.shops = append(m.shops, s)
	return s
}

func (m *Memory) ListShops(_ context.Context, service model.ServiceFilter) ([]model.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Shop, 0, len(m.shops))
	for _, s := range m.shops {
		if s.Status != model.StatusApproved || !s.Offers(service) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shops), nil
}
