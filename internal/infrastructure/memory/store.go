// Package memory holds process-local implementations of the garden ports,
// used by the memory storage driver and by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/namankalla/nishi/internal/domain"
)

type PlantStore struct {
	mu     sync.RWMutex
	plants map[string]domain.Plant
}

func NewPlantStore() *PlantStore {
	return &PlantStore{plants: make(map[string]domain.Plant)}
}

func (s *PlantStore) Create(_ context.Context, plant *domain.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plant.ID = uuid.NewString()
	plant.Version = 1
	s.plants[plant.ID] = *plant
	return nil
}

func (s *PlantStore) Get(_ context.Context, id string) (*domain.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plants[id]
	if !ok {
		return nil, domain.ErrPlantNotFound
	}
	return &p, nil
}

func (s *PlantStore) Save(_ context.Context, plant *domain.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.plants[plant.ID]
	if !ok {
		return domain.ErrPlantNotFound
	}
	if stored.Version != plant.Version {
		return domain.ErrVersionConflict
	}
	plant.Version++
	s.plants[plant.ID] = *plant
	return nil
}

func (s *PlantStore) ListByUser(_ context.Context, userID string) ([]domain.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Plant
	for _, p := range s.plants {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *PlantStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plants[id]; !ok {
		return domain.ErrPlantNotFound
	}
	delete(s.plants, id)
	return nil
}

// Ledger keeps balances in a map. Unknown accounts have zero points.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]int)}
}

func (l *Ledger) Balance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *Ledger) Spend(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] < amount {
		return l.balances[userID], domain.ErrNotEnoughPoints
	}
	l.balances[userID] -= amount
	return l.balances[userID], nil
}

func (l *Ledger) Credit(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	return l.balances[userID], nil
}

// Guard is a set of claimed idempotency keys without expiry.
type Guard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{keys: make(map[string]struct{})}
}

func (g *Guard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = struct{}{}
	return true, nil
}

func (g *Guard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}
