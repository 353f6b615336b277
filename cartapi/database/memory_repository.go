package database

import (
	"context"
	"sync"
	"time"

	"scarlet-storefront/models"
)

// MemoryCartRepository keeps carts in process memory. Used for local runs
// (CART_STORE=memory) and tests.
type MemoryCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*models.Cart
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[string]*models.Cart)}
}

func (r *MemoryCartRepository) GetCart(_ context.Context, key string) (*models.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[key]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r *MemoryCartRepository) SaveCart(_ context.Context, key string, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[key] = cart.Clone()
	return nil
}

func (r *MemoryCartRepository) DeleteCart(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, key)
	return nil
}
