package application

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/volt-storefront/internal/cart/domain"
)

// Store owns the shopper's cart. It is the single writer; readers get
// immutable snapshots.
type Store struct {
	mu   sync.RWMutex
	cart domain.Cart
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) AddItem(item domain.Item) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = s.cart.AddItem(item)
	return s.cart
}

func (s *Store) SetQuantity(id string, qty int) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = s.cart.SetQuantity(id, qty)
	return s.cart
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = s.cart.Clear()
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart
}

func (s *Store) Total() decimal.Decimal {
	return domain.Total(s.Snapshot())
}
