package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

// Repository keeps discrepancies in process, newest first, one per order.
type Repository struct {
	mu    sync.Mutex
	items []domain.Discrepancy
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Save(_ context.Context, d domain.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.items {
		if existing.OrderID == d.OrderID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.items = append([]domain.Discrepancy{d}, r.items...)
	return nil
}

func (r *Repository) List(_ context.Context, limit int) ([]domain.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Discrepancy, n)
	copy(out, r.items[:n])
	return out, nil
}
