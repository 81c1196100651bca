package application

import (
	"context"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

// LedgerStore keeps the whole ledger under a single durable key.
type LedgerStore interface {
	Load(ctx context.Context) ([]domain.Order, error)
	Save(ctx context.Context, orders []domain.Order) error
}

// Persister hands a ledger snapshot to durable storage. It never reports
// failure to the caller.
type Persister interface {
	Persist(ctx context.Context, orders []domain.Order)
}
