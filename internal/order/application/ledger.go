package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

var ErrDuplicateOrder = errors.New("order already in ledger")

// Ledger is the append-only list of committed orders, most recent first.
type Ledger struct {
	log     *slog.Logger
	store   LedgerStore
	persist Persister

	mu     sync.RWMutex
	orders []domain.Order
}

func NewLedger(log *slog.Logger, store LedgerStore, persist Persister) *Ledger {
	return &Ledger{log: log, store: store, persist: persist}
}

// Load replaces the in-memory ledger with the persisted one. Any read or
// decode failure yields an empty ledger.
func (l *Ledger) Load(ctx context.Context) []domain.Order {
	orders, err := l.store.Load(ctx)
	if err != nil {
		l.log.Warn("ledger load failed, starting empty", "err", err)
		orders = nil
	}

	l.mu.Lock()
	l.orders = orders
	l.mu.Unlock()

	l.log.Info("ledger loaded", "orders", len(orders))
	return l.All()
}

// Append puts o at the front and schedules a write of the whole ledger.
// The in-memory append stands even if the write later fails.
func (l *Ledger) Append(ctx context.Context, o domain.Order) error {
	l.mu.Lock()
	for _, existing := range l.orders {
		if existing.ID == o.ID {
			l.mu.Unlock()
			return ErrDuplicateOrder
		}
	}
	next := make([]domain.Order, 0, len(l.orders)+1)
	next = append(next, o)
	next = append(next, l.orders...)
	l.orders = next
	l.mu.Unlock()

	l.persist.Persist(ctx, next)
	return nil
}

func (l *Ledger) All() []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.orders) == 0 {
		return []domain.Order{}
	}
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}
