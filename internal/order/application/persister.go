package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
	"github.com/dmehra2102/volt-storefront/pkg/metrics"
)

const flushTimeout = 5 * time.Second

// SyncPersister writes on the caller's goroutine and swallows errors.
type SyncPersister struct {
	log   *slog.Logger
	store LedgerStore
}

func NewSyncPersister(log *slog.Logger, store LedgerStore) *SyncPersister {
	return &SyncPersister{log: log, store: store}
}

func (p *SyncPersister) Persist(ctx context.Context, orders []domain.Order) {
	if err := p.store.Save(ctx, orders); err != nil {
		p.log.Error("ledger persist failed", "orders", len(orders), "err", err)
		metrics.RecordLedgerPersistFailure()
	}
}

// AsyncPersister writes from a background loop. Snapshots queued while a
// write is in flight are coalesced; only the latest one is written.
type AsyncPersister struct {
	log   *slog.Logger
	store LedgerStore

	mu      sync.Mutex
	pending []domain.Order
	dirty   bool
	wake    chan struct{}
}

func NewAsyncPersister(log *slog.Logger, store LedgerStore) *AsyncPersister {
	return &AsyncPersister{
		log:   log,
		store: store,
		wake:  make(chan struct{}, 1),
	}
}

func (p *AsyncPersister) Persist(_ context.Context, orders []domain.Order) {
	p.mu.Lock()
	p.pending = orders
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run drains queued snapshots until ctx is done, then makes one last write.
func (p *AsyncPersister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			p.flush(flushCtx)
			cancel()
			p.log.Info("ledger persister stopped")
			return nil
		case <-p.wake:
			p.flush(ctx)
		}
	}
}

func (p *AsyncPersister) flush(ctx context.Context) {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	orders := p.pending
	p.dirty = false
	p.mu.Unlock()

	if err := p.store.Save(ctx, orders); err != nil {
		p.log.Error("ledger persist failed", "orders", len(orders), "err", err)
		metrics.RecordLedgerPersistFailure()
	}
}
