package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
	"github.com/dmehra2102/volt-storefront/pkg/outbox"
)

// LedgerStore keeps the ledger as one JSONB value in a key/value table.
type LedgerStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	key  string
}

func NewLedgerStore(log *slog.Logger, pool *pgxpool.Pool, key string) *LedgerStore {
	return &LedgerStore{log: log, pool: pool, key: key}
}

func (r *LedgerStore) Load(ctx context.Context) ([]domain.Order, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM ledger_kv WHERE key=$1`, r.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select ledger: %w", err)
	}
	return domain.UnmarshalLedger(raw)
}

func (r *LedgerStore) Save(ctx context.Context, orders []domain.Order) error {
	raw, err := domain.MarshalLedger(orders)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO ledger_kv (key, value, updated_at)
				VALUES ($1,$2,now())
				ON CONFLICT (key) DO UPDATE SET value=$2, updated_at=now()
			`, r.key, raw)
	if err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}
	r.log.Debug("ledger written", "key", r.key, "orders", len(orders))
	return nil
}

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) Enqueue(ctx context.Context, event outbox.Event) error {
	headers := event.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
				VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		event.AggregateType, event.AggregateID, event.Type, event.Payload, headers, event.Traceparent)
	return err
}

// LockBatch leases pending rows, plus in-progress rows whose lease ran out
// and failed rows awaiting retry.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
		FROM outbox
		WHERE status IN ('pending','failed')
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.CreatedAt, &event.RetryCount); err != nil {
			return nil, err
		}
		event.Headers = headers
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + $1::interval WHERE id = ANY($2) AND relay_id=$3`, lease.String(), ids, relayID)
	return err
}
