package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

// Store keeps the whole ledger as one JSON value under a single key.
type Store struct {
	log *slog.Logger
	rdb *redis.Client
	key string
}

func NewStore(log *slog.Logger, rdb *redis.Client, key string) *Store {
	return &Store{log: log, rdb: rdb, key: key}
}

func (s *Store) Load(ctx context.Context) ([]domain.Order, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return domain.UnmarshalLedger(raw)
}

func (s *Store) Save(ctx context.Context, orders []domain.Order) error {
	raw, err := domain.MarshalLedger(orders)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.log.Debug("ledger written", "key", s.key, "orders", len(orders))
	return nil
}
