package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

// Store keeps the ledger in one JSON file on local disk.
type Store struct {
	log  *slog.Logger
	path string
}

func NewStore(log *slog.Logger, path string) *Store {
	return &Store{log: log, path: path}
}

func (s *Store) Load(_ context.Context) ([]domain.Order, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	return domain.UnmarshalLedger(raw)
}

// Save replaces the file through a rename so readers never see a partial write.
func (s *Store) Save(_ context.Context, orders []domain.Order) error {
	raw, err := domain.MarshalLedger(orders)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".orders-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	s.log.Debug("ledger written", "path", s.path, "orders", len(orders))
	return nil
}
