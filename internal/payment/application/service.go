package application

import (
	"context"
	"log/slog"

	orderdomain "github.com/dmehra2102/volt-storefront/internal/order/domain"
	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
	"github.com/dmehra2102/volt-storefront/pkg/metrics"
)

// Service reconciles committed orders against their payment verification.
// Orders committed without a confirmed signature are recorded for follow-up.
type Service struct {
	log   *slog.Logger
	repo  DiscrepancyRepository
	clock clock.Clock
}

func NewService(log *slog.Logger, repo DiscrepancyRepository, c clock.Clock) *Service {
	return &Service{log: log, repo: repo, clock: c}
}

// Reconcile returns true when the event was recorded as a discrepancy.
func (s *Service) Reconcile(ctx context.Context, event orderdomain.OrderCommitted) (bool, error) {
	v := domain.Verification(event.Verification)
	if v == domain.Verified {
		return false, nil
	}
	if v == "" {
		v = domain.Unverified
	}

	d := domain.Discrepancy{
		OrderID:      event.OrderID,
		PaymentID:    event.PaymentID,
		Amount:       event.Amount,
		Currency:     event.Currency,
		Verification: v,
		Detail:       event.Detail,
		DetectedAt:   s.clock.Now(),
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return false, err
	}
	metrics.RecordDiscrepancy(string(v))
	s.log.Warn("payment needs follow-up",
		"order_id", d.OrderID, "payment_id", d.PaymentID, "amount", d.Amount.String(), "verification", v)
	return true, nil
}

func (s *Service) Discrepancies(ctx context.Context, limit int) ([]domain.Discrepancy, error) {
	return s.repo.List(ctx, limit)
}
