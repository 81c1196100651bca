package application

import (
	"context"

	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

type DiscrepancyRepository interface {
	Save(ctx context.Context, d domain.Discrepancy) error
	List(ctx context.Context, limit int) ([]domain.Discrepancy, error)
}
