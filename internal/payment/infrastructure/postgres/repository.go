package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_discrepancies (
	order_id     TEXT PRIMARY KEY,
	payment_id   TEXT NOT NULL DEFAULT '',
	amount       NUMERIC(14,2) NOT NULL,
	currency     TEXT NOT NULL,
	verification TEXT NOT NULL,
	detail       TEXT NOT NULL DEFAULT '',
	detected_at  TIMESTAMPTZ NOT NULL
);
`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *Repository) Save(ctx context.Context, d domain.Discrepancy) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payment_discrepancies (order_id, payment_id, amount, currency, verification, detail, detected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id) DO UPDATE SET payment_id=$2, amount=$3, currency=$4, verification=$5, detail=$6, detected_at=$7`,
		d.OrderID, d.PaymentID, d.Amount.String(), d.Currency, string(d.Verification), d.Detail, d.DetectedAt)
	return err
}

func (r *Repository) List(ctx context.Context, limit int) ([]domain.Discrepancy, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT order_id, payment_id, amount::text, currency, verification, detail, detected_at
		FROM payment_discrepancies ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Discrepancy, error) {
		var d domain.Discrepancy
		var amount, verification string
		if err := row.Scan(&d.OrderID, &d.PaymentID, &amount, &d.Currency, &verification, &d.Detail, &d.DetectedAt); err != nil {
			return d, err
		}
		d.Verification = domain.Verification(verification)
		return d, d.Amount.UnmarshalText([]byte(amount))
	})
}
