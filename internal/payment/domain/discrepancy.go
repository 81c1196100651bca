package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discrepancy is a committed order whose payment the backend did not confirm.
type Discrepancy struct {
	OrderID      string          `json:"order_id"`
	PaymentID    string          `json:"payment_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Verification Verification    `json:"verification"`
	Detail       string          `json:"detail,omitempty"`
	DetectedAt   time.Time       `json:"detected_at"`
}
