package domain

import "github.com/shopspring/decimal"

const EventOrderCommitted = "OrderCommitted"

// OrderCommitted is published for every order written to the ledger.
// Verification records what the backend said about the payment signature.
type OrderCommitted struct {
	OrderID      string          `json:"order_id"`
	PaymentID    string          `json:"payment_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Verification string          `json:"verification"`
	Detail       string          `json:"detail,omitempty"`
}
