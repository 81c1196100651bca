package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	cartdomain "github.com/dmehra2102/volt-storefront/internal/cart/domain"
)

type OrderStatus string

const (
	StatusPaid OrderStatus = "paid"
)

// Order is a committed purchase. It is never modified after NewOrder.
type Order struct {
	ID        string                `json:"id"`
	Amount    decimal.Decimal       `json:"amount"`
	Currency  string                `json:"currency"`
	Items     []cartdomain.CartLine `json:"items"`
	Status    OrderStatus           `json:"status"`
	PaymentID *string               `json:"payment_id"`
	CreatedAt time.Time             `json:"createdAt"`
}

// NewOrder snapshots the cart lines into a paid order. An empty id falls
// back to a local one derived from now.
func NewOrder(id string, amount decimal.Decimal, currency string, items []cartdomain.CartLine, paymentID string, now time.Time) Order {
	if id == "" {
		id = fmt.Sprintf("local_%d", now.UnixMilli())
	}
	var pid *string
	if paymentID != "" {
		pid = &paymentID
	}
	lines := make([]cartdomain.CartLine, len(items))
	copy(lines, items)

	return Order{
		ID:        id,
		Amount:    amount,
		Currency:  currency,
		Items:     lines,
		Status:    StatusPaid,
		PaymentID: pid,
		CreatedAt: now,
	}
}

// MarshalJSON writes the amount as a JSON number so stored ledgers can be
// summed by readers that do not know about decimals.
func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Amount json.Number `json:"amount"`
	}{order(o), json.Number(o.Amount.String())})
}

func (o Order) IsPaid() bool {
	return o.Status == StatusPaid
}
