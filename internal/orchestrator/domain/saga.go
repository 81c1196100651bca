package domain

import (
	"errors"
	"fmt"
	"time"

	cartdomain "github.com/dmehra2102/volt-storefront/internal/cart/domain"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingGatewayOrder State = "awaiting_gateway_order"
	StateAwaitingUserPayment  State = "awaiting_user_payment"
	StateVerifyingPayment     State = "verifying_payment"
	StateCommitted            State = "committed"
	StateFailed               State = "failed"
)

var ErrInvalidTransition = errors.New("invalid checkout transition")

var transitions = map[State][]State{
	StateIdle:                 {StateAwaitingGatewayOrder, StateFailed},
	StateAwaitingGatewayOrder: {StateAwaitingUserPayment, StateFailed},
	StateAwaitingUserPayment:  {StateVerifyingPayment, StateFailed},
	StateVerifyingPayment:     {StateCommitted, StateFailed},
}

// Attempt is one run of the checkout protocol. It owns the cart snapshot
// taken when the shopper pressed pay and is discarded once terminal.
type Attempt struct {
	ID        string
	Receipt   string
	State     State
	Cart      cartdomain.Cart
	Pending   *paymentdomain.PendingPayment
	StartedAt time.Time
}

func NewAttempt(id, receipt string, cart cartdomain.Cart, now time.Time) *Attempt {
	return &Attempt{
		ID:        id,
		Receipt:   receipt,
		State:     StateIdle,
		Cart:      cart,
		StartedAt: now,
	}
}

func (a *Attempt) Advance(next State) error {
	for _, allowed := range transitions[a.State] {
		if allowed == next {
			a.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, next)
}

func (a *Attempt) Terminal() bool {
	return a.State == StateCommitted || a.State == StateFailed
}

// NewReceipt builds a receipt unique to one attempt.
func NewReceipt(now time.Time, suffix string) string {
	return fmt.Sprintf("rcpt_%d_%s", now.UnixMilli(), suffix)
}
