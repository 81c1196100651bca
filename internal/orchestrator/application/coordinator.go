package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cartdomain "github.com/dmehra2102/volt-storefront/internal/cart/domain"
	"github.com/dmehra2102/volt-storefront/internal/orchestrator/domain"
	orderdomain "github.com/dmehra2102/volt-storefront/internal/order/domain"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
	"github.com/dmehra2102/volt-storefront/pkg/idempotency"
	"github.com/dmehra2102/volt-storefront/pkg/metrics"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrAlreadyCommitted   = errors.New("gateway order already committed")
)

// Settings are the merchant details the widget is opened with.
type Settings struct {
	KeyID       string
	APIBaseURL  string
	Currency    string
	Name        string
	Description string
	Image       string
	ThemeColor  string
	Prefill     paymentdomain.Prefill
	Notes       map[string]string
}

// Outcome is the terminal result of one checkout attempt.
type Outcome struct {
	AttemptID      string                     `json:"attempt_id"`
	State          domain.State               `json:"state"`
	GatewayOrderID string                     `json:"gateway_order_id,omitempty"`
	Order          *orderdomain.Order         `json:"order,omitempty"`
	Verification   paymentdomain.Verification `json:"verification,omitempty"`
	Kind           paymentdomain.Kind         `json:"kind,omitempty"`
	Message        string                     `json:"message,omitempty"`
	FinishedAt     time.Time                  `json:"finished_at"`
}

type Status struct {
	State domain.State `json:"state"`
	Busy  bool         `json:"busy"`
	Last  *Outcome     `json:"last,omitempty"`
}

type Coordinator struct {
	log       *slog.Logger
	cart      CartSource
	ledger    OrderLedger
	gateway   Gateway
	widget    Widget
	guard     idempotency.Guard
	publisher EventPublisher
	clock     clock.Clock
	settings  Settings
	tracer    trace.Tracer

	busy  atomic.Bool
	mu    sync.Mutex
	state domain.State
	last  *Outcome
}

type Option func(*Coordinator)

// WithCommitGuard stops a gateway order from being committed twice across
// processes sharing the guard.
func WithCommitGuard(g idempotency.Guard) Option {
	return func(c *Coordinator) { c.guard = g }
}

func WithPublisher(p EventPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithClock(cl clock.Clock) Option {
	return func(c *Coordinator) { c.clock = cl }
}

func NewCoordinator(log *slog.Logger, cart CartSource, ledger OrderLedger, gateway Gateway, widget Widget, settings Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:      log,
		cart:     cart,
		ledger:   ledger,
		gateway:  gateway,
		widget:   widget,
		clock:    clock.NewSystem(),
		settings: settings,
		tracer:   otel.Tracer("checkout"),
		state:    domain.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether an attempt is running.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{State: c.state, Busy: c.busy.Load()}
	if c.last != nil {
		last := *c.last
		s.Last = &last
	}
	return s
}

// Begin claims the checkout slot for the current cart. The returned attempt
// must be passed to Run.
func (c *Coordinator) Begin() (*domain.Attempt, error) {
	snapshot := c.cart.Snapshot()
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInProgress
	}

	now := c.clock.Now()
	id := uuid.NewString()
	suffix := strings.ReplaceAll(id, "-", "")[:8]
	attempt := domain.NewAttempt(id, domain.NewReceipt(now, suffix), snapshot, now)
	c.setState(domain.StateIdle)
	return attempt, nil
}

// Pay runs a whole attempt for the current cart.
func (c *Coordinator) Pay(ctx context.Context) (Outcome, error) {
	attempt, err := c.Begin()
	if err != nil {
		return Outcome{}, err
	}
	return c.Run(ctx, attempt)
}

// Run drives attempt to a terminal state and releases the checkout slot.
// A nil error means an order was committed, even when verification did not
// confirm the payment; Outcome.Verification says which.
func (c *Coordinator) Run(ctx context.Context, attempt *domain.Attempt) (out Outcome, err error) {
	defer c.busy.Store(false)

	ctx, span := c.tracer.Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("attempt_id", attempt.ID),
		attribute.String("receipt", attempt.Receipt),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := c.log.With("attempt_id", attempt.ID)

	order, verification, message, err := c.run(ctx, log, attempt)
	out = Outcome{
		AttemptID:    attempt.ID,
		Verification: verification,
		Message:      message,
		FinishedAt:   c.clock.Now(),
	}
	if attempt.Pending != nil {
		out.GatewayOrderID = attempt.Pending.GatewayOrderID
	}

	if err != nil {
		if attempt.State != domain.StateFailed {
			_ = attempt.Advance(domain.StateFailed)
		}
		out.State = domain.StateFailed
		out.Kind = paymentdomain.KindOf(err)
		if out.Message == "" {
			out.Message = failureMessage(out.Kind)
		}
		outcome := string(out.Kind)
		if outcome == "" {
			outcome = "failed"
		}
		metrics.RecordCheckoutOutcome(outcome)
		log.Info("checkout failed", "kind", out.Kind, "err", err)
	} else {
		out.State = domain.StateCommitted
		out.Order = &order
		switch verification {
		case paymentdomain.Unverified:
			out.Kind = paymentdomain.KindVerificationSoftFailure
		case paymentdomain.Rejected:
			out.Kind = paymentdomain.KindVerificationRejected
		}
		metrics.RecordCheckoutOutcome("committed_" + string(verification))
		log.Info("checkout committed", "order_id", order.ID, "verification", verification)
	}
	span.SetAttributes(attribute.String("state", string(out.State)))

	c.mu.Lock()
	c.state = out.State
	c.last = &out
	c.mu.Unlock()
	return out, err
}

func (c *Coordinator) run(ctx context.Context, log *slog.Logger, attempt *domain.Attempt) (orderdomain.Order, paymentdomain.Verification, string, error) {
	if c.settings.KeyID == "" || c.settings.APIBaseURL == "" {
		return orderdomain.Order{}, "", "", paymentdomain.NewError(paymentdomain.KindConfiguration, paymentdomain.ErrMissingConfig)
	}

	c.advance(attempt, domain.StateAwaitingGatewayOrder)

	if err := c.step(ctx, "widget_load", c.widget.Load); err != nil {
		return orderdomain.Order{}, "", "", paymentdomain.NewError(paymentdomain.KindWidgetLoad, err)
	}

	req := paymentdomain.CreateOrderRequest{
		Amount:   cartdomain.MinorUnits(cartdomain.Total(attempt.Cart)),
		Currency: c.settings.Currency,
		Receipt:  attempt.Receipt,
	}
	var gw paymentdomain.GatewayOrder
	err := c.step(ctx, "create_order", func(ctx context.Context) error {
		var err error
		gw, err = c.gateway.CreateOrder(ctx, req)
		return err
	})
	if err != nil {
		return orderdomain.Order{}, "", "", paymentdomain.NewError(paymentdomain.KindOrderCreation, err)
	}
	attempt.Pending = &paymentdomain.PendingPayment{
		GatewayOrderID:   gw.ID,
		ExpectedAmount:   req.Amount,
		ExpectedCurrency: req.Currency,
	}
	log = log.With("gateway_order_id", gw.ID)
	if gw.Amount != req.Amount || gw.Currency != req.Currency {
		log.Warn("gateway order differs from cart total",
			"requested_amount", req.Amount, "requested_currency", req.Currency,
			"gateway_amount", gw.Amount, "gateway_currency", gw.Currency)
	}
	c.advance(attempt, domain.StateAwaitingUserPayment)

	var result paymentdomain.WidgetResult
	err = c.step(ctx, "widget", func(ctx context.Context) error {
		var err error
		result, err = c.widget.Open(ctx, c.widgetOptions(gw))
		return err
	})
	if err != nil {
		return orderdomain.Order{}, "", "", paymentdomain.NewError(paymentdomain.KindUserCancelled, err)
	}
	if result.Dismissed {
		return orderdomain.Order{}, "", "", paymentdomain.Errorf(paymentdomain.KindUserCancelled, "widget dismissed")
	}
	c.advance(attempt, domain.StateVerifyingPayment)

	confirmation := result.Confirmation
	verification, message := c.verify(ctx, log, gw, confirmation)

	order, err := c.commit(ctx, attempt, gw, confirmation, verification, message)
	if err != nil {
		return orderdomain.Order{}, verification, "", err
	}
	c.advance(attempt, domain.StateCommitted)
	return order, verification, message, nil
}

// verify never fails the attempt. It reports how far the backend vouched for
// the payment and, when it refused, the message shown to the shopper.
func (c *Coordinator) verify(ctx context.Context, log *slog.Logger, gw paymentdomain.GatewayOrder, conf paymentdomain.PaymentConfirmation) (paymentdomain.Verification, string) {
	var res paymentdomain.VerifyResponse
	err := c.step(ctx, "verify", func(ctx context.Context) error {
		var err error
		res, err = c.gateway.VerifyPayment(ctx, paymentdomain.VerifyRequest{
			OrderID:             gw.ID,
			PaymentConfirmation: conf,
		})
		return err
	})

	switch {
	case errors.Is(err, paymentdomain.ErrBackendRefused):
		log.Warn("payment verification rejected", "payment_id", conf.PaymentID, "err", err)
		return paymentdomain.Rejected, rejectedMessage(conf.PaymentID)
	case err != nil:
		log.Warn("payment verification unavailable, committing unverified",
			"payment_id", conf.PaymentID, "signature_present", conf.Signature != "", "err", err)
		return paymentdomain.Unverified, ""
	case !res.Valid:
		log.Warn("payment verification rejected", "payment_id", conf.PaymentID)
		return paymentdomain.Rejected, rejectedMessage(conf.PaymentID)
	default:
		return paymentdomain.Verified, ""
	}
}

func (c *Coordinator) commit(ctx context.Context, attempt *domain.Attempt, gw paymentdomain.GatewayOrder, conf paymentdomain.PaymentConfirmation, verification paymentdomain.Verification, detail string) (orderdomain.Order, error) {
	if c.guard != nil {
		seen, err := c.guard.Seen(ctx, idempotency.CommitKey(gw.ID))
		switch {
		case err != nil:
			c.log.Warn("commit guard unavailable", "gateway_order_id", gw.ID, "err", err)
		case seen:
			return orderdomain.Order{}, fmt.Errorf("%w: %s", ErrAlreadyCommitted, gw.ID)
		}
	}

	order := orderdomain.NewOrder(
		gw.ID,
		cartdomain.FromMinorUnits(gw.Amount),
		gw.Currency,
		attempt.Cart.Lines(),
		conf.PaymentID,
		c.clock.Now(),
	)
	if err := c.ledger.Append(ctx, order); err != nil {
		return orderdomain.Order{}, fmt.Errorf("append order %s: %w", order.ID, err)
	}
	c.cart.Clear()

	if c.publisher != nil {
		event := orderdomain.OrderCommitted{
			OrderID:      order.ID,
			PaymentID:    conf.PaymentID,
			Amount:       order.Amount,
			Currency:     order.Currency,
			Verification: string(verification),
			Detail:       detail,
		}
		if err := c.publisher.Publish(ctx, order.ID, orderdomain.EventOrderCommitted, event); err != nil {
			c.log.Error("order event publish failed", "order_id", order.ID, "err", err)
		}
	}
	return order, nil
}

func (c *Coordinator) widgetOptions(gw paymentdomain.GatewayOrder) paymentdomain.WidgetOptions {
	notes := make(map[string]string, len(c.settings.Notes))
	for k, v := range c.settings.Notes {
		notes[k] = v
	}
	return paymentdomain.WidgetOptions{
		Key:         c.settings.KeyID,
		OrderID:     gw.ID,
		Amount:      gw.Amount,
		Currency:    gw.Currency,
		Name:        c.settings.Name,
		Description: c.settings.Description,
		Image:       c.settings.Image,
		Prefill:     c.settings.Prefill,
		Notes:       notes,
		Theme:       paymentdomain.Theme{Color: c.settings.ThemeColor},
	}
}

func (c *Coordinator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveCheckoutStep(name, time.Since(start).Seconds())
	return err
}

func (c *Coordinator) advance(attempt *domain.Attempt, next domain.State) {
	if err := attempt.Advance(next); err != nil {
		c.log.Error("checkout state", "attempt_id", attempt.ID, "err", err)
		return
	}
	c.setState(next)
}

func (c *Coordinator) setState(s domain.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func rejectedMessage(paymentID string) string {
	return fmt.Sprintf("Payment verification failed. Please contact support with payment id %s.", paymentID)
}

func failureMessage(kind paymentdomain.Kind) string {
	switch kind {
	case paymentdomain.KindConfiguration:
		return "Payments are not configured."
	case paymentdomain.KindWidgetLoad:
		return "Could not load the payment window. Please try again."
	case paymentdomain.KindOrderCreation:
		return "Could not start the payment. Please try again."
	case paymentdomain.KindUserCancelled:
		return "Payment cancelled."
	default:
		return "Checkout failed."
	}
}
