package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/dmehra2102/volt-storefront/internal/cart/application"
	cartdomain "github.com/dmehra2102/volt-storefront/internal/cart/domain"
	"github.com/dmehra2102/volt-storefront/internal/orchestrator/domain"
	orderapp "github.com/dmehra2102/volt-storefront/internal/order/application"
	orderdomain "github.com/dmehra2102/volt-storefront/internal/order/domain"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
	"github.com/dmehra2102/volt-storefront/pkg/idempotency"
	"github.com/dmehra2102/volt-storefront/pkg/logging"
)

var (
	marg = cartdomain.Item{ID: "marg", Name: "Margherita", Price: decimal.NewFromInt(299)}
	pep  = cartdomain.Item{ID: "pep", Name: "Pepperoni", Price: decimal.NewFromInt(399)}
	now  = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
)

type fakeGateway struct {
	mu        sync.Mutex
	creates   []paymentdomain.CreateOrderRequest
	verifies  []paymentdomain.VerifyRequest
	createErr error
	verifyRes paymentdomain.VerifyResponse
	verifyErr error
	shortBy   int64
}

func (g *fakeGateway) CreateOrder(_ context.Context, req paymentdomain.CreateOrderRequest) (paymentdomain.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates = append(g.creates, req)
	if g.createErr != nil {
		return paymentdomain.GatewayOrder{}, g.createErr
	}
	return paymentdomain.GatewayOrder{ID: fmt.Sprintf("order_%d", len(g.creates)), Amount: req.Amount - g.shortBy, Currency: req.Currency}, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies = append(g.verifies, req)
	return g.verifyRes, g.verifyErr
}

type fakeWidget struct {
	loadErr error
	opened  []paymentdomain.WidgetOptions
	result  paymentdomain.WidgetResult
	onOpen  func()
}

func (w *fakeWidget) Load(context.Context) error { return w.loadErr }

func (w *fakeWidget) Open(_ context.Context, opts paymentdomain.WidgetOptions) (paymentdomain.WidgetResult, error) {
	w.opened = append(w.opened, opts)
	if w.onOpen != nil {
		w.onOpen()
	}
	res := w.result
	if !res.Dismissed && res.Confirmation.OrderID == "" {
		res.Confirmation.OrderID = opts.OrderID
	}
	return res, nil
}

type memStore struct {
	mu     sync.Mutex
	orders []orderdomain.Order
}

func (m *memStore) Load(context.Context) ([]orderdomain.Order, error) { return nil, nil }
func (m *memStore) Save(_ context.Context, o []orderdomain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = o
	return nil
}

type recordingPublisher struct {
	events []orderdomain.OrderCommitted
}

func (p *recordingPublisher) Publish(_ context.Context, _, _ string, payload any) error {
	p.events = append(p.events, payload.(orderdomain.OrderCommitted))
	return nil
}

type harness struct {
	coord     *Coordinator
	cart      *cartapp.Store
	ledger    *orderapp.Ledger
	store     *memStore
	gateway   *fakeGateway
	widget    *fakeWidget
	publisher *recordingPublisher
}

func newHarness(t *testing.T, settings *Settings, opts ...Option) *harness {
	t.Helper()
	log := logging.Discard()
	h := &harness{
		cart:      cartapp.NewStore(),
		store:     &memStore{},
		gateway:   &fakeGateway{verifyRes: paymentdomain.VerifyResponse{Valid: true}},
		publisher: &recordingPublisher{},
		widget: &fakeWidget{result: paymentdomain.WidgetResult{
			Confirmation: paymentdomain.PaymentConfirmation{PaymentID: "pay_123", Signature: "sig"},
		}},
	}
	h.ledger = orderapp.NewLedger(log, h.store, orderapp.NewSyncPersister(log, h.store))
	h.ledger.Load(context.Background())

	s := Settings{
		KeyID:      "rzp_test_key",
		APIBaseURL: "http://backend",
		Currency:   "INR",
		Name:       "Volt Pizza",
		Notes:      map[string]string{"platform": "web", "app": "volt-pizza"},
	}
	if settings != nil {
		s = *settings
	}
	opts = append([]Option{WithClock(clock.NewFixed(now)), WithPublisher(h.publisher)}, opts...)
	h.coord = NewCoordinator(log, h.cart, h.ledger, h.gateway, h.widget, s, opts...)
	return h
}

func (h *harness) fillScenarioCart() {
	h.cart.AddItem(marg)
	h.cart.AddItem(marg)
	h.cart.AddItem(pep)
}

func TestPay_HappyPath(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()
	require.True(t, h.cart.Total().Equal(decimal.NewFromInt(997)))

	out, err := h.coord.Pay(context.Background())
	require.NoError(t, err)

	require.Len(t, h.gateway.creates, 1)
	assert.Equal(t, int64(99700), h.gateway.creates[0].Amount)
	assert.Equal(t, "INR", h.gateway.creates[0].Currency)
	assert.Regexp(t, `^rcpt_1741089600000_[0-9a-f]{8}$`, h.gateway.creates[0].Receipt)

	require.Len(t, h.widget.opened, 1)
	opened := h.widget.opened[0]
	assert.Equal(t, "rzp_test_key", opened.Key)
	assert.Equal(t, "order_1", opened.OrderID)
	assert.Equal(t, int64(99700), opened.Amount)
	assert.Equal(t, "web", opened.Notes["platform"])

	require.Len(t, h.gateway.verifies, 1)
	assert.Equal(t, "order_1", h.gateway.verifies[0].OrderID)
	assert.Equal(t, "pay_123", h.gateway.verifies[0].PaymentID)

	assert.Equal(t, domain.StateCommitted, out.State)
	assert.Equal(t, paymentdomain.Verified, out.Verification)
	require.NotNil(t, out.Order)
	assert.Equal(t, "order_1", out.Order.ID)
	assert.True(t, out.Order.Amount.Equal(decimal.NewFromInt(997)))
	assert.Equal(t, "INR", out.Order.Currency)
	assert.Equal(t, orderdomain.StatusPaid, out.Order.Status)
	require.NotNil(t, out.Order.PaymentID)
	assert.Equal(t, "pay_123", *out.Order.PaymentID)
	assert.Len(t, out.Order.Items, 2)

	orders := h.ledger.All()
	require.Len(t, orders, 1)
	assert.Equal(t, out.Order.ID, orders[0].ID)
	assert.Len(t, h.store.orders, 1)
	assert.True(t, h.cart.Snapshot().IsEmpty())

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "verified", h.publisher.events[0].Verification)

	st := h.coord.Status()
	assert.False(t, st.Busy)
	assert.Equal(t, domain.StateCommitted, st.State)
	require.NotNil(t, st.Last)
	assert.Equal(t, "order_1", st.Last.GatewayOrderID)
}

func TestPay_VerificationUnreachableStillCommits(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()
	h.gateway.verifyErr = errors.New("connection refused")

	out, err := h.coord.Pay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateCommitted, out.State)
	assert.Equal(t, paymentdomain.Unverified, out.Verification)
	assert.Equal(t, paymentdomain.KindVerificationSoftFailure, out.Kind)
	assert.Len(t, h.gateway.verifies, 1)
	assert.Len(t, h.ledger.All(), 1)
	assert.True(t, h.cart.Snapshot().IsEmpty())
	assert.Equal(t, "unverified", h.publisher.events[0].Verification)
}

func TestPay_VerificationRejectedStillCommits(t *testing.T) {
	cases := map[string]func(g *fakeGateway){
		"invalid signature": func(g *fakeGateway) { g.verifyRes = paymentdomain.VerifyResponse{Valid: false} },
		"non-2xx":           func(g *fakeGateway) { g.verifyErr = fmt.Errorf("status 400: %w", paymentdomain.ErrBackendRefused) },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.fillScenarioCart()
			setup(h.gateway)

			out, err := h.coord.Pay(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.StateCommitted, out.State)
			assert.Equal(t, paymentdomain.Rejected, out.Verification)
			assert.Equal(t, paymentdomain.KindVerificationRejected, out.Kind)
			assert.Contains(t, out.Message, "pay_123")
			assert.Len(t, h.ledger.All(), 1)
			assert.Equal(t, "rejected", h.publisher.events[0].Verification)
		})
	}
}

func TestPay_FailuresLeaveCartUntouched(t *testing.T) {
	cases := []struct {
		name     string
		settings *Settings
		setup    func(h *harness)
		kind     paymentdomain.Kind
	}{
		{
			name:     "missing configuration",
			settings: &Settings{Currency: "INR"},
			kind:     paymentdomain.KindConfiguration,
		},
		{
			name:  "widget cannot load",
			setup: func(h *harness) { h.widget.loadErr = errors.New("script 404") },
			kind:  paymentdomain.KindWidgetLoad,
		},
		{
			name:  "create order fails",
			setup: func(h *harness) { h.gateway.createErr = errors.New("status 502") },
			kind:  paymentdomain.KindOrderCreation,
		},
		{
			name:  "shopper dismisses",
			setup: func(h *harness) { h.widget.result = paymentdomain.WidgetResult{Dismissed: true} },
			kind:  paymentdomain.KindUserCancelled,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.settings)
			h.fillScenarioCart()
			if tc.setup != nil {
				tc.setup(h)
			}
			before := h.cart.Snapshot()

			out, err := h.coord.Pay(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.kind, paymentdomain.KindOf(err))
			assert.Equal(t, domain.StateFailed, out.State)
			assert.Equal(t, tc.kind, out.Kind)
			assert.NotEmpty(t, out.Message)
			assert.Nil(t, out.Order)

			assert.Empty(t, h.ledger.All())
			assert.Empty(t, h.gateway.verifies)
			assert.Empty(t, h.publisher.events)
			assert.Equal(t, before.Lines(), h.cart.Snapshot().Lines())
			assert.False(t, h.coord.Busy())
		})
	}
}

func TestPay_WidgetLoadPrecedesOrderCreation(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()
	h.widget.loadErr = errors.New("offline")

	_, err := h.coord.Pay(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.gateway.creates)
}

func TestPay_EmptyCart(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.coord.Pay(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, h.gateway.creates)
	assert.False(t, h.coord.Busy())
}

func TestBegin_OneAttemptAtATime(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()

	attempt, err := h.coord.Begin()
	require.NoError(t, err)
	assert.True(t, h.coord.Busy())

	_, err = h.coord.Begin()
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = h.coord.Pay(context.Background())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	_, err = h.coord.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.False(t, h.coord.Busy())
	assert.Len(t, h.gateway.creates, 1)
}

func TestPay_EachAttemptGetsFreshGatewayOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()
	h.widget.result = paymentdomain.WidgetResult{Dismissed: true}

	_, err := h.coord.Pay(context.Background())
	require.Error(t, err)

	h.widget.result = paymentdomain.WidgetResult{Confirmation: paymentdomain.PaymentConfirmation{PaymentID: "pay_9"}}
	out, err := h.coord.Pay(context.Background())
	require.NoError(t, err)

	require.Len(t, h.gateway.creates, 2)
	assert.NotEqual(t, h.gateway.creates[0].Receipt, h.gateway.creates[1].Receipt)
	assert.Equal(t, "order_2", out.Order.ID)
	assert.Equal(t, "order_2", h.gateway.verifies[0].OrderID)
}

func TestPay_OrderUsesCartAtAttemptStart(t *testing.T) {
	h := newHarness(t, nil)
	h.fillScenarioCart()
	h.widget.onOpen = func() { h.cart.AddItem(pep) }

	out, err := h.coord.Pay(context.Background())
	require.NoError(t, err)

	line, ok := cartdomain.NewCart(out.Order.Items...).Line("pep")
	require.True(t, ok)
	assert.Equal(t, 1, line.Qty)
	assert.True(t, out.Order.Amount.Equal(decimal.NewFromInt(997)))
}

func TestPay_CommitGuardBlocksReplay(t *testing.T) {
	guard := idempotency.NewMemory(clock.NewFixed(now), time.Hour)
	_, err := guard.Seen(context.Background(), idempotency.CommitKey("order_1"))
	require.NoError(t, err)

	h := newHarness(t, nil, WithCommitGuard(guard))
	h.fillScenarioCart()

	out, err := h.coord.Pay(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
	assert.Equal(t, domain.StateFailed, out.State)
	assert.Empty(t, h.ledger.All())
	assert.False(t, h.cart.Snapshot().IsEmpty())
}

func TestRun_PendingPaymentKeepsRequestedAmount(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.shortBy = 100
	var buf bytes.Buffer
	log := logging.New(logging.Options{Output: &buf, Level: "warn"})
	h.coord = NewCoordinator(log, h.cart, h.ledger, h.gateway, h.widget, h.coord.settings, WithClock(clock.NewFixed(now)))
	h.fillScenarioCart()

	attempt, err := h.coord.Begin()
	require.NoError(t, err)
	out, err := h.coord.Run(context.Background(), attempt)
	require.NoError(t, err)

	require.NotNil(t, attempt.Pending)
	assert.Equal(t, "order_1", attempt.Pending.GatewayOrderID)
	assert.Equal(t, int64(99700), attempt.Pending.ExpectedAmount)
	assert.Equal(t, "INR", attempt.Pending.ExpectedCurrency)
	assert.Contains(t, buf.String(), "gateway order differs from cart total")
	assert.Contains(t, buf.String(), `"gateway_amount":99600`)

	require.NotNil(t, out.Order)
	assert.True(t, out.Order.Amount.Equal(decimal.NewFromInt(996)))
}

func TestRun_MatchingGatewayOrderLogsNoMismatch(t *testing.T) {
	h := newHarness(t, nil)
	var buf bytes.Buffer
	log := logging.New(logging.Options{Output: &buf, Level: "warn"})
	h.coord = NewCoordinator(log, h.cart, h.ledger, h.gateway, h.widget, h.coord.settings, WithClock(clock.NewFixed(now)))
	h.fillScenarioCart()

	_, err := h.coord.Pay(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "gateway order differs")
}
