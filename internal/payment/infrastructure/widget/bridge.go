package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

var (
	ErrNoSession     = errors.New("no open widget for this order")
	ErrSessionExists = errors.New("widget already open for this order")
)

type session struct {
	opts   domain.WidgetOptions
	result chan domain.WidgetResult
}

// Bridge hands widget sessions to the browser and waits for its callback.
// The browser polls Pending, runs the hosted widget, and reports back
// through Complete.
type Bridge struct {
	log        *slog.Logger
	scriptURL  string
	httpClient *http.Client

	loadMu sync.Mutex
	loaded bool

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

func NewBridge(log *slog.Logger, scriptURL string, timeout time.Duration) *Bridge {
	return &Bridge{
		log:        log,
		scriptURL:  scriptURL,
		httpClient: &http.Client{Timeout: timeout},
		sessions:   make(map[string]*session),
	}
}

// Load checks once that the widget script is reachable. A failed probe is
// retried on the next call.
func (b *Bridge) Load(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	if b.loaded || b.scriptURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.scriptURL, nil)
	if err != nil {
		return fmt.Errorf("build script request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch widget script: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch widget script: status %d", resp.StatusCode)
	}

	b.loaded = true
	b.log.Info("widget script loaded", "url", b.scriptURL)
	return nil
}

// Open publishes opts and blocks until the shopper pays, dismisses the
// widget, or ctx ends.
func (b *Bridge) Open(ctx context.Context, opts domain.WidgetOptions) (domain.WidgetResult, error) {
	s := &session{opts: opts, result: make(chan domain.WidgetResult, 1)}

	b.mu.Lock()
	if _, ok := b.sessions[opts.OrderID]; ok {
		b.mu.Unlock()
		return domain.WidgetResult{}, ErrSessionExists
	}
	b.sessions[opts.OrderID] = s
	b.order = append(b.order, opts.OrderID)
	b.mu.Unlock()

	defer b.remove(opts.OrderID)

	b.log.Info("widget opened", "gateway_order_id", opts.OrderID, "amount", opts.Amount)

	select {
	case res := <-s.result:
		return res, nil
	case <-ctx.Done():
		return domain.WidgetResult{}, ctx.Err()
	}
}

// Pending returns the oldest open widget, if any.
func (b *Bridge) Pending() (domain.WidgetOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) == 0 {
		return domain.WidgetOptions{}, false
	}
	return b.sessions[b.order[0]].opts, true
}

// Complete delivers the browser's callback for orderID. Only the first
// callback per session counts.
func (b *Bridge) Complete(orderID string, res domain.WidgetResult) error {
	b.mu.Lock()
	s, ok := b.sessions[orderID]
	if ok {
		delete(b.sessions, orderID)
		b.dropLocked(orderID)
	}
	b.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	if !res.Dismissed && res.Confirmation.OrderID == "" {
		res.Confirmation.OrderID = orderID
	}
	s.result <- res
	return nil
}

func (b *Bridge) remove(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, orderID)
	b.dropLocked(orderID)
}

func (b *Bridge) dropLocked(orderID string) {
	for i, id := range b.order {
		if id == orderID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
