package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/volt-storefront/internal/payment/domain"
)

const (
	createOrderPath   = "/api/create-order"
	verifyPaymentPath = "/api/verify-payment"
	maxBodyBytes      = 1 << 20
)

var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned when the backend answered with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrBackendRefused }

// Client talks to the merchant backend that fronts the payment gateway.
type Client struct {
	log        *slog.Logger
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		log:        log,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("payment-backend"),
	}
}

// CreateOrder opens a gateway order. The response must carry an id and an amount.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.GatewayOrder, error) {
	ctx, span := c.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.Int64("amount", req.Amount),
		attribute.String("receipt", req.Receipt),
	))
	defer span.End()

	var raw struct {
		ID       string `json:"id"`
		Amount   *int64 `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := c.post(ctx, createOrderPath, req, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.GatewayOrder{}, err
	}
	if raw.ID == "" || raw.Amount == nil {
		err := fmt.Errorf("create order: %w: missing id or amount", ErrMalformedResponse)
		span.SetStatus(codes.Error, err.Error())
		return domain.GatewayOrder{}, err
	}

	currency := raw.Currency
	if currency == "" {
		currency = req.Currency
	}
	span.SetAttributes(attribute.String("gateway_order_id", raw.ID))
	return domain.GatewayOrder{ID: raw.ID, Amount: *raw.Amount, Currency: currency}, nil
}

// VerifyPayment asks the backend to check the gateway signature. A
// *StatusError means the backend was reachable but refused.
func (c *Client) VerifyPayment(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResponse, error) {
	ctx, span := c.tracer.Start(ctx, "VerifyPayment", trace.WithAttributes(
		attribute.String("gateway_order_id", req.PaymentConfirmation.OrderID),
		attribute.String("gateway_payment_id", req.PaymentID),
	))
	defer span.End()

	var res domain.VerifyResponse
	if err := c.post(ctx, verifyPaymentPath, req, &res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.VerifyResponse{}, err
	}
	span.SetAttributes(attribute.Bool("valid", res.Valid))
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("backend call", "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
