package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/volt-storefront/internal/orchestrator/application"
	paymentdomain "github.com/dmehra2102/volt-storefront/internal/payment/domain"
	"github.com/dmehra2102/volt-storefront/internal/payment/infrastructure/widget"
)

type WidgetSessions interface {
	Pending() (paymentdomain.WidgetOptions, bool)
	Complete(orderID string, res paymentdomain.WidgetResult) error
}

type Handler struct {
	log     *slog.Logger
	coord   *application.Coordinator
	widget  WidgetSessions
	runCtx  context.Context
	payMW   []func(http.Handler) http.Handler
	tracer  trace.Tracer
	running sync.WaitGroup
}

// NewHandler serves checkout. Attempts started over HTTP run on runCtx so
// they outlive the request that started them.
func NewHandler(runCtx context.Context, log *slog.Logger, coord *application.Coordinator, w WidgetSessions, payMiddleware ...func(http.Handler) http.Handler) *Handler {
	return &Handler{
		log:    log,
		coord:  coord,
		widget: w,
		runCtx: runCtx,
		payMW:  payMiddleware,
		tracer: otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.With(h.payMW...).Post("/pay", h.pay)
	r.Get("/status", h.status)
	r.Get("/widget", h.pendingWidget)
	r.Post("/widget/{orderID}/success", h.widgetSuccess)
	r.Post("/widget/{orderID}/dismiss", h.widgetDismiss)

	return r
}

// Wait blocks until every attempt started by this handler has finished.
func (h *Handler) Wait() {
	h.running.Wait()
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "StartCheckout")
	defer span.End()

	attempt, err := h.coord.Begin()
	switch {
	case errors.Is(err, application.ErrEmptyCart), errors.Is(err, application.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.running.Add(1)
	go func() {
		defer h.running.Done()
		ctx := trace.ContextWithSpanContext(h.runCtx, span.SpanContext())
		_, _ = h.coord.Run(ctx, attempt)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "started",
		"attempt_id": attempt.ID,
		"receipt":    attempt.Receipt,
	})
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Status())
}

func (h *Handler) pendingWidget(w http.ResponseWriter, _ *http.Request) {
	opts, ok := h.widget.Pending()
	if !ok {
		writeError(w, http.StatusNotFound, "no payment window open")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) widgetSuccess(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var conf paymentdomain.PaymentConfirmation
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if conf.OrderID != "" && conf.OrderID != orderID {
		writeError(w, http.StatusBadRequest, "razorpay_order_id does not match")
		return
	}
	h.complete(w, orderID, paymentdomain.WidgetResult{Confirmation: conf})
}

func (h *Handler) widgetDismiss(w http.ResponseWriter, r *http.Request) {
	h.complete(w, chi.URLParam(r, "orderID"), paymentdomain.WidgetResult{Dismissed: true})
}

func (h *Handler) complete(w http.ResponseWriter, orderID string, res paymentdomain.WidgetResult) {
	err := h.widget.Complete(orderID, res)
	if errors.Is(err, widget.ErrNoSession) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("widget callback", "gateway_order_id", orderID, "dismissed", res.Dismissed)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
