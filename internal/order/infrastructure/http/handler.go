package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/volt-storefront/internal/order/application"
	"github.com/dmehra2102/volt-storefront/internal/report"
	"github.com/dmehra2102/volt-storefront/pkg/clock"
)

type Handler struct {
	log    *slog.Logger
	ledger *application.Ledger
	clock  clock.Clock
	loc    *time.Location
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, ledger *application.Ledger, c clock.Clock, loc *time.Location) *Handler {
	return &Handler{
		log:    log,
		ledger: ledger,
		clock:  c,
		loc:    loc,
		tracer: otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listOrders)
	r.Get("/report", h.getReport)

	return r
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	orders := h.ledger.All()
	span.SetAttributes(attribute.Int("orders", len(orders)))
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "OrderReport")
	defer span.End()

	writeJSON(w, http.StatusOK, report.Build(h.ledger.All(), h.clock.Now(), h.loc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
