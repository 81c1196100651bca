package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/volt-storefront/internal/cart/application"
	"github.com/dmehra2102/volt-storefront/internal/cart/domain"
)

type Handler struct {
	log   *slog.Logger
	store *application.Store
}

func NewHandler(log *slog.Logger, store *application.Store) *Handler {
	return &Handler{log: log, store: store}
}

type cartView struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
}

type addItemReq struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

type setQtyReq struct {
	Qty *int `json:"qty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{id}", h.setQuantity)

	return r
}

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, view(h.store.Snapshot()))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Price == nil || req.Price.IsNegative() {
		http.Error(w, "id and a non-negative price are required", http.StatusBadRequest)
		return
	}

	c := h.store.AddItem(domain.Item{ID: req.ID, Name: req.Name, Price: *req.Price})
	h.log.Debug("cart item added", "id", req.ID, "count", c.Count())
	writeJSON(w, http.StatusOK, view(c))
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Qty == nil {
		http.Error(w, "qty is required", http.StatusBadRequest)
		return
	}

	c := h.store.SetQuantity(chi.URLParam(r, "id"), *req.Qty)
	writeJSON(w, http.StatusOK, view(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, _ *http.Request) {
	h.store.Clear()
	writeJSON(w, http.StatusOK, view(h.store.Snapshot()))
}

func view(c domain.Cart) cartView {
	lines := c.Lines()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return cartView{Lines: lines, Total: domain.Total(c), Count: c.Count()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
