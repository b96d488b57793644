package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handler struct {
	service *Service
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewHandler(service *Service, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{service: service, metrics: metrics, logger: logger}
}

type checkoutRequest struct {
	AddressID string `json:"address_id"`
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Place(r.Context(), ident.UserID, req.AddressID)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.logger.Info("order placed",
		"order_id", order.ID,
		"user_id", ident.UserID,
		"final_amount", order.FinalAmount,
		"items", len(order.Items),
	)
	writeJSON(w, http.StatusCreated, order)
}

// writeCheckoutError maps checkout failures onto status codes and counts
// them by reason.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		h.metrics.CheckoutFailed(ctx, "validation")
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}

	var oos *domain.OutOfStockError
	if errors.As(err, &oos) {
		h.metrics.CheckoutFailed(ctx, "out_of_stock")
		writeError(w, http.StatusBadRequest, oos.Error())
		return
	}

	if errors.Is(err, domain.ErrEmptyCart) {
		h.metrics.CheckoutFailed(ctx, "empty_cart")
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		h.metrics.CheckoutFailed(ctx, "address_not_found")
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	h.metrics.CheckoutFailed(ctx, "internal")
	h.logger.Error("checkout failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
