package cart

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

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.Get(r.Context(), ident.UserID, ident.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.AddItem(r.Context(), ident.UserID, ident.Role, req.ProductID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.CartMutated(r.Context(), "add_item")
	h.logger.Info("cart item added", "user_id", ident.UserID, "product_id", req.ProductID, "quantity", req.Quantity)
	writeJSON(w, http.StatusOK, view)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	itemID, ok := httpx.PathUUID(r, "itemId")
	if !ok {
		writeError(w, http.StatusNotFound, "cart item not found")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.UpdateItemQuantity(r.Context(), ident.UserID, ident.Role, itemID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.CartMutated(r.Context(), "update_item")
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	itemID, ok := httpx.PathUUID(r, "itemId")
	if !ok {
		writeError(w, http.StatusNotFound, "cart item not found")
		return
	}

	view, err := h.service.RemoveItem(r.Context(), ident.UserID, ident.Role, itemID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.CartMutated(r.Context(), "remove_item")
	writeJSON(w, http.StatusOK, view)
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.ApplyCoupon(r.Context(), ident.UserID, ident.Role, req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.CartMutated(r.Context(), "apply_coupon")
	h.logger.Info("coupon applied", "user_id", ident.UserID, "code", view.CouponCode)
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.RemoveCoupon(r.Context(), ident.UserID, ident.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.CartMutated(r.Context(), "remove_coupon")
	writeJSON(w, http.StatusOK, view)
}

// writeServiceError maps service failures onto status codes. Anything not
// recognized is a 500 and gets logged; expected rejections do not.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}

	var oos *domain.OutOfStockError
	if errors.As(err, &oos) {
		writeError(w, http.StatusBadRequest, oos.Error())
		return
	}

	var ic *domain.InvalidCouponError
	if errors.As(err, &ic) {
		writeError(w, http.StatusBadRequest, ic.Error())
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, domain.ErrEmptyCart) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Error("cart operation failed", "error", err, "path", r.URL.Path)
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
