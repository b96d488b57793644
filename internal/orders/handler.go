package orders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Handler struct {
	repo   *OrderRepository
	logger *slog.Logger
}

func NewHandler(repo *OrderRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// HandleListOrders returns the caller's orders. Owners see everyone's.
func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var list []domain.Order
	if ident.Role == domain.RoleOwner {
		list, err = h.repo.ListAll(r.Context())
	} else {
		list, err = h.repo.ListByUser(r.Context(), ident.UserID)
	}
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// HandleGetOrder returns one order. A non-owner asking for someone else's
// order gets a 404, not a 403, so order ids cannot be probed.
func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if order == nil || (ident.Role != domain.RoleOwner && order.UserID != ident.UserID) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// HandleUpdateStatus moves an order along the fulfilment path. Transitions
// are validated against the stored status and written compare-and-swap
// style, so two concurrent updates cannot both win.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can update order status")
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown order status %q", req.Status))
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if !order.Status.CanTransitionTo(req.Status) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("cannot transition order from %s to %s", order.Status, req.Status))
		return
	}

	updated, err := h.repo.TransitionStatus(r.Context(), id, order.Status, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update order status")
		return
	}
	if !updated {
		writeError(w, http.StatusConflict, "order status changed concurrently")
		return
	}

	h.logger.Info("order status updated", "order_id", id, "from", order.Status, "to", req.Status)

	order.Status = req.Status
	writeJSON(w, http.StatusOK, order)
}

type updatePaymentRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

// HandleUpdatePayment records a payment outcome. Payment moves independently
// of fulfilment: an order can be packed before it is paid.
func (h *Handler) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can update payment status")
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.PaymentStatus.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown payment status %q", req.PaymentStatus))
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if !order.PaymentStatus.CanTransitionTo(req.PaymentStatus) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("cannot transition payment from %s to %s", order.PaymentStatus, req.PaymentStatus))
		return
	}

	updated, err := h.repo.TransitionPayment(r.Context(), id, order.PaymentStatus, req.PaymentStatus)
	if err != nil {
		h.logger.Error("failed to update payment status", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update payment status")
		return
	}
	if !updated {
		writeError(w, http.StatusConflict, "payment status changed concurrently")
		return
	}

	h.logger.Info("payment status updated", "order_id", id, "from", order.PaymentStatus, "to", req.PaymentStatus)

	order.PaymentStatus = req.PaymentStatus
	writeJSON(w, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
