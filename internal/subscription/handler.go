package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type createSubscriptionRequest struct {
	ProductID    string `json:"product_id"`
	AddressID    string `json:"address_id"`
	Quantity     int    `json:"quantity"`
	IntervalDays int    `json:"interval_days"`
}

func (h *Handler) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.service.Create(r.Context(), ident.UserID, ident.Role,
		req.ProductID, req.AddressID, req.Quantity, req.IntervalDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"user_id", ident.UserID,
		"product_id", sub.ProductID,
		"interval_days", sub.IntervalDays,
	)
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.service.List(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("failed to list subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) HandlePauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Pause)
}

func (h *Handler) HandleResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Resume)
}

func (h *Handler) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Cancel)
}

// HandleRunRenewals triggers a renewal pass over every due subscription.
// Owner only; deployments call it from cron.
func (h *Handler) HandleRunRenewals(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can run renewals")
		return
	}

	result, err := h.service.RunRenewals(r.Context())
	if err != nil {
		h.logger.Error("renewal run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "renewal run failed")
		return
	}

	h.logger.Info("renewal run finished",
		"renewed", result.Renewed,
		"paused", result.Paused,
		"failed", result.Failed,
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (*domain.Subscription, error)) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	sub, err := op(r.Context(), ident.UserID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Error("subscription operation failed", "error", err)
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
