package address

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type addressRequest struct {
	Label      string `json:"label"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (req *addressRequest) validate() error {
	if strings.TrimSpace(req.Line1) == "" {
		return domain.Validationf("line1 is required")
	}
	if strings.TrimSpace(req.City) == "" {
		return domain.Validationf("city is required")
	}
	if strings.TrimSpace(req.PostalCode) == "" {
		return domain.Validationf("postal_code is required")
	}
	return nil
}

func (h *Handler) HandleCreateAddress(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr := &domain.Address{
		UserID:     ident.UserID,
		Label:      strings.TrimSpace(req.Label),
		Line1:      strings.TrimSpace(req.Line1),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
	}
	if err := h.repo.Create(r.Context(), addr); err != nil {
		h.logger.Error("failed to create address", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create address")
		return
	}

	writeJSON(w, http.StatusCreated, addr)
}

func (h *Handler) HandleListAddresses(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addresses, err := h.repo.ListByUser(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("failed to list addresses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list addresses")
		return
	}
	if addresses == nil {
		addresses = []domain.Address{}
	}

	writeJSON(w, http.StatusOK, addresses)
}

func (h *Handler) HandleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}

	deleted, err := h.repo.Delete(r.Context(), id, ident.UserID)
	if err != nil {
		// Orders and subscriptions keep a foreign key to addresses, so a
		// referenced address cannot be removed.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			writeError(w, http.StatusConflict, "address is referenced by an order or subscription")
			return
		}
		h.logger.Error("failed to delete address", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete address")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
