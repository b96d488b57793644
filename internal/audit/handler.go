package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type Handler struct {
	recorder *Recorder
	logger   *slog.Logger
}

func NewHandler(recorder *Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// HandleListAudit returns audit entries, newest first. Owner only. Filters
// come from the entity and entity_id query parameters.
func (h *Handler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can read the audit log")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	entries, err := h.recorder.List(r.Context(),
		r.URL.Query().Get("entity"), r.URL.Query().Get("entity_id"), limit)
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
