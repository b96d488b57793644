package discount

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type couponRequest struct {
	Code         string          `json:"code"`
	Kind         string          `json:"kind"`
	Amount       int64           `json:"amount"`
	Percent      decimal.Decimal `json:"percent"`
	MinCartValue int64           `json:"min_cart_value"`
	ExpiresAt    *time.Time      `json:"expires_at"`
}

func (req *couponRequest) validate() error {
	if NormalizeCode(req.Code) == "" {
		return domain.Validationf("code is required")
	}
	switch domain.CouponKind(req.Kind) {
	case domain.CouponFixed:
		if req.Amount <= 0 {
			return domain.Validationf("fixed coupons need a positive amount")
		}
	case domain.CouponPercent:
		if !req.Percent.IsPositive() || req.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return domain.Validationf("percent must be in (0, 100]")
		}
	default:
		return domain.Validationf("kind must be fixed or percent")
	}
	if req.MinCartValue < 0 {
		return domain.Validationf("min_cart_value must not be negative")
	}
	return nil
}

func (h *Handler) HandleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon := &domain.Coupon{
		Code:         req.Code,
		Kind:         domain.CouponKind(req.Kind),
		Amount:       req.Amount,
		Percent:      req.Percent,
		MinCartValue: req.MinCartValue,
		ExpiresAt:    req.ExpiresAt,
		Active:       true,
	}

	if err := h.repo.CreateCoupon(r.Context(), coupon); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			h.writeError(w, http.StatusConflict, "coupon code already exists")
			return
		}
		h.logger.Error("failed to create coupon", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("coupon created", "coupon_id", coupon.ID, "code", coupon.Code)
	h.writeJSON(w, http.StatusCreated, coupon)
}

func (h *Handler) HandleListCoupons(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	coupons, err := h.repo.ListCoupons(r.Context())
	if err != nil {
		h.logger.Error("failed to list coupons", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	h.writeJSON(w, http.StatusOK, coupons)
}

func (h *Handler) HandleDeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "coupon not found")
		return
	}

	deactivated, err := h.repo.DeactivateCoupon(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to deactivate coupon", "error", err, "coupon_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deactivated {
		h.writeError(w, http.StatusNotFound, "coupon not found")
		return
	}

	h.logger.Info("coupon deactivated", "coupon_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type ruleRequest struct {
	ProductID       string          `json:"product_id"`
	CategoryID      string          `json:"category_id"`
	MinQuantity     int             `json:"min_quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (req *ruleRequest) validate() error {
	if req.ProductID != "" && req.CategoryID != "" {
		return domain.Validationf("rule scope must be a product, a category, or global; not both")
	}
	if req.ProductID != "" {
		if _, err := uuid.Parse(req.ProductID); err != nil {
			return domain.Validationf("product_id must be a UUID")
		}
	}
	if req.CategoryID != "" {
		if _, err := uuid.Parse(req.CategoryID); err != nil {
			return domain.Validationf("category_id must be a UUID")
		}
	}
	if req.MinQuantity <= 0 {
		return domain.Validationf("min_quantity must be positive")
	}
	if !req.DiscountPercent.IsPositive() || req.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return domain.Validationf("discount_percent must be in (0, 100]")
	}
	return nil
}

func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ProductID != "" {
		exists, err := h.repo.ProductExists(r.Context(), req.ProductID)
		if err != nil {
			h.logger.Error("failed to check product", "error", err, "product_id", req.ProductID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !exists {
			h.writeError(w, http.StatusBadRequest, "unknown product")
			return
		}
	}
	if req.CategoryID != "" {
		exists, err := h.repo.CategoryExists(r.Context(), req.CategoryID)
		if err != nil {
			h.logger.Error("failed to check category", "error", err, "category_id", req.CategoryID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !exists {
			h.writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
	}

	rule := &domain.BulkDiscountRule{
		ProductID:       req.ProductID,
		CategoryID:      req.CategoryID,
		MinQuantity:     req.MinQuantity,
		DiscountPercent: req.DiscountPercent,
		Active:          true,
	}

	if err := h.repo.CreateRule(r.Context(), rule); err != nil {
		h.logger.Error("failed to create rule", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("bulk discount rule created", "rule_id", rule.ID, "min_quantity", rule.MinQuantity)
	h.writeJSON(w, http.StatusCreated, rule)
}

func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	rules, err := h.repo.ListRules(r.Context(), false)
	if err != nil {
		h.logger.Error("failed to list rules", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if rules == nil {
		rules = []domain.BulkDiscountRule{}
	}
	h.writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) HandleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "rule not found")
		return
	}

	deactivated, err := h.repo.DeactivateRule(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to deactivate rule", "error", err, "rule_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deactivated {
		h.writeError(w, http.StatusNotFound, "rule not found")
		return
	}

	h.logger.Info("bulk discount rule deactivated", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
