package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handler struct {
	repo     *ProductRepository
	cache    *ProductCache
	producer *messaging.Producer
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// NewHandler builds the catalog handler. cache and producer may be nil; the
// handler degrades to plain database reads and skips event publishing.
func NewHandler(repo *ProductRepository, cache *ProductCache, producer *messaging.Producer, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.repo.List(r.Context(), ident.Role == domain.RoleOwner)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if products == nil {
		products = []domain.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := httpx.PathUUID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	product, err := h.lookupProduct(r, id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil || (!product.Active && ident.Role != domain.RoleOwner) {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// lookupProduct consults the cache first. Cache reads may trail a stock
// change by up to the TTL; checkout revalidates stock under row locks.
func (h *Handler) lookupProduct(r *http.Request, id string) (*domain.Product, error) {
	if h.cache != nil {
		product, err := h.cache.Get(r.Context(), id)
		if err != nil {
			h.logger.Warn("product cache read failed", "error", err, "product_id", id)
		} else if product != nil {
			return product, nil
		}
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil || product == nil {
		return product, err
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), product); err != nil {
			h.logger.Warn("product cache write failed", "error", err, "product_id", id)
		}
	}

	return product, nil
}

type productRequest struct {
	Title            string `json:"title"`
	SKU              string `json:"sku"`
	CategoryID       string `json:"category_id"`
	ConsumerPrice    int64  `json:"consumer_price"`
	DistributorPrice int64  `json:"distributor_price"`
	StockQuantity    int    `json:"stock_quantity"`
	Active           bool   `json:"active"`
}

func (req *productRequest) validate(creating bool) error {
	if req.Title == "" {
		return domain.Validationf("title is required")
	}
	if creating && req.SKU == "" {
		return domain.Validationf("sku is required")
	}
	if req.CategoryID != "" {
		if _, err := uuid.Parse(req.CategoryID); err != nil {
			return domain.Validationf("category_id must be a UUID")
		}
	}
	if req.ConsumerPrice <= 0 || req.DistributorPrice <= 0 {
		return domain.Validationf("prices must be positive")
	}
	if creating && req.StockQuantity < 0 {
		return domain.Validationf("stock_quantity must not be negative")
	}
	return nil
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(true); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
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

	product := &domain.Product{
		Title:            req.Title,
		SKU:              req.SKU,
		CategoryID:       req.CategoryID,
		ConsumerPrice:    req.ConsumerPrice,
		DistributorPrice: req.DistributorPrice,
		StockQuantity:    req.StockQuantity,
		Active:           req.Active,
		OwnerID:          ident.UserID,
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			h.writeError(w, http.StatusConflict, "sku already exists")
			return
		}
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "sku", product.SKU)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
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
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(false); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
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

	product, err := h.repo.Update(r.Context(), &domain.Product{
		ID:               id,
		Title:            req.Title,
		CategoryID:       req.CategoryID,
		ConsumerPrice:    req.ConsumerPrice,
		DistributorPrice: req.DistributorPrice,
		Active:           req.Active,
	})
	if err != nil {
		h.logger.Error("failed to update product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.invalidateCache(r, id)

	h.logger.Info("product updated", "product_id", id)
	h.writeJSON(w, http.StatusOK, product)
}

type adjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
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
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		h.writeError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	newStock, err := h.repo.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		if errors.Is(err, ErrNegativeStock) {
			h.writeError(w, http.StatusBadRequest, "stock cannot go negative")
			return
		}
		h.logger.Error("failed to adjust stock", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.invalidateCache(r, id)
	h.metrics.StockAdjusted(r.Context())

	if h.producer != nil {
		event := domain.StockAdjustedEvent{
			ProductID:  id,
			Actor:      ident.UserID,
			Delta:      req.Delta,
			NewStock:   newStock,
			Reason:     req.Reason,
			AdjustedAt: time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), domain.TopicStockAdjusted, id, event); err != nil {
			h.logger.Error("failed to publish stock adjusted event", "error", err, "product_id", id)
		}
	}

	product.StockQuantity = newStock
	h.logger.Info("stock adjusted", "product_id", id, "delta", req.Delta, "stock", newStock)
	h.writeJSON(w, http.StatusOK, product)
}

type categoryRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ident, err := httpx.IdentityFrom(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ident.Role != domain.RoleOwner {
		h.writeError(w, http.StatusForbidden, "owner role required")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ParentID != "" {
		if _, err := uuid.Parse(req.ParentID); err != nil {
			h.writeError(w, http.StatusBadRequest, "parent_id must be a UUID")
			return
		}
		exists, err := h.repo.CategoryExists(r.Context(), req.ParentID)
		if err != nil {
			h.logger.Error("failed to check category", "error", err, "category_id", req.ParentID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !exists {
			h.writeError(w, http.StatusBadRequest, "unknown parent category")
			return
		}
	}

	category := &domain.Category{Name: req.Name, ParentID: req.ParentID}
	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			h.writeError(w, http.StatusConflict, "category already exists")
			return
		}
		h.logger.Error("failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("category created", "category_id", category.ID, "name", category.Name)
	h.writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if categories == nil {
		categories = []domain.Category{}
	}
	h.writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) invalidateCache(r *http.Request, id string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), id); err != nil {
		h.logger.Warn("product cache invalidation failed", "error", err, "product_id", id)
	}
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
