package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stock-service/internal/cache"
	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/store"
	"stock-service/internal/warehouse"
	"stock-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StockHandler exposes the stock unit transitions and the move ledger
// over HTTP. Every mutation resolves the warehouse first; an empty
// warehouse code falls through to the marketplace default.
type StockHandler struct {
	logger   *zap.Logger
	store    *store.StockStore
	resolver *warehouse.Resolver
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewStockHandler(logger *zap.Logger, st *store.StockStore, resolver *warehouse.Resolver, c cache.Cache, cacheTTL time.Duration) *StockHandler {
	return &StockHandler{
		logger:   logger,
		store:    st,
		resolver: resolver,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Receive handles POST /api/v1/stock/receive
func (h *StockHandler) Receive(c *gin.Context) {
	var req ReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	updated, err := h.store.Receive(c.Request.Context(), unit, wh.ID, req.Qty)
	if err != nil {
		h.respondTransitionError(c, "receive", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), wh.Code)
	c.JSON(http.StatusOK, stockResponse(updated, wh.Code))
}

// Adjust handles POST /api/v1/stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	updated, err := h.store.Adjust(c.Request.Context(), unit, wh.ID, req.Qty)
	if err != nil {
		h.respondTransitionError(c, "adjust", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), wh.Code)
	c.JSON(http.StatusOK, stockResponse(updated, wh.Code))
}

// Reserve handles POST /api/v1/stock/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	updated, err := h.store.Reserve(c.Request.Context(), unit, wh.ID, req.Qty, req.CartID)
	if err != nil {
		h.respondTransitionError(c, "reserve", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), wh.Code)
	c.JSON(http.StatusOK, stockResponse(updated, wh.Code))
}

// Release handles POST /api/v1/stock/release
func (h *StockHandler) Release(c *gin.Context) {
	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	updated, err := h.store.Release(c.Request.Context(), unit, wh.ID, req.Qty, req.CartID)
	if err != nil {
		h.respondTransitionError(c, "release", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), wh.Code)
	c.JSON(http.StatusOK, stockResponse(updated, wh.Code))
}

// Commit handles POST /api/v1/stock/commit
func (h *StockHandler) Commit(c *gin.Context) {
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	updated, err := h.store.Commit(c.Request.Context(), unit, wh.ID, req.Qty, req.OrderID)
	if err != nil {
		h.respondTransitionError(c, "commit", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), wh.Code)
	c.JSON(http.StatusOK, stockResponse(updated, wh.Code))
}

// Transfer handles POST /api/v1/stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	unit, stdErr := req.Unit()
	if stdErr != nil {
		respondStandardError(c, stdErr)
		return
	}

	from, ok := h.resolveWarehouse(c, req.FromWarehouse)
	if !ok {
		return
	}
	to, ok := h.resolveWarehouse(c, req.ToWarehouse)
	if !ok {
		return
	}

	if err := h.store.Transfer(c.Request.Context(), unit, from.ID, to.ID, req.Qty); err != nil {
		h.respondTransitionError(c, "transfer", err)
		return
	}

	h.invalidateStatus(c, unit.UnitKey(), from.Code)
	h.invalidateStatus(c, unit.UnitKey(), to.Code)
	c.JSON(http.StatusOK, gin.H{
		"unitKey": unit.UnitKey(),
		"from":    from.Code,
		"to":      to.Code,
		"qty":     req.Qty,
	})
}

// Status handles GET /api/v1/stock/status
func (h *StockHandler) Status(c *gin.Context) {
	ref := UnitRef{
		ProductID: c.Query("productId"),
		ListingID: c.Query("listingId"),
		VariantID: c.Query("variantId"),
		UnitKey:   c.Query("unitKey"),
	}
	unit, stdErr := ref.Unit()
	if stdErr != nil {
		respondStandardError(c, stdErr)
		return
	}

	wh, ok := h.resolveWarehouse(c, c.Query("warehouse"))
	if !ok {
		return
	}

	key := statusCacheKey(unit.UnitKey(), wh.Code)
	var cached StockResponse
	if err := cache.GetJSON(c.Request.Context(), h.cache, key, &cached); err == nil {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, cached)
		return
	}

	su, err := h.store.Status(c.Request.Context(), unit, wh.ID)
	if err != nil {
		h.respondTransitionError(c, "status", err)
		return
	}

	resp := stockResponse(su, wh.Code)
	if err := cache.SetJSON(c.Request.Context(), h.cache, key, resp, h.cacheTTL); err != nil {
		h.logger.Warn("Failed to cache stock status", zap.String("key", key), zap.Error(err))
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, resp)
}

// SetThreshold handles PUT /api/v1/stock/threshold
func (h *StockHandler) SetThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	if req.Threshold != nil && *req.Threshold < 0 {
		respondStandardError(c, errors.NewValidationError("threshold must not be negative", "threshold"))
		return
	}

	unit, wh, ok := h.resolveTarget(c, &req.UnitRef, req.Warehouse)
	if !ok {
		return
	}

	if err := h.store.SetThreshold(c.Request.Context(), unit, wh.ID, req.Threshold); err != nil {
		h.respondTransitionError(c, "set_threshold", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unitKey":   unit.UnitKey(),
		"warehouse": wh.Code,
		"threshold": req.Threshold,
	})
}

// Moves handles GET /api/v1/stock/moves
func (h *StockHandler) Moves(c *gin.Context) {
	filter := database.MoveFilter{
		UnitKey: c.Query("unitKey"),
		Type:    domain.MoveType(c.Query("type")),
	}
	if code := c.Query("warehouse"); code != "" {
		wh, ok := h.resolveWarehouse(c, code)
		if !ok {
			return
		}
		filter.WarehouseID = wh.ID
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	moves, total, err := h.store.Moves(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list moves", zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("list moves", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"moves":    moves,
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

// LowStock handles GET /api/v1/stock/low
func (h *StockHandler) LowStock(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "0"))
	if err != nil || threshold < 0 {
		respondStandardError(c, errors.NewValidationError("threshold must be a non-negative integer", "threshold"))
		return
	}

	levels, err := h.store.ScanLowStock(c.Request.Context(), threshold)
	if err != nil {
		h.logger.Error("Failed to scan low stock", zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("scan low stock", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold": threshold,
		"count":     len(levels),
		"units":     levels,
	})
}

// resolveTarget binds the unit reference and warehouse code from a
// mutation request.
func (h *StockHandler) resolveTarget(c *gin.Context, ref *UnitRef, warehouseCode string) (domain.SellableUnit, *domain.Warehouse, bool) {
	unit, stdErr := ref.Unit()
	if stdErr != nil {
		respondStandardError(c, stdErr)
		return nil, nil, false
	}
	wh, ok := h.resolveWarehouse(c, warehouseCode)
	if !ok {
		return nil, nil, false
	}
	return unit, wh, true
}

func (h *StockHandler) resolveWarehouse(c *gin.Context, code string) (*domain.Warehouse, bool) {
	wh, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		if err == domain.ErrWarehouseNotFound {
			respondStandardError(c, errors.NewWarehouseNotFound(code))
			return nil, false
		}
		h.logger.Error("Failed to resolve warehouse", zap.String("code", code), zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("resolve warehouse", err))
		return nil, false
	}
	return wh, true
}

func (h *StockHandler) respondTransitionError(c *gin.Context, operation string, err error) {
	if stdErr := standardizeDomainError(err); stdErr != nil {
		respondStandardError(c, stdErr)
		return
	}
	h.logger.Error("Stock operation failed", zap.String("operation", operation), zap.Error(err))
	respondStandardError(c, errors.NewDatabaseError(operation, err))
}

func (h *StockHandler) invalidateStatus(c *gin.Context, unitKey, warehouseCode string) {
	key := statusCacheKey(unitKey, warehouseCode)
	if err := h.cache.Delete(c.Request.Context(), key); err != nil {
		h.logger.Warn("Failed to invalidate stock status cache", zap.String("key", key), zap.Error(err))
	}
}

func statusCacheKey(unitKey, warehouseCode string) string {
	return fmt.Sprintf("stock:status:%s:%s", warehouseCode, unitKey)
}

// standardizeDomainError maps a transition failure onto the HTTP error
// vocabulary. Returns nil for errors that are not domain-level.
func standardizeDomainError(err error) *errors.StandardError {
	switch err {
	case domain.ErrInsufficientOnHand:
		return errors.NewStandardError("InsufficientOnHand", err.Error(), "")
	case domain.ErrInsufficientAvailable:
		return errors.NewStandardError("InsufficientAvailable", err.Error(), "")
	case domain.ErrNothingToRelease:
		return errors.NewStandardError("NothingToRelease", err.Error(), "")
	case domain.ErrCommitFailed:
		return errors.NewStandardError("CommitFailed", err.Error(), "")
	case domain.ErrUnitNotFound:
		return errors.NewStandardError("UnitNotFound", err.Error(), "")
	case domain.ErrWarehouseNotFound:
		return errors.NewStandardError("WarehouseNotFound", err.Error(), "")
	case domain.ErrInvalidQuantity:
		return errors.NewInvalidRequest(err.Error(), "")
	case domain.ErrInvalidTaskTransition:
		return errors.NewStandardError("InvalidTaskTransition", err.Error(), "")
	default:
		return nil
	}
}

func respondStandardError(c *gin.Context, stdErr *errors.StandardError) {
	c.JSON(stdErr.HTTPStatus(), gin.H{"error": stdErr})
}
