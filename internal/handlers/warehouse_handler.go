package handlers

import (
	"net/http"

	"stock-service/internal/database"
	"stock-service/internal/warehouse"
	"stock-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WarehouseHandler struct {
	logger   *zap.Logger
	db       *database.SingleWriterDB
	resolver *warehouse.Resolver
}

func NewWarehouseHandler(logger *zap.Logger, db *database.SingleWriterDB, resolver *warehouse.Resolver) *WarehouseHandler {
	return &WarehouseHandler{
		logger:   logger,
		db:       db,
		resolver: resolver,
	}
}

// List handles GET /api/v1/warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	warehouses, err := h.db.ListWarehouses(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list warehouses", zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("list warehouses", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(warehouses),
		"warehouses": warehouses,
	})
}

// Ensure handles POST /api/v1/warehouses
func (h *WarehouseHandler) Ensure(c *gin.Context) {
	var req struct {
		Code      string `json:"code" binding:"required"`
		Name      string `json:"name" binding:"required"`
		IsDefault bool   `json:"isDefault"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	wh, err := h.db.EnsureWarehouse(c.Request.Context(), req.Code, req.Name, req.IsDefault)
	if err != nil {
		h.logger.Error("Failed to ensure warehouse", zap.String("code", req.Code), zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("ensure warehouse", err))
		return
	}

	// A new default displaces whatever the resolver cached.
	if req.IsDefault {
		h.resolver.Reset()
	}

	c.JSON(http.StatusOK, wh)
}

// Default handles GET /api/v1/warehouses/default
func (h *WarehouseHandler) Default(c *gin.Context) {
	wh, err := h.resolver.EnsureDefault(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to resolve default warehouse", zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("resolve default warehouse", err))
		return
	}

	c.JSON(http.StatusOK, wh)
}
