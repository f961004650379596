package handlers

import (
	"net/http"
	"sync"

	"stock-service/internal/domain"
	"stock-service/internal/fulfillment"
	"stock-service/internal/orchestrator"
	"stock-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartHandler drives cart reservations and checkout. Carts themselves
// live in the storefront; this service only tracks the lines that hold
// reservations, keyed by the storefront's cart id.
type CartHandler struct {
	logger  *zap.Logger
	orch    *orchestrator.Orchestrator
	emitter *fulfillment.TaskEmitter

	mu    sync.Mutex
	carts map[string]*orchestrator.Cart
}

func NewCartHandler(logger *zap.Logger, orch *orchestrator.Orchestrator, emitter *fulfillment.TaskEmitter) *CartHandler {
	return &CartHandler{
		logger:  logger,
		orch:    orch,
		emitter: emitter,
		carts:   make(map[string]*orchestrator.Cart),
	}
}

func (h *CartHandler) cart(id string) *orchestrator.Cart {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.carts[id]
	if !ok {
		c = &orchestrator.Cart{ID: id}
		h.carts[id] = c
	}
	return c
}

func (h *CartHandler) drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.carts, id)
}

// AddItem handles POST /api/v1/carts/:id/items
func (h *CartHandler) AddItem(c *gin.Context) {
	cartID := c.Param("id")

	var req AddItemRequest
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

	// Seller-shipped listings skip fulfillment tasks; platform is the default.
	platformFulfilled := true
	if req.PlatformFulfilled != nil {
		platformFulfilled = *req.PlatformFulfilled
	}

	cart := h.cart(cartID)
	if err := h.orch.AddItem(c.Request.Context(), cart, unit, req.Warehouse, req.Qty, platformFulfilled); err != nil {
		h.respondCartError(c, "add_item", cartID, err)
		return
	}

	c.JSON(http.StatusOK, cartView(cart))
}

// ChangeQuantity handles PATCH /api/v1/carts/:id/items/:unitKey
func (h *CartHandler) ChangeQuantity(c *gin.Context) {
	cartID := c.Param("id")
	unitKey := c.Param("unitKey")

	var req ChangeQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	cart := h.cart(cartID)
	if err := h.orch.ChangeQuantity(c.Request.Context(), cart, unitKey, *req.Qty); err != nil {
		h.respondCartError(c, "change_quantity", cartID, err)
		return
	}

	c.JSON(http.StatusOK, cartView(cart))
}

// RemoveItem handles DELETE /api/v1/carts/:id/items/:unitKey
func (h *CartHandler) RemoveItem(c *gin.Context) {
	cartID := c.Param("id")
	unitKey := c.Param("unitKey")

	cart := h.cart(cartID)
	if err := h.orch.RemoveItem(c.Request.Context(), cart, unitKey); err != nil {
		h.respondCartError(c, "remove_item", cartID, err)
		return
	}

	c.JSON(http.StatusOK, cartView(cart))
}

// Clear handles DELETE /api/v1/carts/:id
func (h *CartHandler) Clear(c *gin.Context) {
	cartID := c.Param("id")

	cart := h.cart(cartID)
	h.orch.ClearCart(c.Request.Context(), cart)
	h.drop(cartID)

	c.JSON(http.StatusOK, gin.H{"cartId": cartID, "cleared": true})
}

// Checkout handles POST /api/v1/carts/:id/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	cartID := c.Param("id")

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	cart := h.cart(cartID)
	if len(cart.Lines) == 0 {
		respondStandardError(c, errors.NewInvalidRequest("cart has no lines to commit", cartID))
		return
	}

	result, err := h.orch.Checkout(c.Request.Context(), cart, req.OrderID)
	if err != nil {
		// The orchestrator unwound every line, so the cart is spent.
		h.drop(cartID)
		c.JSON(http.StatusConflict, gin.H{
			"orderId":    result.OrderID,
			"canceled":   true,
			"failedLine": result.FailedLine,
			"reason":     result.Reason,
			"committed":  len(result.Committed),
		})
		return
	}

	h.drop(cartID)
	c.JSON(http.StatusOK, gin.H{
		"orderId":   result.OrderID,
		"canceled":  false,
		"committed": len(result.Committed),
	})
}

// OrderTasks handles GET /api/v1/orders/:id/tasks
func (h *CartHandler) OrderTasks(c *gin.Context) {
	orderID := c.Param("id")

	tasks, err := h.emitter.Tasks(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("Failed to list fulfillment tasks", zap.String("order_id", orderID), zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("list fulfillment tasks", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId": orderID,
		"count":   len(tasks),
		"tasks":   tasks,
	})
}

// AdvanceTask handles POST /api/v1/tasks/:id/status
func (h *CartHandler) AdvanceTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondStandardError(c, errors.NewInvalidRequest("invalid task id", c.Param("id")))
		return
	}

	var req TaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		respondStandardError(c, errors.NewInvalidRequest("invalid request body", err.Error()))
		return
	}

	if err := h.emitter.Advance(c.Request.Context(), taskID, domain.TaskStatus(req.From), domain.TaskStatus(req.To)); err != nil {
		if stdErr := standardizeDomainError(err); stdErr != nil {
			respondStandardError(c, stdErr)
			return
		}
		h.logger.Error("Failed to advance task", zap.String("task_id", taskID.String()), zap.Error(err))
		respondStandardError(c, errors.NewDatabaseError("advance task", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"taskId": taskID, "status": req.To})
}

func (h *CartHandler) respondCartError(c *gin.Context, operation, cartID string, err error) {
	if stdErr := standardizeDomainError(err); stdErr != nil {
		respondStandardError(c, stdErr)
		return
	}
	h.logger.Error("Cart operation failed",
		zap.String("operation", operation),
		zap.String("cart_id", cartID),
		zap.Error(err),
	)
	respondStandardError(c, errors.NewDatabaseError(operation, err))
}

func cartView(cart *orchestrator.Cart) gin.H {
	lines := make([]gin.H, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, gin.H{
			"unitKey":           line.Unit.UnitKey(),
			"warehouseId":       line.WarehouseID,
			"qty":               line.Qty,
			"platformFulfilled": line.PlatformFulfilled,
		})
	}
	return gin.H{"cartId": cart.ID, "lines": lines}
}
