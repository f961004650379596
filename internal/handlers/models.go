package handlers

import (
	"time"

	"stock-service/internal/domain"

	"stock-service/pkg/errors"
)

// UnitRef identifies a sellable unit in a request: a product variant, a
// seller listing of a catalog variant, or an already-canonical key.
type UnitRef struct {
	ProductID string `json:"productId"`
	ListingID string `json:"listingId"`
	VariantID string `json:"variantId"`
	UnitKey   string `json:"unitKey"`
}

// Unit resolves the reference to a SellableUnit.
func (r *UnitRef) Unit() (domain.SellableUnit, *errors.StandardError) {
	switch {
	case r.UnitKey != "":
		return domain.RawUnit(r.UnitKey), nil
	case r.ProductID != "" && r.VariantID != "":
		return domain.ProductVariantUnit{ProductID: r.ProductID, VariantID: r.VariantID}, nil
	case r.ListingID != "" && r.VariantID != "":
		return domain.ListingVariantUnit{ListingID: r.ListingID, VariantID: r.VariantID}, nil
	default:
		return nil, errors.NewValidationError("sellable unit reference required", "productId/listingId+variantId or unitKey")
	}
}

type ReceiveRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Qty       int    `json:"qty" binding:"required,min=1"`
}

type AdjustRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Qty       int    `json:"qty" binding:"required"`
}

type ReserveRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Qty       int    `json:"qty" binding:"required,min=1"`
	CartID    string `json:"cartId"`
}

type ReleaseRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Qty       int    `json:"qty" binding:"required,min=1"`
	CartID    string `json:"cartId"`
}

type CommitRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Qty       int    `json:"qty" binding:"required,min=1"`
	OrderID   string `json:"orderId"`
}

type TransferRequest struct {
	UnitRef
	FromWarehouse string `json:"fromWarehouse" binding:"required"`
	ToWarehouse   string `json:"toWarehouse" binding:"required"`
	Qty           int    `json:"qty" binding:"required,min=1"`
}

type ThresholdRequest struct {
	UnitRef
	Warehouse string `json:"warehouse"`
	Threshold *int   `json:"threshold"` // null clears the override
}

type StockResponse struct {
	UnitKey   string    `json:"unitKey"`
	Warehouse string    `json:"warehouse"`
	OnHand    int       `json:"onHand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AddItemRequest struct {
	UnitRef
	Warehouse         string `json:"warehouse"`
	Qty               int    `json:"qty" binding:"required,min=1"`
	PlatformFulfilled *bool  `json:"platformFulfilled"`
}

type ChangeQtyRequest struct {
	Qty *int `json:"qty" binding:"required"`
}

type CheckoutRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type TaskStatusRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func stockResponse(unit *domain.StockUnit, warehouseCode string) StockResponse {
	return StockResponse{
		UnitKey:   unit.UnitKey,
		Warehouse: warehouseCode,
		OnHand:    unit.QtyOnHand,
		Reserved:  unit.QtyReserved,
		Available: unit.Available(),
		UpdatedAt: unit.UpdatedAt,
	}
}
