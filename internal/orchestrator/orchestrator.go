package orchestrator

import (
	"context"
	"fmt"
	"time"

	"stock-service/internal/domain"
	"stock-service/internal/events"
	"stock-service/internal/fulfillment"
	"stock-service/internal/store"
	"stock-service/internal/warehouse"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartLine is one reserved line item of an open cart.
type CartLine struct {
	Unit              domain.SellableUnit
	WarehouseID       uuid.UUID
	Qty               int
	PlatformFulfilled bool
}

// Cart is the open cart whose line items hold reservations. The cart
// entity itself is owned elsewhere; the orchestrator only drives the
// reservations its lines represent.
type Cart struct {
	ID    string
	Lines []*CartLine
}

// Line returns the cart line for a unit, if present.
func (c *Cart) Line(unitKey string) *CartLine {
	for _, line := range c.Lines {
		if line.Unit.UnitKey() == unitKey {
			return line
		}
	}
	return nil
}

func (c *Cart) removeLine(unitKey string) {
	for i, line := range c.Lines {
		if line.Unit.UnitKey() == unitKey {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// CheckoutResult reports how a checkout ended. When Canceled is set, lines
// before FailedLine were already committed and stay committed; the order
// needs manual reconciliation if FailedLine > 0.
type CheckoutResult struct {
	OrderID    string
	Committed  []fulfillment.CommittedLine
	Canceled   bool
	FailedLine int
	Reason     string
}

// Orchestrator translates cart and checkout lifecycle events into stock
// transitions. Quantity changes reserve or release deltas only; checkout
// commits line by line with best-effort compensation on partial failure.
type Orchestrator struct {
	store    *store.StockStore
	resolver *warehouse.Resolver
	emitter  *fulfillment.TaskEmitter
	eventBus events.EventPublisher
	logger   *zap.Logger
}

func New(st *store.StockStore, resolver *warehouse.Resolver, emitter *fulfillment.TaskEmitter, eventBus events.EventPublisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		resolver: resolver,
		emitter:  emitter,
		eventBus: eventBus,
		logger:   logger,
	}
}

// AddItem reserves qty for a unit and adds (or grows) its cart line. An
// existing line only reserves the increment, never the whole new quantity.
func (o *Orchestrator) AddItem(ctx context.Context, cart *Cart, unit domain.SellableUnit, warehouseCode string, qty int, platformFulfilled bool) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	wh, err := o.resolver.Resolve(ctx, warehouseCode)
	if err != nil {
		return err
	}

	if _, err := o.store.Reserve(ctx, unit, wh.ID, qty, cart.ID); err != nil {
		return err
	}

	if line := cart.Line(unit.UnitKey()); line != nil {
		line.Qty += qty
	} else {
		cart.Lines = append(cart.Lines, &CartLine{
			Unit:              unit,
			WarehouseID:       wh.ID,
			Qty:               qty,
			PlatformFulfilled: platformFulfilled,
		})
	}
	return nil
}

// ChangeQuantity moves a cart line to newQty, reserving or releasing only
// the delta. newQty of zero removes the line.
func (o *Orchestrator) ChangeQuantity(ctx context.Context, cart *Cart, unitKey string, newQty int) error {
	if newQty < 0 {
		return domain.ErrInvalidQuantity
	}

	line := cart.Line(unitKey)
	if line == nil {
		return domain.ErrUnitNotFound
	}

	delta := newQty - line.Qty
	switch {
	case delta > 0:
		if _, err := o.store.Reserve(ctx, line.Unit, line.WarehouseID, delta, cart.ID); err != nil {
			return err
		}
	case delta < 0:
		if _, err := o.store.Release(ctx, line.Unit, line.WarehouseID, -delta, cart.ID); err != nil {
			return err
		}
	default:
		return nil
	}

	if newQty == 0 {
		cart.removeLine(unitKey)
	} else {
		line.Qty = newQty
	}
	return nil
}

// RemoveItem releases a line's full reservation and drops the line.
func (o *Orchestrator) RemoveItem(ctx context.Context, cart *Cart, unitKey string) error {
	return o.ChangeQuantity(ctx, cart, unitKey, 0)
}

// Checkout commits every cart line against the new order. If a line's
// commit fails, the reservations of that line and every line not yet
// committed are released, the order is marked canceled with the failing
// line's reason, and the failure is returned for the caller to surface as
// a conflict. Either way the cart ends up empty, since every line's
// reservation has been consumed or released by then. Lines committed
// before the failure stay committed; a partially-committed order is an
// exceptional case for manual reconciliation, not something the
// compensation undoes.
func (o *Orchestrator) Checkout(ctx context.Context, cart *Cart, orderID string) (*CheckoutResult, error) {
	result := &CheckoutResult{OrderID: orderID}

	for i, line := range cart.Lines {
		_, err := o.store.Commit(ctx, line.Unit, line.WarehouseID, line.Qty, orderID)
		if err == nil {
			result.Committed = append(result.Committed, fulfillment.CommittedLine{
				UnitKey:           line.Unit.UnitKey(),
				WarehouseID:       line.WarehouseID,
				Qty:               line.Qty,
				PlatformFulfilled: line.PlatformFulfilled,
			})
			continue
		}

		result.Canceled = true
		result.FailedLine = i
		result.Reason = fmt.Sprintf("commit failed for unit %s: %v", line.Unit.UnitKey(), err)

		o.compensate(ctx, cart, i)

		// Every reservation is gone now: committed lines consumed theirs,
		// the rest were just released. Keeping the lines around would make
		// a later clear re-release holds that no longer exist.
		cart.Lines = nil

		o.logger.Warn("Checkout canceled on failed commit",
			zap.String("order_id", orderID),
			zap.String("cart_id", cart.ID),
			zap.Int("failed_line", i),
			zap.Int("committed_lines", len(result.Committed)),
			zap.Error(err),
		)
		o.publish(ctx, events.OrderCanceledEvent{
			OrderID:    orderID,
			CartID:     cart.ID,
			Reason:     result.Reason,
			OccurredAt: time.Now().UTC(),
		})
		return result, err
	}

	cart.Lines = nil

	o.emitter.Emit(ctx, orderID, result.Committed)
	o.publish(ctx, events.OrderCommittedEvent{
		OrderID:    orderID,
		CartID:     cart.ID,
		Lines:      len(result.Committed),
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// compensate releases the reservations of every line from failedIdx on.
// Best-effort: individual release failures are logged and skipped.
func (o *Orchestrator) compensate(ctx context.Context, cart *Cart, failedIdx int) {
	for _, line := range cart.Lines[failedIdx:] {
		if _, err := o.store.Release(ctx, line.Unit, line.WarehouseID, line.Qty, cart.ID); err != nil {
			o.logger.Error("Compensating release failed",
				zap.String("cart_id", cart.ID),
				zap.String("unit_key", line.Unit.UnitKey()),
				zap.Int("qty", line.Qty),
				zap.Error(err),
			)
		}
	}
}

// ClearCart releases every line's reservation, independently and
// best-effort, then empties the cart. Used for abandonment and explicit
// clears; a failed release never blocks clearing.
func (o *Orchestrator) ClearCart(ctx context.Context, cart *Cart) {
	for _, line := range cart.Lines {
		if _, err := o.store.Release(ctx, line.Unit, line.WarehouseID, line.Qty, cart.ID); err != nil {
			o.logger.Warn("Failed to release reservation while clearing cart",
				zap.String("cart_id", cart.ID),
				zap.String("unit_key", line.Unit.UnitKey()),
				zap.Int("qty", line.Qty),
				zap.Error(err),
			)
		}
	}
	cart.Lines = nil
}

func (o *Orchestrator) publish(ctx context.Context, event interface{}) {
	if o.eventBus == nil {
		return
	}
	if err := o.eventBus.Publish(ctx, event); err != nil {
		o.logger.Error("Failed to publish event", zap.Error(err))
	}
}
