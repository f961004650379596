package store

import (
	"context"
	"time"

	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/events"
	"stock-service/internal/ledger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockStore exposes the atomic stock transitions. Every transition is a
// single conditional write: it succeeds only if its precondition still
// holds at the moment of the write, so concurrent callers can never drive
// a counter negative or double-allocate the last unit.
//
// Each successful mutation appends a ledger entry and publishes an event.
// Both are best-effort relative to the counter mutation: a failed ledger
// write or publish is logged, never surfaced to the caller (availability
// of the counters over completeness of the audit trail).
type StockStore struct {
	db       *database.SingleWriterDB
	ledger   *ledger.Ledger
	eventBus events.EventPublisher
	logger   *zap.Logger
}

func New(db *database.SingleWriterDB, lg *ledger.Ledger, eventBus events.EventPublisher, logger *zap.Logger) *StockStore {
	return &StockStore{
		db:       db,
		ledger:   lg,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Receive records physical stock arriving at a warehouse. Always succeeds;
// the stock unit is created on first reference.
func (s *StockStore) Receive(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	su, err := s.db.IncreaseOnHand(ctx, unit.UnitKey(), warehouseID, qty)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.MoveIn, su, qty, ledger.Refs{})
	s.publish(ctx, events.StockReceivedEvent{
		UnitKey:    su.UnitKey,
		Warehouse:  warehouseID.String(),
		Qty:        qty,
		OnHand:     su.QtyOnHand,
		Reserved:   su.QtyReserved,
		OccurredAt: time.Now().UTC(),
	})
	return su, nil
}

// Adjust applies a signed correction to on-hand stock. Negative
// adjustments succeed only while qty_on_hand stays at or above
// qty_reserved.
func (s *StockStore) Adjust(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	if qty == 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var su *domain.StockUnit
	var err error
	if qty > 0 {
		su, err = s.db.IncreaseOnHand(ctx, unit.UnitKey(), warehouseID, qty)
	} else {
		su, err = s.db.DecreaseOnHand(ctx, unit.UnitKey(), warehouseID, -qty)
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.MoveAdjust, su, qty, ledger.Refs{})
	s.publish(ctx, events.StockAdjustedEvent{
		UnitKey:    su.UnitKey,
		Warehouse:  warehouseID.String(),
		Qty:        qty,
		OnHand:     su.QtyOnHand,
		Reserved:   su.QtyReserved,
		OccurredAt: time.Now().UTC(),
	})
	return su, nil
}

// Reserve provisionally holds qty against an open cart. Fails with
// ErrInsufficientAvailable when on-hand minus reserved is short.
func (s *StockStore) Reserve(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, qty int, cartID string) (*domain.StockUnit, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	su, err := s.db.Reserve(ctx, unit.UnitKey(), warehouseID, qty)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.MoveReserve, su, qty, ledger.Refs{CartID: cartID})
	s.publish(ctx, events.StockReservedEvent{
		UnitKey:    su.UnitKey,
		Warehouse:  warehouseID.String(),
		Qty:        qty,
		CartID:     cartID,
		OnHand:     su.QtyOnHand,
		Reserved:   su.QtyReserved,
		OccurredAt: time.Now().UTC(),
	})
	return su, nil
}

// Release returns reserved stock to availability. Fails with
// ErrNothingToRelease when less than qty is reserved.
func (s *StockStore) Release(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, qty int, cartID string) (*domain.StockUnit, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	su, err := s.db.Release(ctx, unit.UnitKey(), warehouseID, qty)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.MoveRelease, su, -qty, ledger.Refs{CartID: cartID})
	s.publish(ctx, events.StockReleasedEvent{
		UnitKey:    su.UnitKey,
		Warehouse:  warehouseID.String(),
		Qty:        qty,
		CartID:     cartID,
		OnHand:     su.QtyOnHand,
		Reserved:   su.QtyReserved,
		OccurredAt: time.Now().UTC(),
	})
	return su, nil
}

// Commit converts a reservation into a permanent deduction: both counters
// decrease by qty, so availability is unchanged by a commit.
func (s *StockStore) Commit(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, qty int, orderID string) (*domain.StockUnit, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	su, err := s.db.Commit(ctx, unit.UnitKey(), warehouseID, qty)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.MoveCommit, su, -qty, ledger.Refs{OrderID: orderID})
	s.publish(ctx, events.StockCommittedEvent{
		UnitKey:    su.UnitKey,
		Warehouse:  warehouseID.String(),
		Qty:        qty,
		OrderID:    orderID,
		OnHand:     su.QtyOnHand,
		Reserved:   su.QtyReserved,
		OccurredAt: time.Now().UTC(),
	})
	return su, nil
}

// Transfer moves on-hand stock between warehouses as two conditional
// writes: decrease at the source, then increase at the destination. The
// pair is not a transaction; if the destination write fails the source is
// re-increased in process, but a crash between the writes loses the stock
// in flight. Reserved stock never transfers.
func (s *StockStore) Transfer(ctx context.Context, unit domain.SellableUnit, fromWarehouseID, toWarehouseID uuid.UUID, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	src, err := s.db.DecreaseOnHand(ctx, unit.UnitKey(), fromWarehouseID, qty)
	if err != nil {
		return err
	}

	dst, err := s.db.IncreaseOnHand(ctx, unit.UnitKey(), toWarehouseID, qty)
	if err != nil {
		// Put the stock back at the source before reporting failure.
		if _, compErr := s.db.IncreaseOnHand(ctx, unit.UnitKey(), fromWarehouseID, qty); compErr != nil {
			s.logger.Error("Transfer compensation failed, stock lost in flight",
				zap.String("unit_key", unit.UnitKey()),
				zap.String("from_warehouse", fromWarehouseID.String()),
				zap.String("to_warehouse", toWarehouseID.String()),
				zap.Int("qty", qty),
				zap.Error(compErr),
			)
		}
		return err
	}

	if _, err := s.ledger.RecordTransfer(ctx, src, -qty, toWarehouseID); err != nil {
		s.logLedgerFailure(domain.MoveTransfer, src.UnitKey, err)
	}
	if _, err := s.ledger.RecordTransfer(ctx, dst, qty, fromWarehouseID); err != nil {
		s.logLedgerFailure(domain.MoveTransfer, dst.UnitKey, err)
	}

	s.publish(ctx, events.StockTransferredEvent{
		UnitKey:       unit.UnitKey(),
		FromWarehouse: fromWarehouseID.String(),
		ToWarehouse:   toWarehouseID.String(),
		Qty:           qty,
		OccurredAt:    time.Now().UTC(),
	})
	return nil
}

// Status returns the current counters for a stock unit.
func (s *StockStore) Status(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID) (*domain.StockUnit, error) {
	return s.db.GetStockUnit(ctx, unit.UnitKey(), warehouseID)
}

// SetThreshold sets or clears the per-unit low-stock threshold override.
func (s *StockStore) SetThreshold(ctx context.Context, unit domain.SellableUnit, warehouseID uuid.UUID, threshold *int) error {
	return s.db.SetLowStockThreshold(ctx, unit.UnitKey(), warehouseID, threshold)
}

// ScanLowStock returns every stock unit whose availability is at or below
// its threshold (per-unit override, else the given global default). Read
// only; usable by the periodic monitor and by on-demand admin queries.
func (s *StockStore) ScanLowStock(ctx context.Context, globalThreshold int) ([]domain.StockLevel, error) {
	units, codes, err := s.db.ListStockUnits(ctx)
	if err != nil {
		return nil, err
	}

	violations := make([]domain.StockLevel, 0)
	for _, unit := range units {
		threshold := globalThreshold
		if unit.LowStockThreshold != nil {
			threshold = *unit.LowStockThreshold
		}
		if unit.Available() <= threshold {
			violations = append(violations, domain.StockLevel{
				UnitKey:     unit.UnitKey,
				Warehouse:   codes[unit.WarehouseID.String()],
				QtyOnHand:   unit.QtyOnHand,
				QtyReserved: unit.QtyReserved,
				Available:   unit.Available(),
				Threshold:   threshold,
			})
		}
	}
	return violations, nil
}

// Moves exposes filtered, paginated ledger retrieval.
func (s *StockStore) Moves(ctx context.Context, filter database.MoveFilter) ([]*domain.StockMove, int, error) {
	return s.ledger.List(ctx, filter)
}

func (s *StockStore) record(ctx context.Context, moveType domain.MoveType, unit *domain.StockUnit, qty int, refs ledger.Refs) {
	if _, err := s.ledger.Record(ctx, moveType, unit, qty, refs); err != nil {
		s.logLedgerFailure(moveType, unit.UnitKey, err)
	}
}

func (s *StockStore) logLedgerFailure(moveType domain.MoveType, unitKey string, err error) {
	s.logger.Error("Ledger write failed after successful mutation",
		zap.String("move_type", string(moveType)),
		zap.String("unit_key", unitKey),
		zap.Error(err),
	)
}

func (s *StockStore) publish(ctx context.Context, event interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", zap.Error(err))
	}
}
