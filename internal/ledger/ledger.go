package ledger

import (
	"context"
	"time"

	"stock-service/internal/database"
	"stock-service/internal/domain"

	"github.com/google/uuid"
)

// Refs carries the optional business references attached to a move.
type Refs struct {
	CartID  string
	OrderID string
}

// Ledger is the append-only audit trail of stock mutations. Each entry is
// written immediately after the mutation it records; entries are never
// updated or deleted.
type Ledger struct {
	db *database.SingleWriterDB
}

func New(db *database.SingleWriterDB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one entry with a snapshot of the post-mutation counters.
func (l *Ledger) Record(ctx context.Context, moveType domain.MoveType, unit *domain.StockUnit, qty int, refs Refs) (*domain.StockMove, error) {
	move := &domain.StockMove{
		ID:              uuid.New(),
		Type:            moveType,
		UnitKey:         unit.UnitKey,
		WarehouseID:     unit.WarehouseID,
		Qty:             qty,
		CartID:          refs.CartID,
		OrderID:         refs.OrderID,
		SnapshotOnHand:  unit.QtyOnHand,
		SnapshotReserve: unit.QtyReserved,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.db.InsertMove(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

// RecordTransfer appends one entry for one side of a transfer, linking the
// counterpart warehouse. A completed transfer writes two entries.
func (l *Ledger) RecordTransfer(ctx context.Context, unit *domain.StockUnit, qty int, destWarehouseID uuid.UUID) (*domain.StockMove, error) {
	move := &domain.StockMove{
		ID:              uuid.New(),
		Type:            domain.MoveTransfer,
		UnitKey:         unit.UnitKey,
		WarehouseID:     unit.WarehouseID,
		DestWarehouseID: &destWarehouseID,
		Qty:             qty,
		SnapshotOnHand:  unit.QtyOnHand,
		SnapshotReserve: unit.QtyReserved,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.db.InsertMove(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

// List returns entries matching the filter, newest first, with the total
// match count.
func (l *Ledger) List(ctx context.Context, filter database.MoveFilter) ([]*domain.StockMove, int, error) {
	return l.db.ListMoves(ctx, filter)
}
