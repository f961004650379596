package domain

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a fulfillment location. At most one active warehouse is
// marked default; the resolver creates one lazily when none exists.
type Warehouse struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Active    bool
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockUnit is one row per (sellable unit, warehouse) pair.
// Invariant: 0 <= QtyReserved <= QtyOnHand at all times.
type StockUnit struct {
	UnitKey           string
	WarehouseID       uuid.UUID
	QtyOnHand         int
	QtyReserved       int
	LowStockThreshold *int // optional per-unit override
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Available returns the quantity offerable to new reservations.
func (s *StockUnit) Available() int {
	available := s.QtyOnHand - s.QtyReserved
	if available < 0 {
		return 0
	}
	return available
}

// MoveType classifies a stock move ledger entry.
type MoveType string

const (
	MoveIn       MoveType = "in"
	MoveReserve  MoveType = "reserve"
	MoveRelease  MoveType = "release"
	MoveCommit   MoveType = "commit"
	MoveAdjust   MoveType = "adjust"
	MoveTransfer MoveType = "transfer"
)

// StockMove is an immutable ledger entry recording one mutation applied to
// a stock unit, with a snapshot of the resulting counters. Transfers write
// two entries, one per side.
type StockMove struct {
	ID              uuid.UUID
	Type            MoveType
	UnitKey         string
	WarehouseID     uuid.UUID
	DestWarehouseID *uuid.UUID // set on transfer entries
	Qty             int        // signed: positive = into the unit, negative = out
	CartID          string
	OrderID         string
	SnapshotOnHand  int
	SnapshotReserve int
	CreatedAt       time.Time
}

// StockLevel is a read-only view of a stock unit's counters, as returned
// by status queries and the low-stock scan.
type StockLevel struct {
	UnitKey     string
	Warehouse   string
	QtyOnHand   int
	QtyReserved int
	Available   int
	Threshold   int
}
