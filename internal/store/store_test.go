package store

import (
	"context"
	"path/filepath"
	"testing"

	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/events"
	"stock-service/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*StockStore, *database.SingleWriterDB, *events.InMemoryEventPublisher) {
	t.Helper()
	db, err := database.NewSingleWriterDB(filepath.Join(t.TempDir(), "stock.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eventBus := events.NewEventPublisher()
	return New(db, ledger.New(db), eventBus, zap.NewNop()), db, eventBus
}

func testWarehouse(t *testing.T, db *database.SingleWriterDB) *domain.Warehouse {
	t.Helper()
	wh, err := db.EnsureWarehouse(context.Background(), "WH-TEST", "Test Warehouse", true)
	require.NoError(t, err)
	return wh
}

var testUnit = domain.ProductVariantUnit{ProductID: "p-1", VariantID: "v-1"}

func TestReceive_RecordsLedgerAndEvent(t *testing.T) {
	st, db, eventBus := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	su, err := st.Receive(ctx, testUnit, wh.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, su.QtyOnHand)

	moves, total, err := st.Moves(ctx, database.MoveFilter{UnitKey: testUnit.UnitKey()})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, moves, 1)
	assert.Equal(t, domain.MoveIn, moves[0].Type)
	assert.Equal(t, 10, moves[0].Qty)
	assert.Equal(t, 10, moves[0].SnapshotOnHand)
	assert.Equal(t, 0, moves[0].SnapshotReserve)

	published := eventBus.Events()
	require.Len(t, published, 1)
	received, ok := published[0].(events.StockReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, testUnit.UnitKey(), received.UnitKey)
	assert.Equal(t, 10, received.Qty)
}

func TestReceive_RejectsNonPositiveQty(t *testing.T) {
	st, db, _ := newTestStore(t)
	wh := testWarehouse(t, db)

	_, err := st.Receive(context.Background(), testUnit, wh.ID, 0)
	assert.Equal(t, domain.ErrInvalidQuantity, err)

	_, err = st.Receive(context.Background(), testUnit, wh.ID, -1)
	assert.Equal(t, domain.ErrInvalidQuantity, err)
}

// Every successful mutation leaves exactly one ledger entry with the
// post-mutation counter snapshot.
func TestLedger_OneEntryPerMutation(t *testing.T) {
	st, db, _ := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	_, err := st.Receive(ctx, testUnit, wh.ID, 10)
	require.NoError(t, err)
	_, err = st.Reserve(ctx, testUnit, wh.ID, 3, "cart-1")
	require.NoError(t, err)
	_, err = st.Release(ctx, testUnit, wh.ID, 1, "cart-1")
	require.NoError(t, err)
	_, err = st.Commit(ctx, testUnit, wh.ID, 2, "order-1")
	require.NoError(t, err)
	_, err = st.Adjust(ctx, testUnit, wh.ID, -4)
	require.NoError(t, err)

	moves, total, err := st.Moves(ctx, database.MoveFilter{UnitKey: testUnit.UnitKey()})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	byType := make(map[domain.MoveType]*domain.StockMove)
	for _, m := range moves {
		byType[m.Type] = m
	}

	assert.Equal(t, 10, byType[domain.MoveIn].Qty)
	assert.Equal(t, 3, byType[domain.MoveReserve].Qty)
	assert.Equal(t, "cart-1", byType[domain.MoveReserve].CartID)
	assert.Equal(t, -1, byType[domain.MoveRelease].Qty)
	assert.Equal(t, -2, byType[domain.MoveCommit].Qty)
	assert.Equal(t, "order-1", byType[domain.MoveCommit].OrderID)
	assert.Equal(t, -4, byType[domain.MoveAdjust].Qty)

	// Commit snapshot reflects both counters after the commit:
	// 10 on hand, 3 reserved, 1 released, 2 committed -> 8/0
	assert.Equal(t, 8, byType[domain.MoveCommit].SnapshotOnHand)
	assert.Equal(t, 0, byType[domain.MoveCommit].SnapshotReserve)
}

func TestFailedTransition_LeavesNoLedgerEntry(t *testing.T) {
	st, db, eventBus := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	_, err := st.Receive(ctx, testUnit, wh.ID, 2)
	require.NoError(t, err)

	_, err = st.Reserve(ctx, testUnit, wh.ID, 5, "cart-1")
	assert.Equal(t, domain.ErrInsufficientAvailable, err)

	_, total, err := st.Moves(ctx, database.MoveFilter{Type: domain.MoveReserve})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Len(t, eventBus.Events(), 1) // only the receive
}

func TestAdjust_NegativeBoundedByReservations(t *testing.T) {
	st, db, _ := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	_, err := st.Receive(ctx, testUnit, wh.ID, 10)
	require.NoError(t, err)
	_, err = st.Reserve(ctx, testUnit, wh.ID, 7, "cart-1")
	require.NoError(t, err)

	_, err = st.Adjust(ctx, testUnit, wh.ID, -4)
	assert.Equal(t, domain.ErrInsufficientOnHand, err)

	su, err := st.Adjust(ctx, testUnit, wh.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 7, su.QtyOnHand)
	assert.Equal(t, 7, su.QtyReserved)
}

func TestTransfer_MovesStockBetweenWarehouses(t *testing.T) {
	st, db, eventBus := newTestStore(t)
	ctx := context.Background()

	whA, err := db.EnsureWarehouse(ctx, "WH-A", "Warehouse A", true)
	require.NoError(t, err)
	whB, err := db.EnsureWarehouse(ctx, "WH-B", "Warehouse B", false)
	require.NoError(t, err)

	_, err = st.Receive(ctx, testUnit, whA.ID, 10)
	require.NoError(t, err)

	require.NoError(t, st.Transfer(ctx, testUnit, whA.ID, whB.ID, 4))

	src, err := st.Status(ctx, testUnit, whA.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, src.QtyOnHand)

	dst, err := st.Status(ctx, testUnit, whB.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, dst.QtyOnHand)

	// Two ledger entries, one per side, linked by dest warehouse
	moves, total, err := st.Moves(ctx, database.MoveFilter{Type: domain.MoveTransfer})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	qtys := []int{moves[0].Qty, moves[1].Qty}
	assert.ElementsMatch(t, []int{-4, 4}, qtys)

	var transferred *events.StockTransferredEvent
	for _, e := range eventBus.Events() {
		if ev, ok := e.(events.StockTransferredEvent); ok {
			transferred = &ev
		}
	}
	require.NotNil(t, transferred)
	assert.Equal(t, 4, transferred.Qty)
}

func TestTransfer_ReservedStockStaysBehind(t *testing.T) {
	st, db, _ := newTestStore(t)
	ctx := context.Background()

	whA, err := db.EnsureWarehouse(ctx, "WH-A", "Warehouse A", true)
	require.NoError(t, err)
	whB, err := db.EnsureWarehouse(ctx, "WH-B", "Warehouse B", false)
	require.NoError(t, err)

	_, err = st.Receive(ctx, testUnit, whA.ID, 10)
	require.NoError(t, err)
	_, err = st.Reserve(ctx, testUnit, whA.ID, 8, "cart-1")
	require.NoError(t, err)

	// Moving 3 would leave 7 on hand against 8 reserved
	err = st.Transfer(ctx, testUnit, whA.ID, whB.ID, 3)
	assert.Equal(t, domain.ErrInsufficientOnHand, err)

	src, err := st.Status(ctx, testUnit, whA.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, src.QtyOnHand)
	assert.Equal(t, 8, src.QtyReserved)
}

func TestScanLowStock_GlobalThreshold(t *testing.T) {
	st, db, _ := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	low := domain.ProductVariantUnit{ProductID: "p-low", VariantID: "v-1"}
	high := domain.ProductVariantUnit{ProductID: "p-high", VariantID: "v-1"}

	_, err := st.Receive(ctx, low, wh.ID, 3)
	require.NoError(t, err)
	_, err = st.Receive(ctx, high, wh.ID, 50)
	require.NoError(t, err)

	levels, err := st.ScanLowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, low.UnitKey(), levels[0].UnitKey)
	assert.Equal(t, "WH-TEST", levels[0].Warehouse)
	assert.Equal(t, 3, levels[0].Available)
	assert.Equal(t, 5, levels[0].Threshold)
}

func TestScanLowStock_PerUnitOverride(t *testing.T) {
	st, db, _ := newTestStore(t)
	wh := testWarehouse(t, db)
	ctx := context.Background()

	_, err := st.Receive(ctx, testUnit, wh.ID, 20)
	require.NoError(t, err)

	// Availability counts, not on-hand: 20 on hand minus 12 reserved
	_, err = st.Reserve(ctx, testUnit, wh.ID, 12, "cart-1")
	require.NoError(t, err)

	override := 10
	require.NoError(t, st.SetThreshold(ctx, testUnit, wh.ID, &override))

	levels, err := st.ScanLowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 8, levels[0].Available)
	assert.Equal(t, 10, levels[0].Threshold)
}
