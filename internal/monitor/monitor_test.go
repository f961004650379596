package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/events"
	"stock-service/internal/ledger"
	"stock-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMonitor(t *testing.T, globalThreshold int) (*LowStockMonitor, *store.StockStore, *database.SingleWriterDB, *events.InMemoryEventPublisher) {
	t.Helper()
	db, err := database.NewSingleWriterDB(filepath.Join(t.TempDir(), "stock.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eventBus := events.NewEventPublisher()
	st := store.New(db, ledger.New(db), eventBus, zap.NewNop())
	m := New(st, eventBus, time.Minute, globalThreshold, zap.NewNop())
	return m, st, db, eventBus
}

func TestRunOnce_PublishesOneEventPerViolation(t *testing.T) {
	m, st, db, eventBus := newTestMonitor(t, 5)
	ctx := context.Background()

	wh, err := db.EnsureWarehouse(ctx, "WH-TEST", "Test Warehouse", true)
	require.NoError(t, err)

	low := domain.ProductVariantUnit{ProductID: "p-low", VariantID: "v-1"}
	high := domain.ProductVariantUnit{ProductID: "p-high", VariantID: "v-1"}
	_, err = st.Receive(ctx, low, wh.ID, 2)
	require.NoError(t, err)
	_, err = st.Receive(ctx, high, wh.ID, 100)
	require.NoError(t, err)

	before := len(eventBus.Events())
	m.RunOnce(ctx)

	var alerts []events.LowStockDetectedEvent
	for _, e := range eventBus.Events()[before:] {
		if ev, ok := e.(events.LowStockDetectedEvent); ok {
			alerts = append(alerts, ev)
		}
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, low.UnitKey(), alerts[0].UnitKey)
	assert.Equal(t, 2, alerts[0].Available)
	assert.Equal(t, 5, alerts[0].Threshold)
}

func TestRunOnce_CleanScanPublishesNothing(t *testing.T) {
	m, st, db, eventBus := newTestMonitor(t, 1)
	ctx := context.Background()

	wh, err := db.EnsureWarehouse(ctx, "WH-TEST", "Test Warehouse", true)
	require.NoError(t, err)
	_, err = st.Receive(ctx, domain.ProductVariantUnit{ProductID: "p-1", VariantID: "v-1"}, wh.ID, 50)
	require.NoError(t, err)

	before := len(eventBus.Events())
	m.RunOnce(ctx)

	for _, e := range eventBus.Events()[before:] {
		_, ok := e.(events.LowStockDetectedEvent)
		assert.False(t, ok)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	m, _, _, _ := newTestMonitor(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}
