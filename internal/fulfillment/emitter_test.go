package fulfillment

import (
	"context"
	"path/filepath"
	"testing"

	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEmitter(t *testing.T) (*TaskEmitter, *database.SingleWriterDB, *events.InMemoryEventPublisher) {
	t.Helper()
	db, err := database.NewSingleWriterDB(filepath.Join(t.TempDir(), "stock.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eventBus := events.NewEventPublisher()
	return NewTaskEmitter(db, eventBus, zap.NewNop()), db, eventBus
}

func TestEmit_OneTaskPerPlatformLine(t *testing.T) {
	emitter, _, eventBus := newTestEmitter(t)
	ctx := context.Background()
	whID := uuid.New()

	emitter.Emit(ctx, "order-1", []CommittedLine{
		{UnitKey: "product:a:1", WarehouseID: whID, Qty: 2, PlatformFulfilled: true},
		{UnitKey: "listing:b:1", WarehouseID: whID, Qty: 1, PlatformFulfilled: false},
		{UnitKey: "product:c:1", WarehouseID: whID, Qty: 3, PlatformFulfilled: true},
	})

	tasks, err := emitter.Tasks(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskPending, task.Status)
		assert.Equal(t, "order-1", task.OrderID)
		assert.NotEqual(t, "listing:b:1", task.UnitKey)
	}

	assert.Len(t, eventBus.Events(), 2)
	created, ok := eventBus.Events()[0].(events.FulfillmentTaskCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "order-1", created.OrderID)
}

func TestEmit_SellerShippedOrderCreatesNoTasks(t *testing.T) {
	emitter, _, eventBus := newTestEmitter(t)
	ctx := context.Background()

	emitter.Emit(ctx, "order-2", []CommittedLine{
		{UnitKey: "listing:b:1", WarehouseID: uuid.New(), Qty: 1, PlatformFulfilled: false},
	})

	tasks, err := emitter.Tasks(ctx, "order-2")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, eventBus.Events())
}

func TestAdvance_ValidTransition(t *testing.T) {
	emitter, _, _ := newTestEmitter(t)
	ctx := context.Background()

	emitter.Emit(ctx, "order-3", []CommittedLine{
		{UnitKey: "product:a:1", WarehouseID: uuid.New(), Qty: 1, PlatformFulfilled: true},
	})
	tasks, err := emitter.Tasks(ctx, "order-3")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, emitter.Advance(ctx, tasks[0].ID, domain.TaskPending, domain.TaskInProgress))

	tasks, err = emitter.Tasks(ctx, "order-3")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, tasks[0].Status)
}

func TestAdvance_InvalidTransitionRejectedBeforeWrite(t *testing.T) {
	emitter, _, _ := newTestEmitter(t)

	err := emitter.Advance(context.Background(), uuid.New(), domain.TaskCompleted, domain.TaskPending)
	assert.Equal(t, domain.ErrInvalidTaskTransition, err)
}
