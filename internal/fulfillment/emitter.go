package fulfillment

import (
	"context"
	"time"

	"stock-service/internal/database"
	"stock-service/internal/domain"
	"stock-service/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommittedLine is one order line whose stock was successfully committed.
type CommittedLine struct {
	UnitKey           string
	WarehouseID       uuid.UUID
	Qty               int
	PlatformFulfilled bool
}

// TaskEmitter creates the initial pending fulfillment task for each
// platform-fulfilled line of a committed order. Emission is fire-and-forget
// relative to the checkout that triggered it: failures are logged, never
// returned, because the order exists and is payable regardless.
type TaskEmitter struct {
	db       *database.SingleWriterDB
	eventBus events.EventPublisher
	logger   *zap.Logger
}

func NewTaskEmitter(db *database.SingleWriterDB, eventBus events.EventPublisher, logger *zap.Logger) *TaskEmitter {
	return &TaskEmitter{
		db:       db,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Emit creates one pending task per eligible line.
func (e *TaskEmitter) Emit(ctx context.Context, orderID string, lines []CommittedLine) {
	for _, line := range lines {
		if !line.PlatformFulfilled {
			continue
		}

		task := domain.NewFulfillmentTask(orderID, line.UnitKey, line.WarehouseID, line.Qty)
		if err := e.db.InsertTask(ctx, task); err != nil {
			e.logger.Error("Failed to create fulfillment task, order remains payable",
				zap.String("order_id", orderID),
				zap.String("unit_key", line.UnitKey),
				zap.Int("qty", line.Qty),
				zap.Error(err),
			)
			continue
		}

		e.logger.Info("Fulfillment task created",
			zap.String("task_id", task.ID.String()),
			zap.String("order_id", orderID),
			zap.String("unit_key", line.UnitKey),
		)

		if e.eventBus != nil {
			event := events.FulfillmentTaskCreatedEvent{
				TaskID:     task.ID.String(),
				OrderID:    orderID,
				UnitKey:    line.UnitKey,
				Warehouse:  line.WarehouseID.String(),
				Qty:        line.Qty,
				OccurredAt: time.Now().UTC(),
			}
			if err := e.eventBus.Publish(ctx, event); err != nil {
				e.logger.Warn("Failed to publish task created event", zap.Error(err))
			}
		}
	}
}

// Tasks lists the fulfillment tasks attached to an order.
func (e *TaskEmitter) Tasks(ctx context.Context, orderID string) ([]*domain.FulfillmentTask, error) {
	return e.db.ListTasksByOrder(ctx, orderID)
}

// Advance moves a task to the given status, validating the transition.
func (e *TaskEmitter) Advance(ctx context.Context, taskID uuid.UUID, from, to domain.TaskStatus) error {
	current := domain.FulfillmentTask{Status: from}
	if !current.CanTransition(to) {
		return domain.ErrInvalidTaskTransition
	}
	return e.db.UpdateTaskStatus(ctx, taskID, from, to)
}
