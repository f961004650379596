package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a fulfillment task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCanceled   TaskStatus = "canceled"
	TaskException  TaskStatus = "exception"
)

// FulfillmentTask is the pick/pack/ship work item created after a
// successful commit. The reservation flow only ever creates the initial
// pending task; downstream fulfillment owns the rest of the lifecycle.
type FulfillmentTask struct {
	ID          uuid.UUID
	OrderID     string
	UnitKey     string
	WarehouseID uuid.UUID
	Qty         int
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewFulfillmentTask creates a pending task for one committed order line.
func NewFulfillmentTask(orderID, unitKey string, warehouseID uuid.UUID, qty int) *FulfillmentTask {
	now := time.Now().UTC()
	return &FulfillmentTask{
		ID:          uuid.New(),
		OrderID:     orderID,
		UnitKey:     unitKey,
		WarehouseID: warehouseID,
		Qty:         qty,
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanTransition reports whether the task may move to the given status.
func (t *FulfillmentTask) CanTransition(to TaskStatus) bool {
	switch t.Status {
	case TaskPending:
		return to == TaskInProgress || to == TaskCanceled || to == TaskException
	case TaskInProgress:
		return to == TaskCompleted || to == TaskCanceled || to == TaskException
	default:
		return false
	}
}

// Transition moves the task to the given status.
func (t *FulfillmentTask) Transition(to TaskStatus) error {
	if !t.CanTransition(to) {
		return ErrInvalidTaskTransition
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}
