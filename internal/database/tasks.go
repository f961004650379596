package database

import (
	"context"
	"fmt"
	"time"

	"stock-service/internal/domain"

	"github.com/google/uuid"
)

// InsertTask creates a fulfillment task row.
func (swdb *SingleWriterDB) InsertTask(ctx context.Context, task *domain.FulfillmentTask) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		INSERT INTO fulfillment_tasks (id, order_id, unit_key, warehouse_id, qty, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := swdb.db.ExecContext(ctx, query,
		task.ID.String(), task.OrderID, task.UnitKey, task.WarehouseID.String(),
		task.Qty, string(task.Status),
		task.CreatedAt.UTC().Format(time.RFC3339), task.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fulfillment task: %w", err)
	}
	return nil
}

// UpdateTaskStatus moves a task along its lifecycle. The current status is
// part of the predicate so a stale transition loses cleanly.
func (swdb *SingleWriterDB) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, from, to domain.TaskStatus) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		UPDATE fulfillment_tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := swdb.db.ExecContext(ctx, query, string(to), now(), taskID.String(), string(from))
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrInvalidTaskTransition
	}
	return nil
}

// ListTasksByOrder lists fulfillment tasks for an order.
func (swdb *SingleWriterDB) ListTasksByOrder(ctx context.Context, orderID string) ([]*domain.FulfillmentTask, error) {
	query := `
		SELECT id, order_id, unit_key, warehouse_id, qty, status, created_at, updated_at
		FROM fulfillment_tasks
		WHERE order_id = ?
		ORDER BY created_at
	`

	rows, err := swdb.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fulfillment tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*domain.FulfillmentTask, 0)
	for rows.Next() {
		var task domain.FulfillmentTask
		var id, whID, status string
		var createdAtStr, updatedAtStr string

		err := rows.Scan(&id, &task.OrderID, &task.UnitKey, &whID, &task.Qty, &status, &createdAtStr, &updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fulfillment task: %w", err)
		}

		task.ID, _ = uuid.Parse(id)
		task.WarehouseID, _ = uuid.Parse(whID)
		task.Status = domain.TaskStatus(status)
		task.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		task.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fulfillment tasks: %w", err)
	}

	return tasks, nil
}
