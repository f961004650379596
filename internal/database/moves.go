package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stock-service/internal/domain"

	"github.com/google/uuid"
)

// MoveFilter narrows a ledger query. Zero values mean "any".
type MoveFilter struct {
	UnitKey     string
	WarehouseID uuid.UUID
	Type        domain.MoveType
	Page        int
	PageSize    int
}

// InsertMove appends one ledger entry. Entries are never updated or
// deleted.
func (swdb *SingleWriterDB) InsertMove(ctx context.Context, move *domain.StockMove) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		INSERT INTO stock_moves (id, move_type, unit_key, warehouse_id, dest_warehouse_id, qty,
			cart_id, order_id, snapshot_on_hand, snapshot_reserved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var destID interface{}
	if move.DestWarehouseID != nil {
		destID = move.DestWarehouseID.String()
	}

	_, err := swdb.db.ExecContext(ctx, query,
		move.ID.String(), string(move.Type), move.UnitKey, move.WarehouseID.String(), destID,
		move.Qty, move.CartID, move.OrderID, move.SnapshotOnHand, move.SnapshotReserve,
		move.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock move: %w", err)
	}
	return nil
}

// ListMoves returns ledger entries matching the filter, newest first, with
// the total match count for pagination.
func (swdb *SingleWriterDB) ListMoves(ctx context.Context, filter MoveFilter) ([]*domain.StockMove, int, error) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 4)
	if filter.UnitKey != "" {
		where += " AND unit_key = ?"
		args = append(args, filter.UnitKey)
	}
	if filter.WarehouseID != uuid.Nil {
		where += " AND (warehouse_id = ? OR dest_warehouse_id = ?)"
		args = append(args, filter.WarehouseID.String(), filter.WarehouseID.String())
	}
	if filter.Type != "" {
		where += " AND move_type = ?"
		args = append(args, string(filter.Type))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM stock_moves` + where
	if err := swdb.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count stock moves: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := `
		SELECT id, move_type, unit_key, warehouse_id, dest_warehouse_id, qty,
		       cart_id, order_id, snapshot_on_hand, snapshot_reserved, created_at
		FROM stock_moves` + where + `
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, pageSize, offset)

	rows, err := swdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock moves: %w", err)
	}
	defer rows.Close()

	moves := make([]*domain.StockMove, 0)
	for rows.Next() {
		var move domain.StockMove
		var id, moveType, whID string
		var destID sql.NullString
		var createdAtStr string

		err := rows.Scan(&id, &moveType, &move.UnitKey, &whID, &destID, &move.Qty,
			&move.CartID, &move.OrderID, &move.SnapshotOnHand, &move.SnapshotReserve, &createdAtStr)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan stock move: %w", err)
		}

		move.ID, _ = uuid.Parse(id)
		move.Type = domain.MoveType(moveType)
		move.WarehouseID, _ = uuid.Parse(whID)
		if destID.Valid {
			dest, _ := uuid.Parse(destID.String)
			move.DestWarehouseID = &dest
		}
		move.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)

		moves = append(moves, &move)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating stock moves: %w", err)
	}

	return moves, total, nil
}
