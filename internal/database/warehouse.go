package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stock-service/internal/domain"

	"github.com/google/uuid"
)

// EnsureWarehouse idempotently creates a warehouse by code. The INSERT is
// the atomic "ensure" the default-warehouse contract requires: the unique
// code index makes racing creators converge on one row.
func (swdb *SingleWriterDB) EnsureWarehouse(ctx context.Context, code, name string, isDefault bool) (*domain.Warehouse, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		INSERT INTO warehouses (id, code, name, active, is_default, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING
	`
	ts := now()
	flag := 0
	if isDefault {
		flag = 1
	}
	if _, err := swdb.db.ExecContext(ctx, query, uuid.New().String(), code, name, flag, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to ensure warehouse: %w", err)
	}

	return swdb.fetchWarehouseByCode(ctx, code)
}

// GetWarehouseByCode retrieves a warehouse by its unique code.
func (swdb *SingleWriterDB) GetWarehouseByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	return swdb.fetchWarehouseByCode(ctx, code)
}

func (swdb *SingleWriterDB) fetchWarehouseByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	query := `
		SELECT id, code, name, active, is_default, created_at, updated_at
		FROM warehouses
		WHERE code = ?
	`
	return swdb.scanWarehouse(swdb.db.QueryRowContext(ctx, query, code))
}

// GetDefaultWarehouse retrieves the active default warehouse, if any.
func (swdb *SingleWriterDB) GetDefaultWarehouse(ctx context.Context) (*domain.Warehouse, error) {
	query := `
		SELECT id, code, name, active, is_default, created_at, updated_at
		FROM warehouses
		WHERE is_default = 1 AND active = 1
	`
	return swdb.scanWarehouse(swdb.db.QueryRowContext(ctx, query))
}

// ListWarehouses lists all warehouses.
func (swdb *SingleWriterDB) ListWarehouses(ctx context.Context) ([]*domain.Warehouse, error) {
	query := `
		SELECT id, code, name, active, is_default, created_at, updated_at
		FROM warehouses
		ORDER BY code
	`

	rows, err := swdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	defer rows.Close()

	warehouses := make([]*domain.Warehouse, 0)
	for rows.Next() {
		wh, err := swdb.scanWarehouseRow(rows)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, wh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouses: %w", err)
	}

	return warehouses, nil
}

func (swdb *SingleWriterDB) scanWarehouse(row *sql.Row) (*domain.Warehouse, error) {
	var wh domain.Warehouse
	var id string
	var active, isDefault int
	var createdAtStr, updatedAtStr string

	err := row.Scan(&id, &wh.Code, &wh.Name, &active, &isDefault, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWarehouseNotFound
		}
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}

	wh.ID, _ = uuid.Parse(id)
	wh.Active = active == 1
	wh.IsDefault = isDefault == 1
	wh.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	wh.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	return &wh, nil
}

func (swdb *SingleWriterDB) scanWarehouseRow(rows *sql.Rows) (*domain.Warehouse, error) {
	var wh domain.Warehouse
	var id string
	var active, isDefault int
	var createdAtStr, updatedAtStr string

	err := rows.Scan(&id, &wh.Code, &wh.Name, &active, &isDefault, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to scan warehouse: %w", err)
	}

	wh.ID, _ = uuid.Parse(id)
	wh.Active = active == 1
	wh.IsDefault = isDefault == 1
	wh.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	wh.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	return &wh, nil
}
