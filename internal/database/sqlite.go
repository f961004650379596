package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"stock-service/internal/domain"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SingleWriterDB owns the stock schema and applies all mutations under the
// Single Writer Principle: one connection, one writer at a time. Every
// stock transition is a single conditional UPDATE whose WHERE clause
// carries the precondition, so the predicate is evaluated atomically with
// the write itself. There are no read-then-write round trips.
type SingleWriterDB struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSingleWriterDB opens the database, retrying the initial ping with
// bounded exponential backoff before giving up.
func NewSingleWriterDB(path string, logger *zap.Logger) (*SingleWriterDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	// Bounded exponential backoff on the initial connect: 100ms, 200ms, 400ms
	var pingErr error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		logger.Warn("Database ping failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(pingErr),
		)
		time.Sleep(delay)
		delay *= 2
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	swdb := &SingleWriterDB{
		db:     db,
		logger: logger,
	}

	if err := swdb.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return swdb, nil
}

func (swdb *SingleWriterDB) initSchema() error {
	schema := `
	-- Warehouses: fulfillment locations
	CREATE TABLE IF NOT EXISTS warehouses (
		id TEXT PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(active IN (0, 1)),
		CHECK(is_default IN (0, 1))
	);

	-- Stock units: one row per (sellable unit, warehouse)
	CREATE TABLE IF NOT EXISTS stock_units (
		unit_key TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		qty_on_hand INTEGER NOT NULL DEFAULT 0,
		qty_reserved INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (unit_key, warehouse_id),
		FOREIGN KEY (warehouse_id) REFERENCES warehouses(id),
		CHECK(qty_on_hand >= 0),
		CHECK(qty_reserved >= 0),
		CHECK(qty_reserved <= qty_on_hand)
	);

	-- Stock moves: append-only audit ledger, never updated or deleted
	CREATE TABLE IF NOT EXISTS stock_moves (
		id TEXT PRIMARY KEY,
		move_type TEXT NOT NULL,
		unit_key TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		dest_warehouse_id TEXT,
		qty INTEGER NOT NULL,
		cart_id TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		snapshot_on_hand INTEGER NOT NULL,
		snapshot_reserved INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		CHECK(move_type IN ('in', 'reserve', 'release', 'commit', 'adjust', 'transfer'))
	);

	-- Fulfillment tasks: pick/pack/ship work items created after commit
	CREATE TABLE IF NOT EXISTS fulfillment_tasks (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		unit_key TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		qty INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(qty > 0),
		CHECK(status IN ('pending', 'in_progress', 'completed', 'canceled', 'exception'))
	);

	-- At most one active default warehouse
	CREATE UNIQUE INDEX IF NOT EXISTS idx_warehouses_default
		ON warehouses(is_default) WHERE is_default = 1 AND active = 1;
	CREATE INDEX IF NOT EXISTS idx_warehouses_code ON warehouses(code);
	CREATE INDEX IF NOT EXISTS idx_stock_moves_unit ON stock_moves(unit_key);
	CREATE INDEX IF NOT EXISTS idx_stock_moves_warehouse ON stock_moves(warehouse_id);
	CREATE INDEX IF NOT EXISTS idx_stock_moves_type ON stock_moves(move_type);
	CREATE INDEX IF NOT EXISTS idx_fulfillment_tasks_order ON fulfillment_tasks(order_id);
	CREATE INDEX IF NOT EXISTS idx_fulfillment_tasks_status ON fulfillment_tasks(status);
	`

	_, err := swdb.db.Exec(schema)
	return err
}

// Close closes the database connection
func (swdb *SingleWriterDB) Close() error {
	return swdb.db.Close()
}

// Ping checks the database connection
func (swdb *SingleWriterDB) Ping() error {
	return swdb.db.Ping()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// EnsureStockUnit creates the (unit, warehouse) row if absent. Stock units
// are created lazily on first reference.
func (swdb *SingleWriterDB) EnsureStockUnit(ctx context.Context, unitKey string, warehouseID uuid.UUID) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()
	return swdb.ensureStockUnitLocked(ctx, unitKey, warehouseID)
}

func (swdb *SingleWriterDB) ensureStockUnitLocked(ctx context.Context, unitKey string, warehouseID uuid.UUID) error {
	query := `
		INSERT INTO stock_units (unit_key, warehouse_id, qty_on_hand, qty_reserved, created_at, updated_at)
		VALUES (?, ?, 0, 0, ?, ?)
		ON CONFLICT(unit_key, warehouse_id) DO NOTHING
	`
	ts := now()
	if _, err := swdb.db.ExecContext(ctx, query, unitKey, warehouseID.String(), ts, ts); err != nil {
		return fmt.Errorf("failed to ensure stock unit: %w", err)
	}
	return nil
}

// IncreaseOnHand adds qty to on-hand stock. Always succeeds (upsert).
func (swdb *SingleWriterDB) IncreaseOnHand(ctx context.Context, unitKey string, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	if err := swdb.ensureStockUnitLocked(ctx, unitKey, warehouseID); err != nil {
		return nil, err
	}

	query := `
		UPDATE stock_units
		SET qty_on_hand = qty_on_hand + ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ?
	`
	if _, err := swdb.db.ExecContext(ctx, query, qty, now(), unitKey, warehouseID.String()); err != nil {
		return nil, fmt.Errorf("failed to increase on-hand stock: %w", err)
	}

	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

// DecreaseOnHand removes qty from on-hand stock. The precondition
// qty_on_hand >= qty is evaluated atomically with the write.
func (swdb *SingleWriterDB) DecreaseOnHand(ctx context.Context, unitKey string, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		UPDATE stock_units
		SET qty_on_hand = qty_on_hand - ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ? AND qty_on_hand >= ?
		  AND qty_on_hand - ? >= qty_reserved
	`
	result, err := swdb.db.ExecContext(ctx, query, qty, now(), unitKey, warehouseID.String(), qty, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to decrease on-hand stock: %w", err)
	}

	if err := swdb.checkAffected(ctx, result, unitKey, warehouseID, domain.ErrInsufficientOnHand); err != nil {
		return nil, err
	}

	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

// Reserve holds qty against the unit. The precondition
// qty_on_hand - qty_reserved >= qty is evaluated atomically with the
// write; concurrent reservations race here and exactly one wins the last
// unit of availability.
func (swdb *SingleWriterDB) Reserve(ctx context.Context, unitKey string, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	if err := swdb.ensureStockUnitLocked(ctx, unitKey, warehouseID); err != nil {
		return nil, err
	}

	query := `
		UPDATE stock_units
		SET qty_reserved = qty_reserved + ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ? AND qty_on_hand - qty_reserved >= ?
	`
	result, err := swdb.db.ExecContext(ctx, query, qty, now(), unitKey, warehouseID.String(), qty)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	if err := swdb.checkAffected(ctx, result, unitKey, warehouseID, domain.ErrInsufficientAvailable); err != nil {
		return nil, err
	}

	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

// Release returns qty of reserved stock to availability. Precondition:
// qty_reserved >= qty.
func (swdb *SingleWriterDB) Release(ctx context.Context, unitKey string, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		UPDATE stock_units
		SET qty_reserved = qty_reserved - ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ? AND qty_reserved >= ?
	`
	result, err := swdb.db.ExecContext(ctx, query, qty, now(), unitKey, warehouseID.String(), qty)
	if err != nil {
		return nil, fmt.Errorf("failed to release stock: %w", err)
	}

	if err := swdb.checkAffected(ctx, result, unitKey, warehouseID, domain.ErrNothingToRelease); err != nil {
		return nil, err
	}

	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

// Commit converts a reservation into a permanent deduction: both counters
// decrease by qty. Checking qty_on_hand as well as qty_reserved is
// conservative; the invariant qty_reserved <= qty_on_hand already implies
// it for all valid prior states. The stricter predicate stays.
func (swdb *SingleWriterDB) Commit(ctx context.Context, unitKey string, warehouseID uuid.UUID, qty int) (*domain.StockUnit, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		UPDATE stock_units
		SET qty_on_hand = qty_on_hand - ?, qty_reserved = qty_reserved - ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ? AND qty_reserved >= ? AND qty_on_hand >= ?
	`
	result, err := swdb.db.ExecContext(ctx, query, qty, qty, now(), unitKey, warehouseID.String(), qty, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to commit stock: %w", err)
	}

	if err := swdb.checkAffected(ctx, result, unitKey, warehouseID, domain.ErrCommitFailed); err != nil {
		return nil, err
	}

	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

// checkAffected distinguishes a failed precondition from a missing row.
func (swdb *SingleWriterDB) checkAffected(ctx context.Context, result sql.Result, unitKey string, warehouseID uuid.UUID, precondErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	if _, err := swdb.fetchStockUnit(ctx, unitKey, warehouseID); err != nil {
		return err
	}
	return precondErr
}

// GetStockUnit retrieves a stock unit (read-only, no lock needed)
func (swdb *SingleWriterDB) GetStockUnit(ctx context.Context, unitKey string, warehouseID uuid.UUID) (*domain.StockUnit, error) {
	return swdb.fetchStockUnit(ctx, unitKey, warehouseID)
}

func (swdb *SingleWriterDB) fetchStockUnit(ctx context.Context, unitKey string, warehouseID uuid.UUID) (*domain.StockUnit, error) {
	query := `
		SELECT unit_key, warehouse_id, qty_on_hand, qty_reserved, low_stock_threshold, created_at, updated_at
		FROM stock_units
		WHERE unit_key = ? AND warehouse_id = ?
	`

	var unit domain.StockUnit
	var whID string
	var threshold sql.NullInt64
	var createdAtStr, updatedAtStr string

	err := swdb.db.QueryRowContext(ctx, query, unitKey, warehouseID.String()).Scan(
		&unit.UnitKey, &whID, &unit.QtyOnHand, &unit.QtyReserved,
		&threshold, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnitNotFound
		}
		return nil, fmt.Errorf("failed to get stock unit: %w", err)
	}

	unit.WarehouseID, _ = uuid.Parse(whID)
	if threshold.Valid {
		v := int(threshold.Int64)
		unit.LowStockThreshold = &v
	}
	unit.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	unit.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	return &unit, nil
}

// SetLowStockThreshold sets or clears the per-unit threshold override.
func (swdb *SingleWriterDB) SetLowStockThreshold(ctx context.Context, unitKey string, warehouseID uuid.UUID, threshold *int) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		UPDATE stock_units
		SET low_stock_threshold = ?, updated_at = ?
		WHERE unit_key = ? AND warehouse_id = ?
	`
	var value interface{}
	if threshold != nil {
		value = *threshold
	}
	result, err := swdb.db.ExecContext(ctx, query, value, now(), unitKey, warehouseID.String())
	if err != nil {
		return fmt.Errorf("failed to set low-stock threshold: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrUnitNotFound
	}
	return nil
}

// ListStockUnits returns every stock unit joined with its warehouse code,
// for the low-stock scan and admin listings.
func (swdb *SingleWriterDB) ListStockUnits(ctx context.Context) ([]*domain.StockUnit, map[string]string, error) {
	query := `
		SELECT s.unit_key, s.warehouse_id, s.qty_on_hand, s.qty_reserved,
		       s.low_stock_threshold, s.created_at, s.updated_at, w.code
		FROM stock_units s
		JOIN warehouses w ON w.id = s.warehouse_id
		ORDER BY s.unit_key, w.code
	`

	rows, err := swdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list stock units: %w", err)
	}
	defer rows.Close()

	units := make([]*domain.StockUnit, 0)
	codes := make(map[string]string)
	for rows.Next() {
		var unit domain.StockUnit
		var whID, code string
		var threshold sql.NullInt64
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&unit.UnitKey, &whID, &unit.QtyOnHand, &unit.QtyReserved,
			&threshold, &createdAtStr, &updatedAtStr, &code,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan stock unit: %w", err)
		}

		unit.WarehouseID, _ = uuid.Parse(whID)
		if threshold.Valid {
			v := int(threshold.Int64)
			unit.LowStockThreshold = &v
		}
		unit.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		unit.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

		units = append(units, &unit)
		codes[whID] = code
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating stock units: %w", err)
	}

	return units, codes, nil
}
