package warehouse

import (
	"context"
	"sync"

	"stock-service/internal/database"
	"stock-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Resolver resolves the warehouse a stock operation targets: an explicit
// code, or a lazily-created default. The default's identity is cached for
// the resolver's lifetime; Reset drops the cache and is part of the public
// contract for tests and default-warehouse changes.
//
// The resolver is an injected dependency, not module-level state, so two
// resolvers never share a stale cache.
type Resolver struct {
	db     *database.SingleWriterDB
	logger *zap.Logger

	defaultCode string
	defaultName string

	mu      sync.RWMutex
	cached  *domain.Warehouse
	ensure  singleflight.Group
}

func NewResolver(db *database.SingleWriterDB, defaultCode, defaultName string, logger *zap.Logger) *Resolver {
	return &Resolver{
		db:          db,
		logger:      logger,
		defaultCode: defaultCode,
		defaultName: defaultName,
	}
}

// EnsureDefault returns the default warehouse, creating it idempotently if
// absent. Concurrent first-time callers are collapsed into one ensure; the
// underlying insert is an atomic upsert keyed by the unique code, so even
// racing processes converge on a single default.
func (r *Resolver) EnsureDefault(ctx context.Context) (*domain.Warehouse, error) {
	r.mu.RLock()
	cached := r.cached
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := r.ensure.Do("default", func() (interface{}, error) {
		wh, err := r.db.GetDefaultWarehouse(ctx)
		if err == nil {
			return wh, nil
		}
		if err != domain.ErrWarehouseNotFound {
			return nil, err
		}

		wh, err = r.db.EnsureWarehouse(ctx, r.defaultCode, r.defaultName, true)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Created default warehouse",
			zap.String("code", wh.Code),
			zap.String("warehouse_id", wh.ID.String()),
		)
		return wh, nil
	})
	if err != nil {
		return nil, err
	}

	wh := v.(*domain.Warehouse)
	r.mu.Lock()
	r.cached = wh
	r.mu.Unlock()
	return wh, nil
}

// Resolve returns the warehouse for an explicit code, or the default when
// code is empty.
func (r *Resolver) Resolve(ctx context.Context, code string) (*domain.Warehouse, error) {
	if code == "" {
		return r.EnsureDefault(ctx)
	}
	return r.db.GetWarehouseByCode(ctx, code)
}

// Reset invalidates the cached default warehouse identity. Call it
// whenever the default warehouse changes, and between tests.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}
