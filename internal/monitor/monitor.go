package monitor

import (
	"context"
	"time"

	"stock-service/internal/events"
	"stock-service/internal/store"

	"go.uber.org/zap"
)

// LowStockMonitor periodically scans every stock unit against its
// threshold and reports violations. Read-only with respect to the store;
// a failed scan is logged and the next scheduled run proceeds on its own.
type LowStockMonitor struct {
	store           *store.StockStore
	eventBus        events.EventPublisher
	logger          *zap.Logger
	interval        time.Duration
	globalThreshold int
}

func New(st *store.StockStore, eventBus events.EventPublisher, interval time.Duration, globalThreshold int, logger *zap.Logger) *LowStockMonitor {
	return &LowStockMonitor{
		store:           st,
		eventBus:        eventBus,
		logger:          logger,
		interval:        interval,
		globalThreshold: globalThreshold,
	}
}

// Run scans on the configured interval until ctx is canceled.
func (m *LowStockMonitor) Run(ctx context.Context) {
	m.logger.Info("Low-stock monitor started",
		zap.Duration("interval", m.interval),
		zap.Int("global_threshold", m.globalThreshold),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Low-stock monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan. No retry within a cycle.
func (m *LowStockMonitor) RunOnce(ctx context.Context) {
	violations, err := m.store.ScanLowStock(ctx, m.globalThreshold)
	if err != nil {
		m.logger.Error("Low-stock scan failed", zap.Error(err))
		return
	}

	if len(violations) == 0 {
		m.logger.Debug("Low-stock scan clean")
		return
	}

	for _, v := range violations {
		m.logger.Warn("Low stock detected",
			zap.String("unit_key", v.UnitKey),
			zap.String("warehouse", v.Warehouse),
			zap.Int("available", v.Available),
			zap.Int("threshold", v.Threshold),
		)

		if m.eventBus != nil {
			event := events.LowStockDetectedEvent{
				UnitKey:    v.UnitKey,
				Warehouse:  v.Warehouse,
				Available:  v.Available,
				Threshold:  v.Threshold,
				OccurredAt: time.Now().UTC(),
			}
			if err := m.eventBus.Publish(ctx, event); err != nil {
				m.logger.Warn("Failed to publish low-stock event", zap.Error(err))
			}
		}
	}
}
