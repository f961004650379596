package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// Stock domain events. One event per successful counter mutation; the
// snapshot fields carry the post-mutation counters.
type StockReceivedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	OccurredAt time.Time `json:"occurredAt"`
}

type StockReservedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"`
	CartID     string    `json:"cartId,omitempty"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	OccurredAt time.Time `json:"occurredAt"`
}

type StockReleasedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"`
	CartID     string    `json:"cartId,omitempty"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	OccurredAt time.Time `json:"occurredAt"`
}

type StockCommittedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"`
	OrderID    string    `json:"orderId,omitempty"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	OccurredAt time.Time `json:"occurredAt"`
}

type StockAdjustedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"` // signed adjustment
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	OccurredAt time.Time `json:"occurredAt"`
}

type StockTransferredEvent struct {
	UnitKey       string    `json:"unitKey"`
	FromWarehouse string    `json:"fromWarehouse"`
	ToWarehouse   string    `json:"toWarehouse"`
	Qty           int       `json:"qty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Order and monitoring events.
type OrderCommittedEvent struct {
	OrderID    string    `json:"orderId"`
	CartID     string    `json:"cartId"`
	Lines      int       `json:"lines"`
	OccurredAt time.Time `json:"occurredAt"`
}

type OrderCanceledEvent struct {
	OrderID    string    `json:"orderId"`
	CartID     string    `json:"cartId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

type FulfillmentTaskCreatedEvent struct {
	TaskID     string    `json:"taskId"`
	OrderID    string    `json:"orderId"`
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Qty        int       `json:"qty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type LowStockDetectedEvent struct {
	UnitKey    string    `json:"unitKey"`
	Warehouse  string    `json:"warehouse"`
	Available  int       `json:"available"`
	Threshold  int       `json:"threshold"`
	OccurredAt time.Time `json:"occurredAt"`
}

// InMemoryEventPublisher collects events locally, used when no broker is
// reachable and in tests. Safe for concurrent publishers.
type InMemoryEventPublisher struct {
	logger *zap.Logger
	mu     sync.Mutex
	events []interface{}
}

func NewEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		logger: zap.NewNop(),
		events: make([]interface{}, 0),
	}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, event interface{}) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	p.logger.Info("Event published (in-memory)", zap.Any("event", event))
	return nil
}

// Events returns a snapshot of the collected events.
func (p *InMemoryEventPublisher) Events() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make([]interface{}, len(p.events))
	copy(snapshot, p.events)
	return snapshot
}
