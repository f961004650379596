package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"stock-service/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Note: mocking sarama.SyncProducer is not worth the ceremony here; these
// tests cover the routing logic the publisher layers on top of it.

func testPublisher() *KafkaEventPublisher {
	return &KafkaEventPublisher{
		logger: zap.NewNop(),
		config: &config.Config{
			KafkaTopicStock:  "stock.moves",
			KafkaTopicOrders: "stock.orders",
			KafkaTopicAlerts: "stock.alerts",
		},
	}
}

func TestGetTopicForEvent_StockEvents(t *testing.T) {
	p := testPublisher()

	stockEvents := []interface{}{
		StockReceivedEvent{},
		StockReservedEvent{},
		StockReleasedEvent{},
		StockCommittedEvent{},
		StockAdjustedEvent{},
		StockTransferredEvent{},
	}
	for _, event := range stockEvents {
		topic, err := p.getTopicForEvent(event)
		assert.NoError(t, err)
		assert.Equal(t, "stock.moves", topic, "%T", event)
	}
}

func TestGetTopicForEvent_OrderEvents(t *testing.T) {
	p := testPublisher()

	for _, event := range []interface{}{OrderCommittedEvent{}, OrderCanceledEvent{}, FulfillmentTaskCreatedEvent{}} {
		topic, err := p.getTopicForEvent(event)
		assert.NoError(t, err)
		assert.Equal(t, "stock.orders", topic, "%T", event)
	}
}

func TestGetTopicForEvent_AlertEvents(t *testing.T) {
	p := testPublisher()

	topic, err := p.getTopicForEvent(LowStockDetectedEvent{})
	assert.NoError(t, err)
	assert.Equal(t, "stock.alerts", topic)
}

func TestGetTopicForEvent_UnknownType(t *testing.T) {
	p := testPublisher()

	_, err := p.getTopicForEvent(struct{}{})
	assert.Error(t, err)
}

func TestGetEventType(t *testing.T) {
	p := testPublisher()

	assert.Equal(t, "StockReserved", p.getEventType(StockReservedEvent{}))
	assert.Equal(t, "StockCommitted", p.getEventType(StockCommittedEvent{}))
	assert.Equal(t, "OrderCanceled", p.getEventType(OrderCanceledEvent{}))
	assert.Equal(t, "LowStockDetected", p.getEventType(LowStockDetectedEvent{}))
	assert.Equal(t, "Unknown", p.getEventType(struct{}{}))
}

func TestGetPartitionKey_StockEventsKeyByUnit(t *testing.T) {
	p := testPublisher()

	key := p.getPartitionKey(StockReservedEvent{UnitKey: "product:p-1:v-1"})
	assert.Equal(t, "product:p-1:v-1", key)

	key = p.getPartitionKey(StockTransferredEvent{UnitKey: "product:p-2:v-1"})
	assert.Equal(t, "product:p-2:v-1", key)
}

func TestGetPartitionKey_OrderEventsKeyByOrder(t *testing.T) {
	p := testPublisher()

	key := p.getPartitionKey(OrderCommittedEvent{OrderID: "order-1"})
	assert.Equal(t, "order-1", key)

	key = p.getPartitionKey(FulfillmentTaskCreatedEvent{OrderID: "order-2"})
	assert.Equal(t, "order-2", key)
}

func TestInMemoryEventPublisher_CollectsInOrder(t *testing.T) {
	p := NewEventPublisher()
	ctx := context.Background()

	assert.NoError(t, p.Publish(ctx, StockReceivedEvent{UnitKey: "a", OccurredAt: time.Now()}))
	assert.NoError(t, p.Publish(ctx, StockReservedEvent{UnitKey: "a", OccurredAt: time.Now()}))

	collected := p.Events()
	assert.Len(t, collected, 2)
	_, first := collected[0].(StockReceivedEvent)
	_, second := collected[1].(StockReservedEvent)
	assert.True(t, first)
	assert.True(t, second)
}

func TestInMemoryEventPublisher_ConcurrentPublish(t *testing.T) {
	p := NewEventPublisher()
	ctx := context.Background()

	const publishers = 50
	var wg sync.WaitGroup
	wg.Add(publishers)
	for i := 0; i < publishers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(ctx, StockReservedEvent{UnitKey: "product:p-1:v-1", OccurredAt: time.Now()}))
		}()
	}
	wg.Wait()

	assert.Len(t, p.Events(), publishers)
}

func TestInMemoryEventPublisher_EventsReturnsSnapshot(t *testing.T) {
	p := NewEventPublisher()
	ctx := context.Background()

	assert.NoError(t, p.Publish(ctx, StockReceivedEvent{UnitKey: "a"}))
	snapshot := p.Events()
	assert.NoError(t, p.Publish(ctx, StockReceivedEvent{UnitKey: "b"}))

	assert.Len(t, snapshot, 1)
	assert.Len(t, p.Events(), 2)
}
