package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kavyam172/E-commerce-FSE/internal/orders"
)

type MockRepository struct {
	mu sync.Mutex

	Events       []*orders.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*orders.StoredOrder, error) {
	return nil, orders.ErrIdempotencyKeyNotFound
}

func (m *MockRepository) CreatePendingOrder(ctx context.Context, order *orders.StoredOrder) error {
	return nil
}

func (m *MockRepository) ConfirmOrder(ctx context.Context, orderID, paymentReference, eventType string, eventPayload []byte) error {
	return nil
}

func (m *MockRepository) FailOrder(ctx context.Context, orderID string) error { return nil }

func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*orders.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if limit < len(m.Events) {
		return m.Events[:limit], nil
	}
	return m.Events, nil
}

func (m *MockRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

type MockWriter struct {
	mu       sync.Mutex
	WriteErr error
	Messages []kafka.Message
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]kafka.Message, len(m.Messages))
	copy(out, m.Messages)
	return out
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := &MockRepository{
		Events: []*orders.OutboxEvent{
			{ID: 1, AggregateID: "order-1", EventType: orders.EventOrderConfirmed, Payload: []byte(`{"order_id":"order-1"}`)},
			{ID: 2, AggregateID: "order-2", EventType: orders.EventOrderConfirmed, Payload: []byte(`{"order_id":"order-2"}`)},
		},
	}
	writer := &MockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer, time.Second)

	poller.processUnpublishedEvents(context.Background())

	written := writer.Written()
	require.Len(t, written, 2)
	assert.Equal(t, []byte("order-1"), written[0].Key)
	assert.Equal(t, []byte(`{"order_id":"order-1"}`), written[0].Value)
	require.Len(t, written[0].Headers, 1)
	assert.Equal(t, "event_type", written[0].Headers[0].Key)
	assert.Equal(t, []byte(orders.EventOrderConfirmed), written[0].Headers[0].Value)

	assert.Equal(t, []int64{1, 2}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEventsFetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("db down")}
	writer := &MockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer, time.Second)

	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.Written())
	assert.Empty(t, repo.ProcessedIDs)
}

func TestProcessUnpublishedEventsWriteErrorLeavesEventUnprocessed(t *testing.T) {
	repo := &MockRepository{
		Events: []*orders.OutboxEvent{
			{ID: 7, AggregateID: "order-7", EventType: orders.EventOrderConfirmed, Payload: []byte(`{}`)},
		},
	}
	writer := &MockWriter{WriteErr: errors.New("broker unreachable")}
	poller := NewOutboxPollerWithWriter(repo, writer, time.Second)

	poller.processUnpublishedEvents(context.Background())

	// Not marked processed, so the next tick retries it.
	assert.Empty(t, repo.ProcessedIDs)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &MockRepository{
		Events: []*orders.OutboxEvent{
			{ID: 3, AggregateID: "order-3", EventType: orders.EventOrderConfirmed, Payload: []byte(`{}`)},
		},
	}
	writer := &MockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(writer.Written()) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}
