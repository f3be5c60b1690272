package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/services"
)

type call struct {
	method string
	args   []any
}

type fakeDispatcher struct {
	mu        sync.Mutex
	calls     []call
	delivered int
	err       error
}

func (f *fakeDispatcher) record(method string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})
}

func (f *fakeDispatcher) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeDispatcher) CreateOrderNotification(_ context.Context, order *models.Order, event services.OrderEvent) ([]services.NotificationDTO, error) {
	f.record("order", order.ID, event)
	return []services.NotificationDTO{{ID: "n1"}, {ID: "n2"}}, f.err
}

func (f *fakeDispatcher) NotifyOrderUpdate(_ context.Context, orderID, status, recipientID string) (*services.NotificationDTO, error) {
	f.record("status", orderID, status, recipientID)
	return &services.NotificationDTO{ID: "n3"}, f.err
}

func (f *fakeDispatcher) CreateProductNotification(_ context.Context, product *models.Product, event services.ProductEvent) (*services.NotificationDTO, error) {
	f.record("product", product.ID, event)
	return nil, f.err
}

func (f *fakeDispatcher) NotifyNewReview(_ context.Context, productID, farmerID string, rating int) (*services.NotificationDTO, error) {
	f.record("review", productID, farmerID, rating)
	return &services.NotificationDTO{ID: "n4"}, f.err
}

func (f *fakeDispatcher) CreateSystemNotification(_ context.Context, message, notificationType string, userIDs []string) ([]services.NotificationDTO, error) {
	f.record("system", message, notificationType, userIDs)
	return nil, f.err
}

func (f *fakeDispatcher) DeliverAll(_ context.Context, notifications []services.NotificationDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered += len(notifications)
}

func TestDecode(t *testing.T) {
	event, err := Decode([]byte(`{"type":" Order.Created ","order":{"id":"o1","orderNumber":"PH-1","buyerId":"b1","items":[{"productId":"p1","productName":"Okra","quantity":2,"farmerId":"f1"}]}}`))
	require.NoError(t, err)
	require.Equal(t, "order.created", event.Type)
	require.Equal(t, "o1", event.Order.ID)
	require.Equal(t, "f1", event.Order.Items[0].FarmerID)
	require.Equal(t, "o1", event.Key())

	_, err = Decode([]byte(`{"order":{}}`))
	require.Error(t, err)
	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestEventTypeMapping(t *testing.T) {
	require.Equal(t, services.OrderEventNew, OrderEventFor("order.created"))
	require.Equal(t, services.OrderEventNew, OrderEventFor("order.placed"))
	require.Equal(t, services.OrderEventShipped, OrderEventFor("order.shipped"))
	require.Equal(t, services.OrderEventCancelled, OrderEventFor("ORDER.CANCELLED"))

	require.Equal(t, services.ProductEventLowStock, ProductEventFor("product.low_stock"))
	require.Equal(t, services.ProductEventOutOfStock, ProductEventFor("product.out_of_stock"))
	require.Equal(t, services.ProductEventCreated, ProductEventFor("product.created"))
}

func TestHandlerRoutesEvents(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := handler.Handle(ctx, Event{Type: "order.confirmed", Order: &models.Order{ID: "o1"}})
	require.NoError(t, err)
	require.Len(t, created, 2)

	_, err = handler.Handle(ctx, Event{Type: TypeOrderStatus, Order: &models.Order{ID: "o1", Status: "shipped"}, RecipientID: "b1"})
	require.NoError(t, err)

	created, err = handler.Handle(ctx, Event{Type: "product.low_stock", Product: &models.Product{ID: "p1"}})
	require.NoError(t, err)
	require.Empty(t, created)

	require.NoError(t, handler.Publish(ctx, Event{Type: TypeReviewCreated, Review: &Review{ProductID: "p1", FarmerID: "f1", Rating: 4}}))
	require.NoError(t, handler.Publish(ctx, Event{Type: TypeSystemBroadcast, Message: "Maintenance", UserIDs: []string{"u1"}}))

	calls := dispatcher.snapshot()
	require.Equal(t, []call{
		{"order", []any{"o1", services.OrderEventConfirmed}},
		{"status", []any{"o1", "shipped", "b1"}},
		{"product", []any{"p1", services.ProductEventLowStock}},
		{"review", []any{"p1", "f1", 4}},
		{"system", []any{"Maintenance", "", []string{"u1"}}},
	}, calls)
	require.Equal(t, 4, dispatcher.delivered)
}

func TestHandlerRejectsIncompleteAndUnknownEvents(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), Event{Type: "order.created"})
	require.ErrorIs(t, err, ErrIncompleteEvent)
	_, err = handler.Handle(context.Background(), Event{Type: TypeOrderStatus, Order: &models.Order{ID: "o1"}})
	require.ErrorIs(t, err, ErrIncompleteEvent)
	_, err = handler.Handle(context.Background(), Event{Type: "product.updated"})
	require.ErrorIs(t, err, ErrIncompleteEvent)
	_, err = handler.Handle(context.Background(), Event{Type: "review.created"})
	require.ErrorIs(t, err, ErrIncompleteEvent)
	_, err = handler.Handle(context.Background(), Event{Type: "cart.abandoned"})
	require.ErrorIs(t, err, ErrUnsupportedEvent)
	require.Empty(t, dispatcher.snapshot())

	_, err = NewHandler(nil)
	require.Error(t, err)
}

func TestHandlerValidatesEventBodies(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)
	ctx := context.Background()

	cases := map[string]Event{
		"zero rating":      {Type: TypeReviewCreated, Review: &Review{ProductID: "p1", FarmerID: "f1", Rating: 0}},
		"rating above max": {Type: TypeReviewCreated, Review: &Review{ProductID: "p1", FarmerID: "f1", Rating: 6}},
		"review no farmer": {Type: TypeReviewCreated, Review: &Review{ProductID: "p1", Rating: 3}},
		"order without id": {Type: "order.shipped", Order: &models.Order{}},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := handler.Handle(ctx, event)
			require.ErrorIs(t, err, ErrIncompleteEvent)
		})
	}
	require.Empty(t, dispatcher.snapshot())
	require.Zero(t, dispatcher.delivered)
}

func TestConsumerSkipsInvalidReview(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)

	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	reader.messages <- kafka.Message{Offset: 7, Value: []byte(`{"type":"review.created","review":{"productId":"p1","farmerId":"f1","rating":0}}`)}

	consumer := newConsumer(reader, handler)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Empty(t, dispatcher.snapshot())
}

func TestHandlerDeliversPartialFanout(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("store down")}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)

	created, err := handler.Handle(context.Background(), Event{Type: "order.created", Order: &models.Order{ID: "o1"}})
	require.Error(t, err)
	require.Len(t, created, 2)
	require.Equal(t, 2, dispatcher.delivered)
}

type fakeReader struct {
	messages  chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-r.messages:
		return msg, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerHandlesAndCommitsEveryMessage(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler, err := NewHandler(dispatcher)
	require.NoError(t, err)

	reader := &fakeReader{messages: make(chan kafka.Message, 3)}
	reader.messages <- kafka.Message{Offset: 1, Value: []byte(`{"type":"order.created","order":{"id":"o1"}}`)}
	reader.messages <- kafka.Message{Offset: 2, Value: []byte(`garbage`)}
	reader.messages <- kafka.Message{Offset: 3, Value: []byte(`{"type":"unknown.thing"}`)}

	consumer := newConsumer(reader, handler)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []int64{1, 2, 3}, reader.commits())
	require.Len(t, dispatcher.snapshot(), 1)
	require.NoError(t, consumer.Close())
	require.True(t, reader.closed)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishesKeyedEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	producer := &Producer{writer: writer, now: time.Now}

	err := producer.Publish(context.Background(), Event{Type: "product.low_stock", Product: &models.Product{ID: "p9", Stock: 2, FarmerID: "f1"}})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	require.Equal(t, "p9", string(writer.messages[0].Key))

	decoded, err := Decode(writer.messages[0].Value)
	require.NoError(t, err)
	require.Equal(t, "f1", decoded.Product.FarmerID)

	writer.err = errors.New("broker down")
	require.Error(t, producer.Publish(context.Background(), Event{Type: "system.broadcast"}))
}

func TestKafkaConfigValidation(t *testing.T) {
	_, err := NewProducer(KafkaConfig{})
	require.Error(t, err)
	_, err = NewConsumer(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)
}
