package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/logger"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type broadcasterMock struct {
	mock.Mock
}

func (m *broadcasterMock) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	return m.Called(userID, event, data).Error(0)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...entity.Event) error {
	return errors.New("брокер недоступен")
}

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(_ context.Context, events ...entity.Event) error {
	c.n += len(events)
	return nil
}

func testEvent() entity.Event {
	orderID := uuid.New()
	return entity.Event{
		ID:           uuid.New(),
		Type:         entity.EventOrderCompleted,
		Key:          orderID,
		OrderID:      &orderID,
		Buyer:        uuid.New(),
		Seller:       uuid.New(),
		Amount:       1_000_000,
		PlatformFee:  25_000,
		SellerPayout: 975_000,
		OccurredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_KeysByRecord(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	ev := testEvent()

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, ev.Key.String(), string(msg.Key))
	assert.Equal(t, "order.completed", string(msg.Headers[0].Value))

	var decoded entity.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.SellerPayout, decoded.SellerPayout)
	assert.Equal(t, ev.Buyer, decoded.Buyer)
}

func TestKafkaPublisher_WrapsWriterError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("timeout")}}
	err := p.Publish(context.Background(), testEvent())
	assert.ErrorContains(t, err, "timeout")
}

func TestWSPublisher_SendsToBothParties(t *testing.T) {
	hub := &broadcasterMock{}
	ev := testEvent()
	hub.On("BroadcastToUser", ev.Buyer, "order.completed", ev).Return(nil).Once()
	hub.On("BroadcastToUser", ev.Seller, "order.completed", ev).Return(nil).Once()

	require.NoError(t, NewWSPublisher(hub).Publish(context.Background(), ev))
	hub.AssertExpectations(t)
}

func TestMultiPublisher_IsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	counter := &countingPublisher{}
	m := NewMultiPublisher(log, failingPublisher{}, counter)

	require.NoError(t, m.Publish(context.Background(), testEvent(), testEvent()))
	assert.Equal(t, 2, counter.n)
	assert.Contains(t, buf.String(), "брокер недоступен")
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, NewLogPublisher(logger.Nop()).Publish(context.Background(), testEvent()))
}
