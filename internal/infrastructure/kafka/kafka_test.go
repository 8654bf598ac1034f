package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-fulfillment/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// ============================================
// Producer Tests
// ============================================

func TestProducer_Publish_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	e := events.Event{ID: "e1", AggregateID: "o-1", EventType: events.TypeOrderCreated, Data: json.RawMessage(`{}`), Timestamp: time.Now()}

	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, events.TypeOrderCreated, string(w.msgs[0].Headers[0].Value))

	var decoded events.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "e1", decoded.ID)
}

func TestProducer_Publish_WriterError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), events.Event{AggregateID: "o-1", EventType: events.TypeOrderCreated})

	assert.ErrorContains(t, err, "broker down")
}

// ============================================
// Consumer Tests
// ============================================

func TestConsumer_Consume_HandlesAndCommits(t *testing.T) {
	good, err := json.Marshal(events.Event{ID: "e1", AggregateID: "o-1", EventType: events.TypeOrderCreated})
	require.NoError(t, err)
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: good},
	}}
	c := &Consumer{reader: r}

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(_ context.Context, e events.Event) error {
			handled = append(handled, e.ID)
			if len(handled) == 2 {
				return errors.New("smtp unavailable")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.Committed()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"e1", "e1"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.Committed())
}
