package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventMessage(t *testing.T, topic string, offset int64) kafka.Message {
	t.Helper()
	evt, err := NewEvent("listing.updated", "tenant-1", "listing", "l-1", "catalog", map[string]string{})
	require.NoError(t, err)
	raw, err := evt.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Offset: offset, Value: raw}
}

// runUntilDrained starts c and stops it once the reader has served every message.
func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_CommitsSuccessfulMessages(t *testing.T) {
	topic := "laas.test.success"
	r := newFakeReader(eventMessage(t, topic, 1), eventMessage(t, topic, 2))
	var handled atomic.Int32

	c := NewConsumer(ConsumerConfig{Topic: topic, GroupID: "g-success"}, func(_ context.Context, e *Event) error {
		assert.Equal(t, "tenant-1", e.TenantID)
		handled.Add(1)
		return nil
	}, testLogger(), WithReader(r))

	runUntilDrained(t, c, r)

	assert.EqualValues(t, 2, handled.Load())
	assert.Len(t, r.Committed(), 2)
	assert.Equal(t, 1, r.closed)
	assert.Equal(t, 2.0, testutil.ToFloat64(consumerProcessed.WithLabelValues(topic, "g-success")))
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	topic := "laas.test.retry"
	r := newFakeReader(eventMessage(t, topic, 1))
	var attempts atomic.Int32

	c := NewConsumer(ConsumerConfig{Topic: topic, GroupID: "g-retry", MaxRetries: 3, RetryBackoff: time.Millisecond},
		func(context.Context, *Event) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		}, testLogger(), WithReader(r))

	runUntilDrained(t, c, r)

	assert.EqualValues(t, 3, attempts.Load())
	assert.Len(t, r.Committed(), 1)
}

func TestConsumer_ExhaustedRetriesAreDeadLettered(t *testing.T) {
	topic := "laas.test.poison"
	r := newFakeReader(eventMessage(t, topic, 7))
	w := &fakeWriter{}

	c := NewConsumer(ConsumerConfig{Topic: topic, GroupID: "g-poison", MaxRetries: 2, RetryBackoff: time.Millisecond},
		func(context.Context, *Event) error { return errors.New("permanent") },
		testLogger(), WithReader(r), WithDeadLetter(NewDLQProducerWithWriter(w, testLogger())))

	runUntilDrained(t, c, r)

	require.Len(t, w.Messages(), 1)
	assert.Equal(t, DLQTopic(topic), w.Messages()[0].Topic)
	assert.Len(t, r.Committed(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(consumerFailed.WithLabelValues(topic, "g-poison")))
	assert.Equal(t, 1.0, testutil.ToFloat64(consumerDeadLettered.WithLabelValues(topic, "g-poison")))
}

func TestConsumer_UndecodableMessageSkipsHandler(t *testing.T) {
	topic := "laas.test.garbage"
	r := newFakeReader(kafka.Message{Topic: topic, Value: []byte("{")})
	called := false

	c := NewConsumer(ConsumerConfig{Topic: topic, GroupID: "g-garbage"},
		func(context.Context, *Event) error { called = true; return nil },
		testLogger(), WithReader(r))

	runUntilDrained(t, c, r)

	assert.False(t, called)
	assert.Len(t, r.Committed(), 1)
}

func TestConsumer_DuplicatesCountedNotFailed(t *testing.T) {
	topic := "laas.test.dup"
	msg := eventMessage(t, topic, 1)
	r := newFakeReader(msg, msg)
	var handled atomic.Int32

	inner := func(context.Context, *Event) error { handled.Add(1); return nil }
	c := NewConsumer(ConsumerConfig{Topic: topic, GroupID: "g-dup"},
		IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, testLogger()),
		testLogger(), WithReader(r))

	runUntilDrained(t, c, r)

	assert.EqualValues(t, 1, handled.Load())
	assert.Len(t, r.Committed(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(consumerDuplicate.WithLabelValues(topic, "g-dup")))
	assert.Zero(t, testutil.ToFloat64(consumerFailed.WithLabelValues(topic, "g-dup")))
}
