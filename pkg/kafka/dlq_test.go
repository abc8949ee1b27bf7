package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := NewDLQProducerWithWriter(w, testLogger())

	src := kafka.Message{
		Topic:     "laas.listing.updated",
		Partition: 2,
		Offset:    41,
		Key:       []byte("l-1"),
		Value:     []byte(`{"event_type":"listing.updated"}`),
		Headers:   []kafka.Header{{Key: "traceparent", Value: []byte("00-abc")}},
	}
	require.NoError(t, d.Publish(context.Background(), src, errors.New("bad payload"), "search"))

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	got := msgs[0]
	assert.Equal(t, "laas.dlq.laas.listing.updated", got.Topic)
	assert.Equal(t, src.Value, got.Value)
	assert.Equal(t, "00-abc", headerValue(got.Headers, "traceparent"))
	assert.Equal(t, "laas.listing.updated", headerValue(got.Headers, "dlq.original_topic"))
	assert.Equal(t, "2", headerValue(got.Headers, "dlq.original_partition"))
	assert.Equal(t, "41", headerValue(got.Headers, "dlq.original_offset"))
	assert.Equal(t, "search", headerValue(got.Headers, "dlq.consumer_group"))
	assert.Equal(t, "bad payload", headerValue(got.Headers, "dlq.error"))
}

func TestDLQProducer_WriteFailure(t *testing.T) {
	d := NewDLQProducerWithWriter(&fakeWriter{err: errors.New("down")}, testLogger())
	err := d.Publish(context.Background(), kafka.Message{Topic: "t"}, nil, "g")
	assert.ErrorContains(t, err, "laas.dlq.t")
}
