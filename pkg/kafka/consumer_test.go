package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderConfig_Validation(t *testing.T) {
	_, err := readerConfig(ConsumerConfig{Topic: "a", GroupID: "g"})
	require.Error(t, err)

	_, err = readerConfig(ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"})
	require.Error(t, err)

	_, err = readerConfig(ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "a"})
	require.Error(t, err)

	_, err = NewConsumer(ConsumerConfig{Topic: "a", GroupID: "g"})
	require.Error(t, err)
}

func TestReaderConfig_Defaults(t *testing.T) {
	rc, err := readerConfig(ConsumerConfig{
		Brokers:         []string{"a:9092", "b:9092"},
		Topic:           "thumbs",
		GroupID:         "thumbrelay",
		MaxMessageBytes: 512 * 1024,
		MaxWait:         time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, rc.Brokers)
	assert.Equal(t, "thumbs", rc.Topic)
	assert.Equal(t, "thumbrelay", rc.GroupID)
	assert.Equal(t, 512*1024, rc.MaxBytes)
	assert.Equal(t, 1, rc.MinBytes)
	assert.Equal(t, time.Second, rc.MaxWait)
	assert.Zero(t, rc.CommitInterval, "commits must be synchronous by default")
	assert.Equal(t, kafkago.LastOffset, rc.StartOffset)
	assert.Nil(t, rc.Dialer)
}

func TestReaderConfig_ExplicitStartOffsetAndClientID(t *testing.T) {
	rc, err := readerConfig(ConsumerConfig{
		Brokers:     []string{"localhost:9092"},
		Topic:       "thumbs",
		GroupID:     "thumbrelay",
		ClientID:    "thumbnail_converter",
		StartOffset: kafkago.FirstOffset,
	})
	require.NoError(t, err)

	assert.Equal(t, kafkago.FirstOffset, rc.StartOffset)
	require.NotNil(t, rc.Dialer)
	assert.Equal(t, "thumbnail_converter", rc.Dialer.ClientID)
}

func TestNewDelivery(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Topic:     "thumbs",
		Partition: 2,
		Offset:    41,
		Key:       []byte("DESTEPTUL"),
		Value:     []byte{0x89, 0x50, 0x4E, 0x47},
		Headers:   []kafkago.Header{{Key: "traceparent", Value: []byte("00-abc-def-01")}},
		Time:      now,
	}

	d := newDelivery(msg)
	assert.Equal(t, "thumbs", d.Topic)
	assert.Equal(t, 2, d.Partition)
	assert.Equal(t, int64(41), d.Offset)
	assert.Equal(t, msg.Key, d.Key)
	assert.Equal(t, msg.Value, d.Value)
	assert.Equal(t, map[string]string{"traceparent": "00-abc-def-01"}, d.Headers)
	assert.Equal(t, now, d.Time)

	// Commit hands back exactly the fetched messages.
	other := newDelivery(kafkago.Message{Topic: "thumbs", Partition: 0, Offset: 7})
	assert.Equal(t, []kafkago.Message{msg, other.raw}, rawMessages([]Delivery{d, other}))
	assert.Empty(t, rawMessages(nil))
}
