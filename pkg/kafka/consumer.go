package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Delivery is one message fetched from the source topic. It must be
// committed once handled for the consumer group to move past it.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Time      time.Time

	raw kafkago.Message
}

// Consumer wraps a kafka-go Reader in a consumer group with explicit commits,
// giving at-least-once delivery.
type Consumer struct {
	reader *kafkago.Reader
}

type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string
	// MaxMessageBytes must be at least the largest expected payload.
	MaxMessageBytes int
	// CommitInterval of zero commits synchronously on every Commit call.
	CommitInterval time.Duration
	MaxWait        time.Duration
	StartOffset    int64
}

// NewConsumer constructs a Consumer from the given configuration.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	rc, err := readerConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{reader: kafkago.NewReader(rc)}, nil
}

func readerConfig(cfg ConsumerConfig) (kafkago.ReaderConfig, error) {
	if len(cfg.Brokers) == 0 {
		return kafkago.ReaderConfig{}, errors.New("kafka consumer requires at least one broker")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return kafkago.ReaderConfig{}, fmt.Errorf("kafka consumer requires topic and group id (topic=%q group=%q)", cfg.Topic, cfg.GroupID)
	}

	rc := kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       cfg.MaxMessageBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    cfg.StartOffset,
	}
	if rc.StartOffset == 0 {
		rc.StartOffset = kafkago.LastOffset
	}
	if cfg.ClientID != "" {
		rc.Dialer = &kafkago.Dialer{ClientID: cfg.ClientID, Timeout: 10 * time.Second, DualStack: true}
	}
	return rc, nil
}

// Fetch blocks until the next message is available or ctx is done.
func (c *Consumer) Fetch(ctx context.Context) (Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, err
	}
	return newDelivery(msg), nil
}

func newDelivery(msg kafkago.Message) Delivery {
	return Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   decodeHeaders(msg.Headers),
		Time:      msg.Time,
		raw:       msg,
	}
}

// Commit marks deliveries as processed.
func (c *Consumer) Commit(ctx context.Context, deliveries ...Delivery) error {
	return c.reader.CommitMessages(ctx, rawMessages(deliveries)...)
}

func rawMessages(deliveries []Delivery) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(deliveries))
	for _, d := range deliveries {
		msgs = append(msgs, d.raw)
	}
	return msgs
}

// Close leaves the consumer group and closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
