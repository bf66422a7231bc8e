package kafka

import (
	"context"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Producer wraps kafka-go Writer bound to a single destination topic.
type Producer struct {
	writer *kafkago.Writer
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
	// MaxMessageBytes bounds a single produced batch; thumbnails are tiny
	// but the limit mirrors the consumer side.
	MaxMessageBytes int64
	Compression     kafkago.Compression
	RequiredAcks    kafkago.RequiredAcks
	MaxAttempts     int
}

// NewProducer constructs a Producer from the given configuration.
func NewProducer(cfg ProducerConfig) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		BatchBytes:   cfg.MaxMessageBytes,
		RequiredAcks: cfg.RequiredAcks,
		Compression:  cfg.Compression,
		MaxAttempts:  cfg.MaxAttempts,
	}
	if cfg.ClientID != "" {
		w.Transport = &kafkago.Transport{ClientID: cfg.ClientID}
	}
	return &Producer{writer: w}
}

// Topic is the destination topic every message is written to.
func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Publish sends a Kafka message with optional headers. It blocks until the
// configured acks are received.
func (p *Producer) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	msg := kafkago.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: encodeHeaders(headers),
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close(ctx context.Context) error {
	return p.writer.Close()
}

// CompressionFromString maps textual codec to kafka-go value. Unknown names
// fall back to snappy; "none" disables compression.
func CompressionFromString(name string) kafkago.Compression {
	switch strings.ToLower(name) {
	case "none", "":
		return 0
	case "gzip":
		return kafkago.Gzip
	case "snappy":
		return kafkago.Snappy
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return kafkago.Snappy
	}
}

func encodeHeaders(headers map[string]string) []kafkago.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafkago.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func decodeHeaders(headers []kafkago.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
