package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/thumbrelay/internal/relay"
	"github.com/your-org/thumbrelay/pkg/config"
	"github.com/your-org/thumbrelay/pkg/kafka"
	"github.com/your-org/thumbrelay/pkg/logger"
	"github.com/your-org/thumbrelay/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	logr.Info("starting thumbnail converter",
		zap.String("version", cfg.App.Version),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("source_topic", cfg.Kafka.SourceTopic),
		zap.String("dest_topic", cfg.Kafka.DestinationTopic),
		zap.Int("thumbnail_size", cfg.Thumbnail.Size),
		zap.Int("jpeg_quality", cfg.Thumbnail.JPEGQuality),
	)

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.SourceTopic,
		GroupID:         cfg.Kafka.GroupID,
		ClientID:        cfg.Kafka.ClientID,
		MaxMessageBytes: cfg.Kafka.MaxMessageBytes,
		CommitInterval:  cfg.Kafka.CommitInterval,
		MaxWait:         cfg.Kafka.MaxWait,
	})
	if err != nil {
		logr.Fatal("init kafka consumer", zap.Error(err))
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.DestinationTopic,
		ClientID:        cfg.Kafka.ClientID,
		BatchSize:       cfg.Kafka.BatchSize,
		BatchTimeout:    cfg.Kafka.BatchTimeout,
		MaxMessageBytes: int64(cfg.Kafka.MaxMessageBytes),
		Compression:     kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
		RequiredAcks:    kafkago.RequireAll,
		MaxAttempts:     cfg.Kafka.Retries,
	})

	service := relay.NewService(relay.Params{
		Source:       consumer,
		Publisher:    producer,
		Spec:         cfg.Spec(),
		Workers:      cfg.Relay.Workers,
		RetryBackoff: cfg.Kafka.RetryBackoff,
		Logger:       logr,
	})

	handler := relay.NewHTTPHandler(service, logr, cfg.HTTP.MaxUploadBytes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := service.Run(ctx); err != nil {
			logr.Error("relay stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("http server starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Error("http server failed", zap.Error(err))
		stop()
	}

	<-relayDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Close(shutdownCtx); err != nil {
		logr.Error("service shutdown failed", zap.Error(err))
	}
	logr.Info("thumbnail converter stopped")
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
