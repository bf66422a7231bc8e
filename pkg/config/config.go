package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/your-org/thumbrelay/internal/thumbnail"
)

// Config captures the full runtime configuration of the thumbnail relay.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	Thumbnail ThumbnailConfig
	Relay     RelayConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"thumbrelay"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"APP_LOG_FORMAT" envDefault:"json"`
}

type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadBytes int64         `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"524288"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	SourceTopic      string        `env:"KAFKA_SOURCE_TOPIC" envDefault:"hass.agent.media_player.thumbnail"`
	DestinationTopic string        `env:"KAFKA_DESTINATION_TOPIC" envDefault:"hass.agent.media_player.thumbnail_small"`
	GroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"thumbrelay"`
	ClientID         string        `env:"KAFKA_CLIENT_ID" envDefault:"thumbnail_converter"`
	MaxMessageBytes  int           `env:"KAFKA_MAX_MESSAGE_BYTES" envDefault:"524288"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	RetryBackoff     time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"1s"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"none"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	CommitInterval   time.Duration `env:"KAFKA_COMMIT_INTERVAL" envDefault:"0s"`
	MaxWait          time.Duration `env:"KAFKA_MAX_WAIT" envDefault:"1s"`
}

type ThumbnailConfig struct {
	// Size bounds both width and height of the output.
	Size        int `env:"THUMBNAIL_SIZE" envDefault:"170"`
	JPEGQuality int `env:"THUMBNAIL_JPEG_QUALITY" envDefault:"85"`
	// MaxSourcePixels caps width*height declared by an input header.
	MaxSourcePixels int64 `env:"THUMBNAIL_MAX_SOURCE_PIXELS" envDefault:"16777216"`
}

type RelayConfig struct {
	// Workers of 1 keeps output order equal to input order.
	Workers int `env:"RELAY_WORKERS" envDefault:"1"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=thumbrelay"`
}

// Spec returns the thumbnail spec the pipeline runs with.
func (c *Config) Spec() thumbnail.Spec {
	return thumbnail.Spec{
		MaxDimension:    c.Thumbnail.Size,
		JPEGQuality:     c.Thumbnail.JPEGQuality,
		MaxSourcePixels: c.Thumbnail.MaxSourcePixels,
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Spec().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must not be empty"))
	}
	if c.Kafka.SourceTopic == "" || c.Kafka.DestinationTopic == "" {
		errs = append(errs, errors.New("source and destination topics are required"))
	} else if c.Kafka.SourceTopic == c.Kafka.DestinationTopic {
		errs = append(errs, fmt.Errorf("source and destination topic must differ, both are %q", c.Kafka.SourceTopic))
	}
	if c.Kafka.MaxMessageBytes < 512*1024 {
		errs = append(errs, fmt.Errorf("KAFKA_MAX_MESSAGE_BYTES must be at least 524288, got %d", c.Kafka.MaxMessageBytes))
	}
	if c.Relay.Workers < 1 {
		errs = append(errs, fmt.Errorf("RELAY_WORKERS must be at least 1, got %d", c.Relay.Workers))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_MAX_UPLOAD_BYTES must be positive, got %d", c.HTTP.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
