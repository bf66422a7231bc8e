package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/thumbrelay/internal/thumbnail"
	"github.com/your-org/thumbrelay/pkg/kafka"
	"github.com/your-org/thumbrelay/pkg/tracing"
)

// Source delivers raw thumbnails from the source topic.
type Source interface {
	Fetch(ctx context.Context) (kafka.Delivery, error)
	Commit(ctx context.Context, deliveries ...kafka.Delivery) error
	Close() error
}

// Publisher writes converted thumbnails to the destination topic.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// Service wires together the transport, the conversion pipeline and logging.
type Service struct {
	source       Source
	publisher    Publisher
	spec         thumbnail.Spec
	workers      int
	retryBackoff time.Duration
	logger       *zap.Logger
	stats        counters
}

type Params struct {
	Source    Source
	Publisher Publisher
	Spec      thumbnail.Spec
	// Workers of 1 handles messages strictly in order. Higher values handle
	// messages concurrently and do not preserve output order.
	Workers      int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// NewService constructs a relay Service.
func NewService(p Params) *Service {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = time.Second
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Service{
		source:       p.Source,
		publisher:    p.Publisher,
		spec:         p.Spec,
		workers:      p.Workers,
		retryBackoff: p.RetryBackoff,
		logger:       p.Logger,
	}
}

// Spec is the thumbnail spec every conversion runs with.
func (s *Service) Spec() thumbnail.Spec {
	return s.spec
}

// Stats returns a snapshot of the relay counters.
func (s *Service) Stats() Stats {
	return s.stats.snapshot()
}

// Convert runs the conversion pipeline with the service spec and logs the
// outcome. It touches no transport.
func (s *Service) Convert(payload []byte, log *zap.Logger) (*thumbnail.Result, error) {
	res, err := thumbnail.Convert(payload, s.spec)
	if err != nil {
		reportFailure(log, err)
		return nil, err
	}
	log.Info("converted thumbnail",
		zap.String("source_format", res.SourceFormat.String()),
		zap.String("original_size", fmt.Sprintf("%dx%d", res.SourceWidth, res.SourceHeight)),
		zap.String("resized_to", fmt.Sprintf("%dx%d", res.Width, res.Height)),
		zap.Int("source_bytes", res.SourceBytes),
		zap.Int("jpeg_bytes", len(res.Data)),
		zap.String("reduction", fmt.Sprintf("%.1f%%", res.Reduction())),
	)
	return res, nil
}

// outbound is a converted thumbnail ready to publish. It is built once per
// delivery, so every publish attempt sends the same bytes and message_id.
type outbound struct {
	res     *thumbnail.Result
	headers map[string]string
	log     *zap.Logger
}

// Handle converts one delivery and publishes the result once. Conversion
// errors are returned as *thumbnail.Error; anything else is a publish failure.
func (s *Service) Handle(ctx context.Context, d kafka.Delivery) (*thumbnail.Result, error) {
	ctx, span := s.startSpan(ctx, d)
	defer span.End()

	out, err := s.prepare(ctx, span, d)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, span, d, out); err != nil {
		span.SetStatus(codes.Error, "publish failed")
		return out.res, err
	}
	return out.res, nil
}

func (s *Service) startSpan(ctx context.Context, d kafka.Delivery) (context.Context, trace.Span) {
	ctx = tracing.Extract(ctx, d.Headers)
	return tracing.Tracer().Start(ctx, "thumbrelay.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.source.name", d.Topic),
			attribute.Int("messaging.kafka.partition", d.Partition),
			attribute.Int64("messaging.kafka.offset", d.Offset),
			attribute.Int("thumbnail.source_bytes", len(d.Value)),
		))
}

// prepare converts d and builds the outbound headers. Only conversion errors
// are returned.
func (s *Service) prepare(ctx context.Context, span trace.Span, d kafka.Delivery) (*outbound, error) {
	log := s.logger.With(
		zap.String("topic", d.Topic),
		zap.Int("partition", d.Partition),
		zap.Int64("offset", d.Offset),
	)
	log.Info("received thumbnail", zap.Int("bytes", len(d.Value)))

	res, err := s.Convert(d.Value, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(thumbnail.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("thumbnail.source_format", res.SourceFormat.String()),
		attribute.Int("thumbnail.width", res.Width),
		attribute.Int("thumbnail.height", res.Height),
		attribute.Int("thumbnail.jpeg_bytes", len(res.Data)),
	)

	headers := map[string]string{
		HeaderMessageID:    uuid.NewString(),
		HeaderSourceTopic:  d.Topic,
		HeaderSourceFormat: res.SourceFormat.String(),
		HeaderContentType:  contentTypeJPEG,
		HeaderWidth:        strconv.Itoa(res.Width),
		HeaderHeight:       strconv.Itoa(res.Height),
	}
	tracing.Inject(ctx, headers)

	return &outbound{res: res, headers: headers, log: log.With(zap.String("message_id", headers[HeaderMessageID]))}, nil
}

func (s *Service) publish(ctx context.Context, span trace.Span, d kafka.Delivery, out *outbound) error {
	if err := s.publisher.Publish(ctx, d.Key, out.res.Data, out.headers); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish thumbnail: %w", err)
	}
	out.log.Info("published thumbnail", zap.Int("bytes", len(out.res.Data)))
	return nil
}

// Run consumes the source until ctx is cancelled. Conversion failures drop
// the message; publish failures are retried after the backoff so that every
// converted thumbnail is published at least once. An offset is committed only
// once every earlier offset of its partition has been handled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("waiting for thumbnails",
		zap.Int("workers", s.workers),
		zap.Int("thumbnail_size", s.spec.MaxDimension),
		zap.Int("jpeg_quality", s.spec.JPEGQuality),
	)

	var (
		g        errgroup.Group
		tracker  = newCommitTracker()
		commitMu sync.Mutex
	)
	g.SetLimit(s.workers)

	handle := func(d kafka.Delivery, p *pendingOffset) {
		if !s.process(ctx, d) {
			// Left uncommitted; the group redelivers it after restart.
			return
		}
		commitMu.Lock()
		defer commitMu.Unlock()
		if next, ok := tracker.complete(p); ok {
			s.commit(ctx, next)
		}
	}

	for {
		d, err := s.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				_ = g.Wait()
				return fmt.Errorf("fetch thumbnail: %w", err)
			}
			s.stats.transport.Add(1)
			s.logger.Error("transport error", zap.Error(err))
			s.pause(ctx)
			continue
		}

		s.stats.received.Add(1)
		s.stats.receivedBytes.Add(int64(len(d.Value)))
		p := tracker.track(d)

		if s.workers == 1 {
			handle(d, p)
			continue
		}
		g.Go(func() error {
			handle(d, p)
			return nil
		})
	}

	_ = g.Wait()
	s.logger.Info("relay stopped", zap.Int("uncommitted", tracker.inFlight()))
	return nil
}

// process converts d once and publishes it until it succeeds. It reports
// false when ctx ended before the thumbnail was published.
func (s *Service) process(ctx context.Context, d kafka.Delivery) bool {
	ctx, span := s.startSpan(ctx, d)
	defer span.End()

	out, err := s.prepare(ctx, span, d)
	if err != nil {
		s.stats.dropped(thumbnail.KindOf(err))
		return true
	}

	for attempt := 1; ; attempt++ {
		err := s.publish(ctx, span, d, out)
		if err == nil {
			s.stats.published.Add(1)
			s.stats.publishedBytes.Add(int64(len(out.res.Data)))
			return true
		}

		s.stats.publishFailures.Add(1)
		out.log.Error("failed to publish JPEG",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", s.retryBackoff),
			zap.Error(err),
		)
		if !s.pause(ctx) {
			span.SetStatus(codes.Error, "publish abandoned")
			return false
		}
	}
}

func (s *Service) commit(ctx context.Context, d kafka.Delivery) {
	if err := s.source.Commit(ctx, d); err != nil && ctx.Err() == nil {
		s.stats.transport.Add(1)
		s.logger.Error("commit failed",
			zap.Int("partition", d.Partition),
			zap.Int64("offset", d.Offset),
			zap.Error(err),
		)
	}
}

// pause waits for the retry backoff and reports whether ctx is still live.
func (s *Service) pause(ctx context.Context) bool {
	t := time.NewTimer(s.retryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	return errors.Join(s.publisher.Close(ctx), s.source.Close())
}

func reportFailure(log *zap.Logger, err error) {
	var convErr *thumbnail.Error
	if !errors.As(err, &convErr) {
		log.Error("failed to convert image", zap.Error(err))
		return
	}
	switch convErr.Kind {
	case thumbnail.KindPayloadTooSmall:
		log.Warn("payload too small to be a valid image", zap.Error(err))
	case thumbnail.KindUnrecognizedFormat:
		log.Warn("unknown image format", zap.String("signature", convErr.Signature))
	case thumbnail.KindDecodeFailed:
		log.Error("failed to load image", zap.Error(err))
	case thumbnail.KindEncodeFailed:
		log.Error("failed to encode JPEG", zap.Error(err))
	}
}
