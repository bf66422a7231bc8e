package relay

import (
	"sync/atomic"

	"github.com/your-org/thumbrelay/internal/thumbnail"
)

// Header keys attached to every published thumbnail.
const (
	HeaderMessageID    = "message_id"
	HeaderSourceTopic  = "source_topic"
	HeaderSourceFormat = "source_format"
	HeaderContentType  = "content_type"
	HeaderWidth        = "width"
	HeaderHeight       = "height"
)

const contentTypeJPEG = "image/jpeg"

// Stats is a snapshot of the relay counters.
type Stats struct {
	Received        int64 `json:"received"`
	Published       int64 `json:"published"`
	PublishFailures int64 `json:"publish_failures"`
	DroppedTooSmall int64 `json:"dropped_too_small"`
	DroppedUnknown  int64 `json:"dropped_unrecognized_format"`
	DroppedDecode   int64 `json:"dropped_decode_failed"`
	DroppedEncode   int64 `json:"dropped_encode_failed"`
	TransportErrors int64 `json:"transport_errors"`
	PublishedBytes  int64 `json:"published_bytes"`
	ReceivedBytes   int64 `json:"received_bytes"`
}

type counters struct {
	received        atomic.Int64
	published       atomic.Int64
	publishFailures atomic.Int64
	tooSmall        atomic.Int64
	unknown         atomic.Int64
	decode          atomic.Int64
	encode          atomic.Int64
	transport       atomic.Int64
	publishedBytes  atomic.Int64
	receivedBytes   atomic.Int64
}

func (c *counters) dropped(kind thumbnail.Kind) {
	switch kind {
	case thumbnail.KindPayloadTooSmall:
		c.tooSmall.Add(1)
	case thumbnail.KindUnrecognizedFormat:
		c.unknown.Add(1)
	case thumbnail.KindDecodeFailed:
		c.decode.Add(1)
	case thumbnail.KindEncodeFailed:
		c.encode.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:        c.received.Load(),
		Published:       c.published.Load(),
		PublishFailures: c.publishFailures.Load(),
		DroppedTooSmall: c.tooSmall.Load(),
		DroppedUnknown:  c.unknown.Load(),
		DroppedDecode:   c.decode.Load(),
		DroppedEncode:   c.encode.Load(),
		TransportErrors: c.transport.Load(),
		PublishedBytes:  c.publishedBytes.Load(),
		ReceivedBytes:   c.receivedBytes.Load(),
	}
}
