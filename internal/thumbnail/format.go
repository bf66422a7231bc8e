package thumbnail

import (
	"fmt"
	"strings"
)

// Format is the image format detected from a payload's leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
)

// minSniffLen is the number of leading bytes Classify inspects.
const minSniffLen = 4

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// Classify inspects the first four bytes of payload. Payloads shorter than
// four bytes are always FormatUnknown.
func Classify(payload []byte) Format {
	if len(payload) < minSniffLen {
		return FormatUnknown
	}
	switch {
	case payload[0] == 0x89 && payload[1] == 0x50 && payload[2] == 0x4E && payload[3] == 0x47:
		return FormatPNG
	case payload[0] == 0xFF && payload[1] == 0xD8:
		return FormatJPEG
	default:
		return FormatUnknown
	}
}

// Sniff classifies payload and reports too-small and unknown payloads as
// distinct errors.
func Sniff(payload []byte) (Format, error) {
	if len(payload) < minSniffLen {
		return FormatUnknown, newError(KindPayloadTooSmall, "sniff",
			fmt.Sprintf("payload too small to be a valid image: %d bytes", len(payload)), nil)
	}
	format := Classify(payload)
	if format == FormatUnknown {
		err := newError(KindUnrecognizedFormat, "sniff", "unknown image format", nil)
		err.Signature = Signature(payload)
		return FormatUnknown, err
	}
	return format, nil
}

// Signature renders up to the first four bytes of payload as hex, e.g. "89 50 4E 47".
func Signature(payload []byte) string {
	n := len(payload)
	if n > minSniffLen {
		n = minSniffLen
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%02X", payload[i])
	}
	return strings.Join(parts, " ")
}
