package thumbnail

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind string

const (
	KindPayloadTooSmall    Kind = "payload_too_small"
	KindUnrecognizedFormat Kind = "unrecognized_format"
	KindDecodeFailed       Kind = "decode_failed"
	KindEncodeFailed       Kind = "encode_failed"
)

// Error is returned for every failure of the conversion pipeline. All kinds
// terminate processing of the current payload only.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Signature string
	Cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
	if e.Signature != "" {
		msg += " (" + e.Signature + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// IsKind reports whether err carries a conversion *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of a conversion error, or "" for other errors.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}
