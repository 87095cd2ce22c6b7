package types

import "errors"

// ErrorKind is the stable error taxonomy surfaced to callers and recorded on
// failed tasks. Content rejections (PayloadTooLarge, UnsupportedFormat,
// UnsafeContent, Inconclusive) appear as verdict reasons; the remaining kinds
// are infrastructure failures and are never folded into a content decision.
type ErrorKind string

const (
	ErrKindPayloadTooLarge   ErrorKind = "PayloadTooLarge"
	ErrKindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	ErrKindUnsafeContent     ErrorKind = "UnsafeContent"
	ErrKindInconclusive      ErrorKind = "Inconclusive"
	ErrKindModelUnavailable  ErrorKind = "ModelUnavailable"
	ErrKindInvalidConfig     ErrorKind = "InvalidConfig"
	ErrKindTaskFailed        ErrorKind = "TaskFailed"
)

var (
	ErrPayloadTooLarge   = errors.New("payload exceeds configured limit")
	ErrUnsupportedFormat = errors.New("unsupported or undecodable input format")
	ErrModelUnavailable  = errors.New("model backend unavailable")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrTaskNotFound      = errors.New("task not found")
)

// KindOf maps an error to its taxonomy kind. Unknown errors are reported as
// TaskFailed so operational problems stay distinguishable from content
// decisions.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return ErrKindPayloadTooLarge
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrKindUnsupportedFormat
	case errors.Is(err, ErrModelUnavailable):
		return ErrKindModelUnavailable
	case errors.Is(err, ErrInvalidConfig):
		return ErrKindInvalidConfig
	default:
		return ErrKindTaskFailed
	}
}
