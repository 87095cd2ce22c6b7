package types

import "time"

type RequestKind string

const (
	KindText  RequestKind = "text"
	KindImage RequestKind = "image"
)

// GuardRequest is the canonical internal representation of an incoming
// generation request. It is constructed once at ingress and never mutated.
type GuardRequest struct {
	RequestID string      `json:"request_id"`
	Kind      RequestKind `json:"kind"`

	// Prompt is the user's free text. Required for text requests, optional
	// for image requests (the accompanying instruction).
	Prompt string `json:"prompt"`

	// ImageBytes and DeclaredMIME are set only for image requests.
	ImageBytes   []byte `json:"-"`
	DeclaredMIME string `json:"declared_mime,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// ParseRequestKind validates a wire-level kind string.
func ParseRequestKind(s string) (RequestKind, bool) {
	switch RequestKind(s) {
	case KindText, KindImage:
		return RequestKind(s), true
	default:
		return "", false
	}
}
