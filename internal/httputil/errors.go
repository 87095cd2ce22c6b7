package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// APIError is the wire shape of every error response.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
		},
	})
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteNotFoundError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, "invalid_request_error", "not_found", message)
}

func WritePayloadTooLargeError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusRequestEntityTooLarge, "invalid_request_error", "payload_too_large", message)
}

func WriteUnsupportedFormatError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusUnsupportedMediaType, "invalid_request_error", "unsupported_format", message)
}

func WriteContentBlockedError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, 451, "content_filter_error", "content_blocked", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusServiceUnavailable, "server_error", "service_unavailable", message)
}

// WriteVerdictDenied maps a deny verdict to the right status: limit and
// format denials are client errors, everything else is a content block.
func WriteVerdictDenied(w http.ResponseWriter, requestID, reason string) {
	switch reason {
	case string(types.ErrKindPayloadTooLarge):
		WritePayloadTooLargeError(w, requestID, "input exceeds the configured size limit")
	case string(types.ErrKindUnsupportedFormat):
		WriteUnsupportedFormatError(w, requestID, "upload is not a supported image format")
	default:
		WriteContentBlockedError(w, requestID, "request blocked: "+reason)
	}
}
