package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" field of an error envelope.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeSyncInProgress      = "SYNC_IN_PROGRESS"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodePlatformError       = "PLATFORM_ERROR"
	CodeMalformedSubmission = "MALFORMED_SUBMISSION"
	CodeStorageError        = "STORAGE_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error":   e,
	}

	data, _ := json.Marshal(response)
	return data
}

// New creates an error with an explicit status and code.
func New(status int, code, message string) *Error {
	return &Error{StatusCode: status, Code: code, Message: message}
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	e := New(http.StatusBadRequest, CodeValidation, message)
	e.Details = details
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// SyncInProgress creates the 409 returned while another sync cycle runs.
func SyncInProgress() *Error {
	return New(http.StatusConflict, CodeSyncInProgress, "A sync is already running")
}

// NotConfigured creates a 503 for a sync that cannot start until the service
// is configured.
func NotConfigured(reason string) *Error {
	return New(http.StatusServiceUnavailable, CodeNotConfigured, reason)
}

// PlatformError creates a 502 for a failed call to the survey platform.
// A non-zero upstream status is reported in the details.
func PlatformError(message string, upstreamStatus int) *Error {
	e := New(http.StatusBadGateway, CodePlatformError, message)
	if upstreamStatus != 0 {
		e.Details = []FieldError{{Field: "upstream_status", Message: fmt.Sprint(upstreamStatus)}}
	}
	return e
}

// MalformedSubmission creates a 502 for a record the platform sent in an
// unexpected shape.
func MalformedSubmission(message string) *Error {
	return New(http.StatusBadGateway, CodeMalformedSubmission, message)
}

// StorageFailure creates a 500 naming the failed backend operation. The
// underlying driver error is not exposed.
func StorageFailure(backend, op string) *Error {
	return New(http.StatusInternalServerError, CodeStorageError,
		fmt.Sprintf("%s storage failed to %s", backend, op))
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return New(http.StatusInternalServerError, CodeInternal, message)
}
