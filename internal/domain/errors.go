// Package domain provides the canonical types and errors shared by the
// adapters, the router and the analysis session.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an error surfaced to the user.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates the vendor rejected the key.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypePermission indicates a permission failure.
	ErrorTypePermission ErrorType = "permission"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRateLimit indicates the vendor throttled the request.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeOverloaded indicates the vendor is overloaded.
	ErrorTypeOverloaded ErrorType = "overloaded"

	// ErrorTypeServer indicates an internal or upstream server error.
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeUpload indicates the remote file store rejected an upload.
	ErrorTypeUpload ErrorType = "upload"

	// ErrorTypeProcessing indicates remote video processing failed.
	ErrorTypeProcessing ErrorType = "processing"

	// ErrorTypeExtractionStall indicates frame sampling did not complete.
	ErrorTypeExtractionStall ErrorType = "extraction_stall"
)

var (
	// ErrNoFunctionCall is reported when the model answered without calling
	// any function. It is not fatal: nothing is cached.
	ErrNoFunctionCall = errors.New("model did not call a function")

	// ErrNoVideo is returned when an analysis runs before a video was loaded.
	ErrNoVideo = errors.New("no video loaded")

	// ErrUnknownMode is returned for a mode id outside the catalogue.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrNoAPIKey is returned when a provider is selected without a key.
	ErrNoAPIKey = errors.New("api key is required")
)

// ProviderError is returned by adapters for any non-success vendor response
// or SDK failure. Message carries the vendor's own message when it could be
// extracted, otherwise the transport status text.
type ProviderError struct {
	Provider   ProviderType `json:"provider"`
	Type       ErrorType    `json:"type"`
	StatusCode int          `json:"-"`
	Message    string       `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// HTTPStatusCode returns the status the service answers with.
func (e *ProviderError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// NewProviderError builds a ProviderError, classifying it by upstream status.
func NewProviderError(provider ProviderType, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Type:       ErrorTypeFromStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

// ErrorTypeFromStatus maps an upstream HTTP status to an ErrorType.
func ErrorTypeFromStatus(status int) ErrorType {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity,
		status == http.StatusRequestEntityTooLarge:
		return ErrorTypeInvalidRequest
	case status == http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case status == http.StatusForbidden:
		return ErrorTypePermission
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusServiceUnavailable, status == 529:
		return ErrorTypeOverloaded
	default:
		return ErrorTypeServer
	}
}

// UploadError is returned when the remote store rejects an upload.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Message
}

func (e *UploadError) Unwrap() error { return e.Err }

// ProcessingError is returned when remote processing of an uploaded file
// terminates in a failed state or does not finish in time.
type ProcessingError struct {
	FileName string
	State    string
	Message  string
}

func (e *ProcessingError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("processing of %s failed (%s): %s", e.FileName, e.State, e.Message)
	}
	return fmt.Sprintf("processing of %s failed (%s)", e.FileName, e.State)
}

// ExtractionStallError is returned when a seek never delivers a frame.
type ExtractionStallError struct {
	Index     int
	Timestamp time.Duration
	Err       error
}

func (e *ExtractionStallError) Error() string {
	return fmt.Sprintf("frame %d at %s did not complete: %v", e.Index, e.Timestamp, e.Err)
}

func (e *ExtractionStallError) Unwrap() error { return e.Err }

// Classify returns the ErrorType and HTTP status for any error produced by
// the service.
func Classify(err error) (ErrorType, int) {
	var (
		provErr  *ProviderError
		upErr    *UploadError
		procErr  *ProcessingError
		stallErr *ExtractionStallError
	)
	switch {
	case errors.As(err, &provErr):
		return provErr.Type, provErr.HTTPStatusCode()
	case errors.As(err, &upErr):
		return ErrorTypeUpload, http.StatusBadGateway
	case errors.As(err, &procErr):
		return ErrorTypeProcessing, http.StatusBadGateway
	case errors.As(err, &stallErr):
		return ErrorTypeExtractionStall, http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoVideo), errors.Is(err, ErrNoAPIKey):
		return ErrorTypeInvalidRequest, http.StatusConflict
	case errors.Is(err, ErrUnknownMode):
		return ErrorTypeNotFound, http.StatusNotFound
	}
	return ErrorTypeServer, http.StatusInternalServerError
}
