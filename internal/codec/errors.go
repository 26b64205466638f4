// Package codec renders errors and media payloads for the HTTP surface.
package codec

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the classified type and the verbatim message, which
// includes the vendor's own message when one was available.
type ErrorBody struct {
	Type     domain.ErrorType `json:"type"`
	Message  string           `json:"message"`
	Provider string           `json:"provider,omitempty"`
}

// FormatError classifies err and returns the status code and body to send.
func FormatError(err error) (int, ErrorResponse) {
	errType, status := domain.Classify(err)
	body := ErrorBody{Type: errType, Message: err.Error()}
	if pe := asProviderError(err); pe != nil {
		body.Provider = string(pe.Provider)
	}
	return status, ErrorResponse{Error: body}
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	status, resp := FormatError(err)
	WriteJSON(w, status, resp)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func asProviderError(err error) *domain.ProviderError {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
