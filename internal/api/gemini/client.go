// Package gemini wraps the genai SDK: client construction, the file upload
// pipeline and error translation.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// ClientOption configures the SDK client.
type ClientOption func(*genai.ClientConfig)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = strings.TrimSuffix(baseURL, "/") + "/"
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPClient = httpClient
	}
}

// NewClient creates a Gemini API client for the given key.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*genai.Client, error) {
	if apiKey == "" {
		return nil, domain.ErrNoAPIKey
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	return genai.NewClient(ctx, cc)
}

// ToProviderError converts an SDK failure into a domain.ProviderError,
// keeping the vendor message when the SDK surfaced one.
func ToProviderError(err error) error {
	if err == nil {
		return nil
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		if msg == "" {
			msg = apiErr.Status
		}
		return domain.NewProviderError(domain.ProviderGemini, apiErr.Code, msg)
	}
	return domain.NewProviderError(domain.ProviderGemini, 0, err.Error())
}
