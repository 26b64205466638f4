// Package tokens estimates the input size of an analysis request before it
// is sent, so runs can be journaled with their approximate cost.
package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/workflow-lens/internal/schema"
)

// Request is the text side of one analysis request plus the number of
// frames attached to it.
type Request struct {
	Model  string
	System string
	Prompt string
	Tools  []schema.Declaration
	Images int
}

// Count is the result of counting a Request.
type Count struct {
	InputTokens int    `json:"input_tokens"`
	Model       string `json:"model"`
	Estimated   bool   `json:"estimated"`
}

// Counter counts tokens for the models it supports.
type Counter interface {
	CountTokens(ctx context.Context, req *Request) (*Count, error)
	SupportsModel(model string) bool
}

// Registry picks the first registered counter that supports a model and
// falls back to an estimator.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the tiktoken counter for OpenAI
// models and the default estimator as fallback.
func NewRegistry() *Registry {
	r := &Registry{
		fallback: NewEstimator(),
	}
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// SetFallback sets the fallback counter for unsupported models.
func (r *Registry) SetFallback(counter Counter) {
	r.fallback = counter
}

// CountTokens counts tokens using the appropriate counter for the model.
func (r *Registry) CountTokens(ctx context.Context, req *Request) (*Count, error) {
	if c := r.GetCounter(req.Model); c != nil {
		return c.CountTokens(ctx, req)
	}
	return nil, fmt.Errorf("no token counter available for model: %s", req.Model)
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) Counter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// Estimator approximates token counts from character counts.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64

	// ImageTokens is charged per attached frame. A 640x360 frame is
	// about 300 tokens for most vision models.
	ImageTokens int
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
		ImageTokens:   300,
	}
}

// CountTokens estimates the token count.
func (e *Estimator) CountTokens(ctx context.Context, req *Request) (*Count, error) {
	totalChars := len(req.System) + len(req.Prompt)
	for _, tool := range req.Tools {
		totalChars += len(tool.Name)
		totalChars += len(tool.Description)
		totalChars += 50 // rough estimate for schema
	}

	tokens := int(float64(totalChars)/e.CharsPerToken) + req.Images*e.ImageTokens

	return &Count{
		InputTokens: tokens,
		Model:       req.Model,
		Estimated:   true,
	}, nil
}

// SupportsModel returns true - estimator supports all models as a fallback.
func (e *Estimator) SupportsModel(model string) bool {
	return true
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{
		prefixes: prefixes,
		exact:    exact,
	}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
