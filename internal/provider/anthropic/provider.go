// Package anthropic adapts the Anthropic Messages API to domain.Provider.
// Video is sent as sampled frames in base64 image blocks.
package anthropic

import (
	"context"
	"log/slog"
	"net/http"

	anthropicapi "github.com/tjfontaine/workflow-lens/internal/api/anthropic"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/frames"
)

const (
	// DefaultMaxFrames caps the frames sent per request.
	DefaultMaxFrames = 20

	maxTokens   = 8096
	temperature = 0.5
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithMaxFrames sets how many frames are sent per request.
func WithMaxFrames(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxFrames = n
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider implements domain.Provider using our Anthropic client.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	maxFrames  int
	logger     *slog.Logger
}

// New creates a new Anthropic provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{
		maxFrames: DefaultMaxFrames,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() domain.ProviderType {
	return domain.ProviderAnthropic
}

func (p *Provider) client(apiKey string) *anthropicapi.Client {
	var clientOpts []anthropicapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(p.httpClient))
	}
	return anthropicapi.NewClient(apiKey, clientOpts...)
}

func (p *Provider) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	if req.APIKey == "" {
		return nil, domain.ErrNoAPIKey
	}

	apiReq := p.toAPIRequest(req)
	p.logger.Debug("sending message",
		slog.String("model", apiReq.Model),
		slog.Int("blocks", len(apiReq.Messages[0].Content)))

	resp, err := p.client(req.APIKey).CreateMessage(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	result := &domain.GenerateResult{}
	if block, ok := resp.FirstToolUse(); ok {
		args := block.Input
		if args == nil {
			args = map[string]any{}
		}
		result.FunctionCalls = append(result.FunctionCalls, domain.FunctionCall{
			Name: block.Name,
			Args: args,
		})
	}
	return result, nil
}

func (p *Provider) ListModels(ctx context.Context, apiKey string) (*domain.ModelList, error) {
	if apiKey == "" {
		return nil, domain.ErrNoAPIKey
	}
	resp, err := p.client(apiKey).ListModels(ctx)
	if err != nil {
		return nil, err
	}

	list := &domain.ModelList{Object: "list", Data: make([]domain.Model, 0, len(resp.Data))}
	for _, m := range resp.Data {
		list.Data = append(list.Data, domain.Model{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			OwnedBy:     "anthropic",
		})
	}
	return list, nil
}

// toAPIRequest places the image blocks before the text block.
func (p *Provider) toAPIRequest(req *domain.GenerateRequest) *anthropicapi.MessagesRequest {
	var content []anthropicapi.ContentPart
	if req.File != nil {
		for _, frame := range frames.Subsample(req.File.Frames, p.maxFrames) {
			content = append(content, anthropicapi.ContentPart{
				Type: "image",
				Source: &anthropicapi.ImageSource{
					Type:      "base64",
					MediaType: codec.DefaultFrameMediaType,
					Data:      frame,
				},
			})
		}
	}
	content = append(content, anthropicapi.ContentPart{Type: "text", Text: req.Prompt})

	tools := make([]anthropicapi.Tool, 0, len(req.Tools))
	for _, d := range req.Tools {
		tools = append(tools, anthropicapi.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Normalized(),
		})
	}

	t := float32(temperature)
	apiReq := &anthropicapi.MessagesRequest{
		Model:       req.Model,
		Messages:    []anthropicapi.Message{{Role: "user", Content: content}},
		MaxTokens:   maxTokens,
		System:      req.SystemInstruction,
		Temperature: &t,
		Tools:       tools,
	}
	if len(tools) > 0 {
		apiReq.ToolChoice = &anthropicapi.ToolChoice{Type: "any"}
	}
	return apiReq
}
