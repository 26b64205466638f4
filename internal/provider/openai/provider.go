// Package openai adapts the OpenAI chat completions API to domain.Provider.
// Video is sent as sampled frames in image_url parts.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	openaiapi "github.com/tjfontaine/workflow-lens/internal/api/openai"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/frames"
)

const (
	// DefaultMaxFrames caps the frames sent per request.
	DefaultMaxFrames = 20

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

// Provider implements domain.Provider using our OpenAI client. The key
// arrives with every request, so a client is built per call.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	maxFrames  int
	logger     *slog.Logger
}

// New creates a new OpenAI provider.
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
	return domain.ProviderOpenAI
}

func (p *Provider) client(apiKey string) *openaiapi.Client {
	var clientOpts []openaiapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(p.httpClient))
	}
	return openaiapi.NewClient(apiKey, clientOpts...)
}

func (p *Provider) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	if req.APIKey == "" {
		return nil, domain.ErrNoAPIKey
	}

	apiReq := p.toAPIRequest(req)
	p.logger.Debug("sending chat completion",
		slog.String("model", apiReq.Model),
		slog.Int("tools", len(apiReq.Tools)))

	resp, err := p.client(req.APIKey).CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	return toGenerateResult(resp)
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
		list.Data = append(list.Data, domain.Model{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return list, nil
}

func (p *Provider) toAPIRequest(req *domain.GenerateRequest) *openaiapi.ChatCompletionRequest {
	var messages []openaiapi.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{
			Role:    "system",
			Content: req.SystemInstruction,
		})
	}

	parts := []openaiapi.ContentPart{{Type: "text", Text: req.Prompt}}
	if req.File != nil {
		for _, frame := range frames.Subsample(req.File.Frames, p.maxFrames) {
			parts = append(parts, openaiapi.ContentPart{
				Type: "image_url",
				ImageURL: &openaiapi.ImageURL{
					URL:    codec.DataURL(codec.DefaultFrameMediaType, frame),
					Detail: "high",
				},
			})
		}
	}
	messages = append(messages, openaiapi.ChatCompletionMessage{Role: "user", Content: parts})

	tools := make([]openaiapi.Tool, 0, len(req.Tools))
	for _, d := range req.Tools {
		tools = append(tools, openaiapi.Tool{
			Type: "function",
			Function: openaiapi.FunctionTool{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Normalized(),
			},
		})
	}

	t := float32(temperature)
	apiReq := &openaiapi.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: &t,
		Tools:       tools,
	}
	if len(tools) > 0 {
		apiReq.ToolChoice = "required"
	}
	return apiReq
}

func toGenerateResult(resp *openaiapi.ChatCompletionResponse) (*domain.GenerateResult, error) {
	result := &domain.GenerateResult{}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return result, nil
	}

	call := resp.Choices[0].Message.ToolCalls[0]
	args, err := call.Function.ParseArguments()
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderOpenAI, http.StatusBadGateway,
			fmt.Sprintf("invalid arguments for %s: %v", call.Function.Name, err))
	}
	result.FunctionCalls = append(result.FunctionCalls, domain.FunctionCall{
		Name: call.Function.Name,
		Args: args,
	})
	return result, nil
}
