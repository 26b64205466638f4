// Package gemini adapts the Gemini API to domain.Provider. Video is passed
// by reference to a file previously uploaded with gemini.Uploader.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	geminiapi "github.com/tjfontaine/workflow-lens/internal/api/gemini"
	"github.com/tjfontaine/workflow-lens/internal/domain"
)

const temperature = 0.5

// errNoRemoteFile is returned when Generate runs before the upload finished.
var errNoRemoteFile = errors.New("gemini requires an uploaded file")

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, geminiapi.WithBaseURL(baseURL))
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, geminiapi.WithHTTPClient(httpClient))
	}
}

// WithLogger sets the provider's logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider implements domain.Provider on top of the genai SDK.
type Provider struct {
	clientOpts []geminiapi.ClientOption
	logger     *slog.Logger
}

// New creates a new Gemini provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClientOptions returns the SDK options the provider was configured with, so
// the upload pipeline can talk to the same endpoint.
func (p *Provider) ClientOptions() []geminiapi.ClientOption {
	return append([]geminiapi.ClientOption(nil), p.clientOpts...)
}

func (p *Provider) Name() domain.ProviderType {
	return domain.ProviderGemini
}

func (p *Provider) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	if req.File == nil || req.File.URI == "" {
		return nil, errNoRemoteFile
	}
	client, err := geminiapi.NewClient(ctx, req.APIKey, p.clientOpts...)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(req.File.URI, req.File.MIMEType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, d.Gemini())
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	p.logger.Debug("generating content",
		slog.String("model", req.Model),
		slog.String("file", req.File.URI))

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, geminiapi.ToProviderError(err)
	}

	result := &domain.GenerateResult{}
	for _, fc := range resp.FunctionCalls() {
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		result.FunctionCalls = append(result.FunctionCalls, domain.FunctionCall{Name: fc.Name, Args: args})
	}
	return result, nil
}

func (p *Provider) ListModels(ctx context.Context, apiKey string) (*domain.ModelList, error) {
	client, err := geminiapi.NewClient(ctx, apiKey, p.clientOpts...)
	if err != nil {
		return nil, err
	}

	page, err := client.Models.List(ctx, nil)
	if err != nil {
		return nil, geminiapi.ToProviderError(err)
	}

	list := &domain.ModelList{Object: "list", Data: make([]domain.Model, 0, len(page.Items))}
	for _, m := range page.Items {
		list.Data = append(list.Data, domain.Model{
			ID:          strings.TrimPrefix(m.Name, "models/"),
			DisplayName: m.DisplayName,
			OwnedBy:     "google",
		})
	}
	return list, nil
}
