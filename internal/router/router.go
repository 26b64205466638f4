// Package router dispatches generation requests to the adapter selected by
// the active provider configuration.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/schema"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

const tracerName = "github.com/tjfontaine/workflow-lens/internal/router"

// Option configures the router.
type Option func(*Router)

// WithTracerProvider sets the tracer provider used for dispatch spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// Router selects an adapter purely by provider. Unknown providers fall back
// to Gemini. Failures are returned unchanged; there is no retry.
type Router struct {
	providers map[domain.ProviderType]domain.Provider
	tracer    trace.Tracer
	logger    *slog.Logger

	mu            sync.RWMutex
	defaultModels map[domain.ProviderType]string
}

// New creates a router over the given adapters.
func New(providers map[domain.ProviderType]domain.Provider, defaultModels map[domain.ProviderType]string, opts ...Option) *Router {
	r := &Router{
		providers:     providers,
		defaultModels: maps.Clone(defaultModels),
		tracer:        otel.Tracer(tracerName),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDefaultModels replaces the per-provider default models, for example
// after a config reload.
func (r *Router) SetDefaultModels(models map[domain.ProviderType]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModels = maps.Clone(models)
}

// Resolve returns the adapter for cfg and the provider it actually serves.
func (r *Router) Resolve(cfg domain.ProviderConfig) (domain.Provider, error) {
	provider, ok := domain.ParseProviderType(string(cfg.Provider))
	if !ok {
		provider = domain.ProviderGemini
	}
	p, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %s", provider)
	}
	return p, nil
}

// Model returns cfg.Model, or the default model of the provider cfg resolves to.
func (r *Router) Model(cfg domain.ProviderConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	provider, ok := domain.ParseProviderType(string(cfg.Provider))
	if !ok {
		provider = domain.ProviderGemini
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModels[provider]
}

// GenerateContent sends text, the tool declarations and the media handle to
// the adapter selected by cfg.Provider.
func (r *Router) GenerateContent(ctx context.Context, text string, decls []schema.Declaration, file *domain.UploadedFile, cfg domain.ProviderConfig) (*domain.GenerateResult, error) {
	p, err := r.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	model := r.Model(cfg)

	ctx, span := r.tracer.Start(ctx, "router.GenerateContent", trace.WithAttributes(
		attribute.String("provider", string(p.Name())),
		attribute.String("model", model),
	))
	defer span.End()

	start := time.Now()
	result, err := p.Generate(ctx, &domain.GenerateRequest{
		Prompt:            text,
		SystemInstruction: tools.SystemInstruction,
		Tools:             decls,
		File:              file,
		APIKey:            cfg.APIKey,
		Model:             model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("generation failed",
			slog.String("provider", string(p.Name())),
			slog.String("model", model),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("function_calls", len(result.FunctionCalls)))
	r.logger.Info("generation complete",
		slog.String("provider", string(p.Name())),
		slog.String("model", model),
		slog.Int("function_calls", len(result.FunctionCalls)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// ListModels lists the models available to cfg.APIKey at cfg's provider.
func (r *Router) ListModels(ctx context.Context, cfg domain.ProviderConfig) (*domain.ModelList, error) {
	p, err := r.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	return p.ListModels(ctx, cfg.APIKey)
}
