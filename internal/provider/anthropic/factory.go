package anthropic

import (
	"log/slog"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/provider/registry"
)

// RegisterProviderFactory registers the Anthropic factory once.
func RegisterProviderFactory() {
	if registry.IsRegistered(domain.ProviderAnthropic) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:        domain.ProviderAnthropic,
		Description: "Anthropic Messages API with sampled frames",
		Create:      CreateFromConfig,
	})
}

// CreateFromConfig creates a new Anthropic provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig, opts registry.Options) (domain.Provider, error) {
	providerOpts := []ProviderOption{
		WithMaxFrames(cfg.MaxFrames),
		WithLogger(opts.Logger.With(slog.String("provider", string(domain.ProviderAnthropic)))),
	}
	if cfg.BaseURL != "" {
		providerOpts = append(providerOpts, WithBaseURL(cfg.BaseURL))
	}
	if opts.HTTPClient != nil {
		providerOpts = append(providerOpts, WithHTTPClient(opts.HTTPClient))
	}
	return New(providerOpts...), nil
}
