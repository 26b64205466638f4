package gemini

import (
	"log/slog"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/provider/registry"
)

// RegisterProviderFactory registers the Gemini factory once.
func RegisterProviderFactory() {
	if registry.IsRegistered(domain.ProviderGemini) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:        domain.ProviderGemini,
		Description: "Google Gemini API with native video input",
		Create:      CreateFromConfig,
	})
}

// CreateFromConfig creates a new Gemini provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig, opts registry.Options) (domain.Provider, error) {
	providerOpts := []ProviderOption{
		WithLogger(opts.Logger.With(slog.String("provider", string(domain.ProviderGemini)))),
	}
	if cfg.BaseURL != "" {
		providerOpts = append(providerOpts, WithBaseURL(cfg.BaseURL))
	}
	if opts.HTTPClient != nil {
		providerOpts = append(providerOpts, WithHTTPClient(opts.HTTPClient))
	}
	return New(providerOpts...), nil
}
