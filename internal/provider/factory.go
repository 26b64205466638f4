// Package provider builds the vendor adapters from configuration.
//
// # Adding a New Provider
//
// Implement domain.Provider in a package under internal/provider, expose an
// explicit registration function that calls registry.RegisterFactory and
// call it from internal/registration so we avoid init() side effects.
package provider

import (
	"fmt"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/provider/registry"
)

// Re-export types from registry for convenience
type (
	ProviderFactory = registry.ProviderFactory
	Options         = registry.Options
)

// RegisterFactory registers a provider factory (delegated to registry).
var RegisterFactory = registry.RegisterFactory

// GetFactory returns the factory for a provider type (delegated to registry).
var GetFactory = registry.GetFactory

// ListFactories returns all registered provider factories (delegated to registry).
var ListFactories = registry.ListFactories

// IsRegistered returns true if a provider type is registered (delegated to registry).
var IsRegistered = registry.IsRegistered

// ClearFactories removes all registered factories (for testing only).
var ClearFactories = registry.ClearFactories

// Build creates one adapter per registered provider type, configured from
// cfg.Providers.
func Build(cfg *config.Config, opts Options) (map[domain.ProviderType]domain.Provider, error) {
	providers := make(map[domain.ProviderType]domain.Provider)
	for _, f := range registry.ListFactories() {
		p, err := registry.CreateFromFactory(f.Type, cfg.Provider(f.Type), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", f.Type, err)
		}
		providers[f.Type] = p
	}
	return providers, nil
}
