// Package registry provides provider factory registration and lookup.
//
// Each provider package exposes an explicit registration function that calls
// RegisterFactory:
//
//	func RegisterProviderFactory() {
//	    if registry.IsRegistered(domain.ProviderGemini) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Type:        domain.ProviderGemini,
//	        Description: "Google Gemini API provider",
//	        Create:      CreateFromConfig,
//	    })
//	}
//
// internal/registration wires all of them for cmd/* and tests.
package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
)

// Options carries process-wide dependencies handed to every factory.
type Options struct {
	// HTTPClient is used for every outbound vendor call. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is the provider's logger. Nil means slog.Default().
	Logger *slog.Logger
}

// ProviderFactory defines how to create a provider of a specific type.
type ProviderFactory struct {
	// Type is the provider type identifier used in configuration.
	Type domain.ProviderType

	// Description provides a human-readable description of the provider.
	Description string

	// Create instantiates a new provider from configuration.
	Create func(cfg config.ProviderConfig, opts Options) (domain.Provider, error)

	// ValidateConfig performs provider-specific configuration validation.
	// Optional: if nil, no additional validation is performed.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[domain.ProviderType]ProviderFactory)
	factoryList []ProviderFactory
)

// RegisterFactory registers a provider factory for a specific type.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}

	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
	factoryList = append(factoryList, f)
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType domain.ProviderType) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// ListFactories returns all registered provider factories sorted by type.
func ListFactories() []ProviderFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]ProviderFactory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListProviderTypes returns all registered provider type names.
func ListProviderTypes() []domain.ProviderType {
	factories := ListFactories()
	types := make([]domain.ProviderType, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// IsRegistered returns true if a provider type is registered.
func IsRegistered(providerType domain.ProviderType) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// ValidateProviderConfig validates a provider configuration using
// the registered factory's validation function.
func ValidateProviderConfig(providerType domain.ProviderType, cfg config.ProviderConfig) error {
	f, ok := GetFactory(providerType)
	if !ok {
		return fmt.Errorf("unknown provider type: %s (registered types: %v)", providerType, ListProviderTypes())
	}

	if f.ValidateConfig != nil {
		return f.ValidateConfig(cfg)
	}
	return nil
}

// CreateFromFactory creates a provider using the registered factory.
func CreateFromFactory(providerType domain.ProviderType, cfg config.ProviderConfig, opts Options) (domain.Provider, error) {
	f, ok := GetFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", providerType, ListProviderTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider type %s: %w", providerType, err)
		}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return f.Create(cfg, opts)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[domain.ProviderType]ProviderFactory)
	factoryList = nil
}
