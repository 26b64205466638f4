// Package cache holds analysis results per (provider, model, mode).
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// DefaultSize bounds the number of cached results.
const DefaultSize = 128

// Key identifies one cached result slot.
type Key struct {
	Provider domain.ProviderType
	Model    string
	Mode     string
}

// NewKey builds the key for mode under cfg. The API key is not part of it.
func NewKey(cfg domain.ProviderConfig, model, mode string) Key {
	return Key{Provider: cfg.Provider, Model: model, Mode: mode}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Provider, k.Model, k.Mode)
}

// ResultCache is a bounded, concurrency-safe map from Key to result. Only
// successful results are ever stored.
type ResultCache struct {
	entries *lru.Cache[Key, *domain.ModeResult]
}

// New creates a cache holding at most size results.
func New(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[Key, *domain.ModeResult](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{entries: entries}, nil
}

// Get returns the cached result for key.
func (c *ResultCache) Get(key Key) (*domain.ModeResult, bool) {
	return c.entries.Get(key)
}

// Put stores a result. Nil results are ignored.
func (c *ResultCache) Put(key Key, result *domain.ModeResult) {
	if result == nil {
		return
	}
	c.entries.Add(key, result)
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Keys returns the cached keys, oldest first.
func (c *ResultCache) Keys() []Key {
	return c.entries.Keys()
}
