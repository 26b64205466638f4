// Package credentials remembers the last API key and model used with each
// provider for the lifetime of one session.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/storage"
)

// Entry is the remembered configuration of one provider.
type Entry struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// Store is the session credential store. It starts empty and Close wipes
// it; keys only ever leave it as the apiKey of their own provider's request.
type Store struct {
	backend storage.CredentialStore
}

// New wraps a storage backend.
func New(backend storage.CredentialStore) *Store {
	return &Store{backend: backend}
}

// Get returns the entry for provider. ok is false when nothing is stored.
func (s *Store) Get(ctx context.Context, provider domain.ProviderType) (Entry, bool, error) {
	cred, err := s.backend.GetCredential(ctx, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{APIKey: cred.APIKey, Model: cred.Model}, true, nil
}

// Put stores the entry for provider.
func (s *Store) Put(ctx context.Context, provider domain.ProviderType, e Entry) error {
	return s.backend.PutCredential(ctx, &storage.Credential{
		Provider: provider,
		APIKey:   e.APIKey,
		Model:    e.Model,
	})
}

// Resolve fills an empty key or model of cfg from the stored entry.
func (s *Store) Resolve(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	if cfg.APIKey != "" && cfg.Model != "" {
		return cfg, nil
	}
	e, ok, err := s.Get(ctx, cfg.Provider)
	if err != nil || !ok {
		return cfg, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = e.APIKey
	}
	if cfg.Model == "" {
		cfg.Model = e.Model
	}
	return cfg, nil
}

// Export returns the store as a JSON object keyed by provider.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	creds, err := s.backend.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ProviderType]Entry, len(creds))
	for _, c := range creds {
		out[c.Provider] = Entry{APIKey: c.APIKey, Model: c.Model}
	}
	return json.Marshal(out)
}

// Import merges a JSON object produced by Export into the store. Unknown
// providers are rejected before anything is written.
func (s *Store) Import(ctx context.Context, data []byte) error {
	var in map[string]Entry
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("invalid credentials document: %w", err)
	}

	entries := make(map[domain.ProviderType]Entry, len(in))
	for name, e := range in {
		p, ok := domain.ParseProviderType(name)
		if !ok {
			return fmt.Errorf("unknown provider %q", name)
		}
		entries[p] = e
	}
	for p, e := range entries {
		if err := s.Put(ctx, p, e); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.DeleteCredentials(ctx)
}

// Close ends the session: every entry is removed.
func (s *Store) Close(ctx context.Context) error {
	return s.Clear(ctx)
}
