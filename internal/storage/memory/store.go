package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu          sync.RWMutex
	credentials map[domain.ProviderType]*storage.Credential
	runs        []*storage.Run
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		credentials: make(map[domain.ProviderType]*storage.Credential),
	}
}

func (s *Store) GetCredential(ctx context.Context, provider domain.ProviderType) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.credentials[provider]
	if !exists {
		return nil, fmt.Errorf("credential for %s: %w", provider, storage.ErrNotFound)
	}

	c := *cred
	return &c, nil
}

func (s *Store) PutCredential(ctx context.Context, cred *storage.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cred
	c.UpdatedAt = time.Now()
	s.credentials[cred.Provider] = &c
	return nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		c := *cred
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

func (s *Store) DeleteCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials = make(map[domain.ProviderType]*storage.Credential)
	return nil
}

func (s *Store) RecordRun(ctx context.Context, run *storage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	r := *run
	s.runs = append(s.runs, &r)
	return nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, opts storage.RunListOptions) ([]*storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Run
	for i := len(s.runs) - 1; i >= 0; i-- {
		if opts.Mode != "" && s.runs[i].Mode != opts.Mode {
			continue
		}
		r := *s.runs[i]
		out = append(out, &r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
