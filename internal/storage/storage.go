// Package storage defines the session database: remembered provider
// credentials and the journal of analysis runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Credential is the last key and model used with a provider.
type Credential struct {
	Provider  domain.ProviderType `json:"-"`
	APIKey    string              `json:"apiKey"`
	Model     string              `json:"model"`
	UpdatedAt time.Time           `json:"-"`
}

// RunStatus is how an analysis run settled.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunNoCall  RunStatus = "no_call"
	RunFailed  RunStatus = "failed"
)

// Run is one journal entry.
type Run struct {
	ID          string              `json:"id"`
	Provider    domain.ProviderType `json:"provider"`
	Model       string              `json:"model"`
	Mode        string              `json:"mode"`
	Status      RunStatus           `json:"status"`
	Error       string              `json:"error,omitempty"`
	Frames      int                 `json:"frames"`
	InputTokens int                 `json:"inputTokens,omitempty"`
	Stale       bool                `json:"stale,omitempty"`
	Duration    time.Duration       `json:"duration"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// RunListOptions filters ListRuns.
type RunListOptions struct {
	Mode  string
	Limit int
}

// CredentialStore persists one credential per provider.
type CredentialStore interface {
	GetCredential(ctx context.Context, provider domain.ProviderType) (*Credential, error)
	PutCredential(ctx context.Context, cred *Credential) error
	ListCredentials(ctx context.Context) ([]*Credential, error)
	DeleteCredentials(ctx context.Context) error
}

// RunStore records analysis runs.
type RunStore interface {
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, opts RunListOptions) ([]*Run, error)
}

// Store is the full session database.
type Store interface {
	CredentialStore
	RunStore
	Close() error
}
