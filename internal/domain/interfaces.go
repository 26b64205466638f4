package domain

import (
	"context"

	"github.com/tjfontaine/workflow-lens/internal/schema"
)

// GenerateRequest is the single internal call contract satisfied by every
// provider adapter.
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
	Tools             []schema.Declaration
	File              *UploadedFile
	APIKey            string
	Model             string
}

// Provider is implemented by every vendor adapter.
type Provider interface {
	Name() ProviderType

	// Generate sends one prompt with the canonical tools and the media payload
	// and returns the function call the model decided to make, if any.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// ListModels returns the models available to the given key.
	ListModels(ctx context.Context, apiKey string) (*ModelList, error)
}
