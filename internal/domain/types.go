package domain

import (
	"fmt"
	"strings"
)

// ProviderType identifies one of the supported model vendors.
type ProviderType string

const (
	ProviderGemini    ProviderType = "gemini"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

// ProviderTypes lists the supported providers in display order.
var ProviderTypes = []ProviderType{ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// ParseProviderType normalizes a provider name. Unknown names are returned
// unchanged with ok=false; callers that route treat those as Gemini.
func ParseProviderType(s string) (ProviderType, bool) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return p, true
	}
	return p, false
}

// UsesNativeVideo reports whether the provider ingests the whole video file
// instead of sampled frames.
func (p ProviderType) UsesNativeVideo() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic:
		return false
	default:
		return true
	}
}

// ProviderConfig selects a provider, the user's key for it and an optional
// model override. It is a value: a changed field is a new identity.
type ProviderConfig struct {
	Provider ProviderType `json:"provider"`
	APIKey   string       `json:"-"`
	Model    string       `json:"model,omitempty"`
}

// Identity returns the cache identity of the configuration. The API key is
// not part of it.
func (c ProviderConfig) Identity() string {
	return string(c.Provider) + "/" + c.Model
}

// MaskedKey returns the API key with everything but the last four characters hidden.
func (c ProviderConfig) MaskedKey() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// UploadedFile is the media handle handed to provider adapters. URI is either
// a Gemini file URI or a local blob URI; Frames is populated on the first
// frame-based analysis and then reused.
type UploadedFile struct {
	URI      string   `json:"uri"`
	MIMEType string   `json:"mimeType"`
	Name     string   `json:"name,omitempty"` // remote file resource name, Gemini only
	Frames   []string `json:"-"`
}

// IsRemote reports whether the file has been uploaded to the Gemini file store.
func (f *UploadedFile) IsRemote() bool {
	return f != nil && f.Name != ""
}

// FunctionCall is the normalized "model called function Name with Args".
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// GenerateResult holds zero or one function calls.
type GenerateResult struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// First returns the first function call, if any.
func (r *GenerateResult) First() (FunctionCall, bool) {
	if r == nil || len(r.FunctionCalls) == 0 {
		return FunctionCall{}, false
	}
	return r.FunctionCalls[0], true
}

// Model describes a model offered by a provider.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	OwnedBy     string `json:"owned_by,omitempty"`
}

// ModelList is the canonical model listing response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// String implements fmt.Stringer for log output.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("%s(model=%s)", c.Provider, c.Model)
}
