// Package registration wires the built-in provider adapters explicitly, so
// that no package relies on init() side effects.
package registration

import (
	"github.com/tjfontaine/workflow-lens/internal/provider/anthropic"
	"github.com/tjfontaine/workflow-lens/internal/provider/gemini"
	"github.com/tjfontaine/workflow-lens/internal/provider/openai"
)

// RegisterBuiltins registers the built-in providers. It is intended to be
// called from cmd/* and tests before building providers.
func RegisterBuiltins() {
	gemini.RegisterProviderFactory()
	openai.RegisterProviderFactory()
	anthropic.RegisterProviderFactory()
}
