package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/api/gemini"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/storage"
	"github.com/tjfontaine/workflow-lens/internal/storage/memory"
	"github.com/tjfontaine/workflow-lens/internal/storage/sqlite"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithFileConfig loads config.yaml (plus environment overrides) from path
// and reloads it when the file changes.
func WithFileConfig(path string) Option {
	return func(a *App) error {
		a.configPath = path
		return nil
	}
}

// WithConfig uses a fixed configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		a.staticConfig = cfg
		return nil
	}
}

// WithSQLite opens the session database at dsn instead of storage.dsn.
func WithSQLite(dsn string) Option {
	return func(a *App) error {
		store, err := sqlite.New(dsn)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.store = store
		return nil
	}
}

// WithMemoryStore keeps credentials and the run journal in process memory.
func WithMemoryStore() Option {
	return func(a *App) error {
		a.store = memory.New()
		return nil
	}
}

// WithStore uses a caller-provided store.
func WithStore(store storage.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithTracerProvider sets the tracer provider used for dispatch spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) error {
		a.tracer = tp
		return nil
	}
}

// WithHTTPClient overrides the outbound client built from http.* settings.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) error {
		a.httpClient = client
		return nil
	}
}

// WithGeminiFiles overrides the file store used for Gemini uploads.
func WithGeminiFiles(files gemini.FileServiceFactory) Option {
	return func(a *App) error {
		a.geminiFiles = files
		return nil
	}
}

// WithSourceFactory overrides how frame sources are opened.
func WithSourceFactory(f analysis.SourceFactory) Option {
	return func(a *App) error {
		a.sources = f
		return nil
	}
}
