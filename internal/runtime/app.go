// Package runtime assembles the service: configuration, the session
// database, provider adapters, the dispatch router, the analysis session and
// the HTTP surface.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/api/gemini"
	"github.com/tjfontaine/workflow-lens/internal/credentials"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/frames"
	"github.com/tjfontaine/workflow-lens/internal/frontdoor"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/pkg/safehttp"
	"github.com/tjfontaine/workflow-lens/internal/provider"
	"github.com/tjfontaine/workflow-lens/internal/router"
	"github.com/tjfontaine/workflow-lens/internal/server"
	"github.com/tjfontaine/workflow-lens/internal/storage"
	"github.com/tjfontaine/workflow-lens/internal/storage/sqlite"
	"github.com/tjfontaine/workflow-lens/internal/tokens"
)

// App owns every long-lived component of one service process.
type App struct {
	// Options
	configPath   string
	staticConfig *config.Config
	store        storage.Store
	logger       *slog.Logger
	tracer       trace.TracerProvider
	httpClient   *http.Client
	geminiFiles  gemini.FileServiceFactory
	sources      analysis.SourceFactory

	// Assembled components
	watcher *config.Watcher
	config  frontdoor.ConfigSource
	creds   *credentials.Store
	router  *router.Router
	session *analysis.Session
	handler *frontdoor.Handler

	closeOnce sync.Once
}

// New assembles an App. Provider factories must already be registered.
func New(ctx context.Context, opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if a.tracer == nil {
		a.tracer = otel.GetTracerProvider()
	}

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	if a.store == nil {
		store, err := sqlite.New(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		a.store = store
	}
	if a.httpClient == nil {
		a.httpClient = safehttp.NewClient(cfg.HTTP.Timeout, cfg.HTTP.BlockPrivateNetworks)
	}

	providers, err := provider.Build(cfg, provider.Options{HTTPClient: a.httpClient, Logger: a.logger})
	if err != nil {
		a.store.Close()
		return nil, err
	}
	a.router = router.New(providers, cfg.DefaultModels(),
		router.WithTracerProvider(a.tracer),
		router.WithLogger(a.logger))

	if a.geminiFiles == nil {
		a.geminiFiles = gemini.SDKFiles(geminiClientOptions(providers[domain.ProviderGemini], a.httpClient)...)
	}
	if a.sources == nil {
		a.sources = analysis.FFmpegSources(cfg.Frames.FFmpegPath, cfg.Frames.FFprobePath)
	}

	uploader := gemini.NewUploader(a.geminiFiles,
		gemini.WithPollInterval(cfg.Gemini.PollInterval),
		gemini.WithMaxWait(cfg.Gemini.MaxWait),
		gemini.WithLogger(a.logger.With(slog.String("component", "gemini-upload"))))

	a.session, err = analysis.NewSession(a.router,
		analysis.WithUploader(uploader),
		analysis.WithSourceFactory(a.sources),
		analysis.WithRunStore(a.store),
		analysis.WithTokenCounter(tokens.NewRegistry()),
		analysis.WithLogger(a.logger.With(slog.String("component", "session"))),
		analysis.WithMaxFrames(cfg.Frames.MaxFrames),
		analysis.WithRequestFrames(cfg.Provider(domain.ProviderOpenAI).MaxFrames),
		analysis.WithFrameOptions(frames.Options{
			Width:       cfg.Frames.Width,
			Quality:     cfg.Frames.Quality,
			SeekTimeout: cfg.Frames.SeekTimeout,
		}))
	if err != nil {
		a.store.Close()
		return nil, err
	}

	a.creds = credentials.New(a.store)
	a.handler = frontdoor.NewHandler(a.session, a.creds, a.router, a.config, a.logger)

	a.logger.Info("workflow-lens assembled",
		slog.Int("providers", len(providers)),
		slog.Int("max_frames", cfg.Frames.MaxFrames),
		slog.Bool("block_private_networks", cfg.HTTP.BlockPrivateNetworks))
	return a, nil
}

func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case a.staticConfig != nil:
		a.config = frontdoor.StaticConfig{Config: a.staticConfig}
		return a.staticConfig, nil
	case a.configPath != "":
		w, err := config.NewWatcher(a.configPath, a.logger)
		if err != nil {
			return nil, err
		}
		cfg, err := w.Load(ctx)
		if err != nil {
			return nil, err
		}
		a.watcher = w
		a.config = w
		return cfg, nil
	}
	return nil, fmt.Errorf("config required (use WithFileConfig or WithConfig)")
}

// geminiClientOptions points the upload pipeline at the same endpoint and
// client as the Gemini adapter.
func geminiClientOptions(p domain.Provider, client *http.Client) []gemini.ClientOption {
	if withOpts, ok := p.(interface{ ClientOptions() []gemini.ClientOption }); ok {
		return withOpts.ClientOptions()
	}
	return []gemini.ClientOption{gemini.WithHTTPClient(client)}
}

// Session returns the analysis session.
func (a *App) Session() *analysis.Session { return a.session }

// Credentials returns the session credential store.
func (a *App) Credentials() *credentials.Store { return a.creds }

// Router returns the dispatch router.
func (a *App) Router() *router.Router { return a.router }

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.config.Current() }

// Handler returns the HTTP handler set.
func (a *App) Handler() *frontdoor.Handler { return a.handler }

// Serve runs the HTTP server until ctx is cancelled. Config file changes
// update the per-provider default models while serving.
func (a *App) Serve(ctx context.Context) error {
	if a.watcher != nil {
		err := a.watcher.Watch(ctx, func(cfg *config.Config) {
			a.router.SetDefaultModels(cfg.DefaultModels())
			a.logger.Info("default models reloaded")
		})
		if err != nil {
			a.logger.Warn("config watch failed", slog.String("error", err.Error()))
		}
	}

	cfg := a.Config()
	srv := server.New(cfg.Server, a.logger)
	a.handler.Routes(srv.Router)
	return srv.Start(ctx)
}

// Close ends the session: the stored video is removed, the credential store
// is wiped and the database is closed.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		errs = append(errs, a.handler.Close(ctx))
		errs = append(errs, a.store.Close())
		if a.watcher != nil {
			errs = append(errs, a.watcher.Close())
		}
	})
	return errors.Join(errs...)
}
