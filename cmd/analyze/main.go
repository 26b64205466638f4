// Command analyze runs analysis modes over one recording from the command
// line and prints the results as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/pkg/logging"
	"github.com/tjfontaine/workflow-lens/internal/registration"
	"github.com/tjfontaine/workflow-lens/internal/runtime"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

type options struct {
	configPath string
	video      string
	provider   string
	model      string
	apiKey     string
	mode       string
	all        bool
	force      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath, "path to config.yaml")
	flag.StringVar(&opts.video, "video", "", "recording to analyze")
	flag.StringVar(&opts.provider, "provider", string(domain.ProviderGemini), "gemini, openai or anthropic")
	flag.StringVar(&opts.model, "model", "", "model override (default from config)")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key (default from config)")
	flag.StringVar(&opts.mode, "mode", "executive-summary", "analysis mode id")
	flag.BoolVar(&opts.all, "all", false, "run every mode")
	flag.BoolVar(&opts.force, "force", false, "ignore cached results")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.video == "" {
		return errors.New("--video is required")
	}
	provider, ok := domain.ParseProviderType(opts.provider)
	if !ok {
		return fmt.Errorf("unknown provider %q", opts.provider)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(config.LogConfig{Level: cfg.Log.Level, Format: "text"}, os.Stderr)

	registration.RegisterBuiltins()
	app, err := runtime.New(ctx,
		runtime.WithConfig(cfg),
		runtime.WithMemoryStore(),
		runtime.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}()

	key := opts.apiKey
	if key == "" {
		key = cfg.Provider(provider).APIKey
	}
	session := app.Session()
	session.SetProvider(domain.ProviderConfig{Provider: provider, APIKey: key, Model: opts.model})
	if err := session.LoadVideo(ctx, analysis.Video{Path: opts.video}); err != nil {
		return err
	}

	var modes []tools.Mode
	if opts.all {
		modes = tools.Modes()
	} else {
		m, err := tools.ModeByID(opts.mode)
		if err != nil {
			return err
		}
		modes = append(modes, m)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*domain.ModeResult, len(modes))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range modes {
		g.Go(func() error {
			res, err := session.Run(gctx, m.ID, opts.force)
			if err != nil {
				return fmt.Errorf("%s: %w", m.ID, err)
			}
			mu.Lock()
			results[m.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if !opts.all {
		return enc.Encode(results[opts.mode])
	}
	return enc.Encode(results)
}
