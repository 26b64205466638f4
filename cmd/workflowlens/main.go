package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/pkg/logging"
	"github.com/tjfontaine/workflow-lens/internal/registration"
	"github.com/tjfontaine/workflow-lens/internal/runtime"
	"github.com/tjfontaine/workflow-lens/internal/telemetry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	boot, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(boot.Log, os.Stdout)
	slog.SetDefault(logger)

	tracing, err := telemetry.InitTracer(boot.Telemetry, os.Stdout, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	// Register built-in providers
	registration.RegisterBuiltins()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := runtime.New(ctx,
		runtime.WithFileConfig(*configPath),
		runtime.WithLogger(logger),
		runtime.WithTracerProvider(tracing.Provider),
	)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	serveErr := app.Serve(ctx)

	logger.Info("shutting down, ending session")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Close(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	if serveErr != nil {
		logger.Error("server failed", slog.String("error", serveErr.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
