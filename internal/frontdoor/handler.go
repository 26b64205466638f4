// Package frontdoor exposes the analysis session over HTTP for the browser
// client.
package frontdoor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/credentials"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
	"github.com/tjfontaine/workflow-lens/internal/server"
)

// ModelLister lists a provider's models. *router.Router satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context, cfg domain.ProviderConfig) (*domain.ModelList, error)
}

// ConfigSource returns the current configuration. *config.Watcher
// satisfies it.
type ConfigSource interface {
	Current() *config.Config
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig struct{ Config *config.Config }

func (s StaticConfig) Current() *config.Config { return s.Config }

// Handler serves the session API.
type Handler struct {
	session *analysis.Session
	creds   *credentials.Store
	models  ModelLister
	config  ConfigSource
	logger  *slog.Logger

	mu         sync.Mutex
	uploadPath string
}

// NewHandler creates the session API handler.
func NewHandler(session *analysis.Session, creds *credentials.Store, models ModelLister, cfg ConfigSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		session: session,
		creds:   creds,
		models:  models,
		config:  cfg,
		logger:  logger,
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/modes", h.HandleListModes)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/providers/{provider}/models", h.HandleListModels)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Put("/provider", h.HandleSetProvider)
			r.Get("/credentials", h.HandleExportCredentials)
			r.Put("/credentials", h.HandleImportCredentials)
			r.Post("/video", h.HandleUploadVideo)
			r.Post("/frames", h.HandleSetFrames)
			r.Get("/modes/jsonl-context/export", h.HandleExportJSONL)
			r.Get("/modes/{mode}", h.HandleModeState)
			r.Post("/modes/{mode}/run", h.HandleRunMode)
		})
	})
}

// Close removes the stored video and wipes the credential store.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	path := h.uploadPath
	h.uploadPath = ""
	h.mu.Unlock()

	var errs []error
	if path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, h.creds.Close(ctx))
	return errors.Join(errs...)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs err against the request and writes the classified error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	h.logger.Warn("request failed",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	codec.WriteError(w, err)
}

// badRequest writes a 400 invalid_request_error.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	codec.WriteJSON(w, http.StatusBadRequest, codec.ErrorResponse{Error: codec.ErrorBody{
		Type:    domain.ErrorTypeInvalidRequest,
		Message: err.Error(),
	}})
}
