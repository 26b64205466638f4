package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/credentials"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/server"
)

const maxJSONBody = 64 << 20

type providerView struct {
	Provider domain.ProviderType `json:"provider"`
	Model    string              `json:"model,omitempty"`
	APIKey   string              `json:"apiKey,omitempty"`
	HasKey   bool                `json:"hasKey"`
}

type sessionView struct {
	Provider providerView         `json:"provider"`
	Video    *analysis.Video      `json:"video,omitempty"`
	Modes    []analysis.ModeState `json:"modes"`
}

func (h *Handler) view() sessionView {
	cfg := h.session.Provider()
	return sessionView{
		Provider: providerView{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   cfg.MaskedKey(),
			HasKey:   cfg.APIKey != "",
		},
		Video: h.session.Video(),
		Modes: h.session.States(),
	}
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, h.view())
}

// resolve fills a missing key or model from the credential store, then a
// missing key from configuration.
func (h *Handler) resolve(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	cfg, err := h.creds.Resolve(ctx, cfg)
	if err != nil {
		return cfg, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = h.config.Current().Provider(cfg.Provider).APIKey
	}
	return cfg, nil
}

type setProviderRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

func (h *Handler) HandleSetProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setProviderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	p, ok := domain.ParseProviderType(req.Provider)
	if !ok {
		h.logger.Warn("unknown provider, using gemini", slog.String("provider", req.Provider))
		p = domain.ProviderGemini
	}
	cfg := domain.ProviderConfig{
		Provider: p,
		APIKey:   strings.TrimSpace(req.APIKey),
		Model:    strings.TrimSpace(req.Model),
	}
	supplied := cfg.APIKey != "" || cfg.Model != ""

	cfg, err := h.resolve(ctx, cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if supplied {
		if err := h.creds.Put(ctx, p, credentials.Entry{APIKey: cfg.APIKey, Model: cfg.Model}); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.session.SetProvider(cfg)
	server.AddLogField(ctx, "provider", string(p))
	codec.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) HandleExportCredentials(w http.ResponseWriter, r *http.Request) {
	data, err := h.creds.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) HandleImportCredentials(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.creds.Import(r.Context(), data); err != nil {
		h.badRequest(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUploadVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := h.config.Current()

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Uploads.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			codec.WriteJSON(w, http.StatusRequestEntityTooLarge, codec.ErrorResponse{Error: codec.ErrorBody{
				Type:    domain.ErrorTypeInvalidRequest,
				Message: fmt.Sprintf("video exceeds %s", humanize.Bytes(uint64(cfg.Uploads.MaxBytes))),
			}})
			return
		}
		h.badRequest(w, r, fmt.Errorf("multipart field %q: %w", "file", err))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	if mimeType != "" && !strings.HasPrefix(mimeType, "video/") {
		h.badRequest(w, r, fmt.Errorf("unsupported media type %q", mimeType))
		return
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o700); err != nil {
		h.fail(w, r, err)
		return
	}
	dst, err := os.CreateTemp(cfg.Uploads.Dir, "workflowlens-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	size, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst.Name())
		h.fail(w, r, fmt.Errorf("store video: %w", err))
		return
	}

	err = h.session.LoadVideo(ctx, analysis.Video{
		Path:     dst.Name(),
		Name:     header.Filename,
		MIMEType: mimeType,
		Size:     size,
	})
	if err != nil {
		os.Remove(dst.Name())
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	previous := h.uploadPath
	h.uploadPath = dst.Name()
	h.mu.Unlock()
	if previous != "" {
		if err := os.Remove(previous); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to remove previous video", slog.String("path", previous), slog.String("error", err.Error()))
		}
	}

	server.AddLogField(ctx, "video", header.Filename)
	codec.WriteJSON(w, http.StatusCreated, h.session.Video())
}

type setFramesRequest struct {
	Frames []string `json:"frames"`
}

func (h *Handler) HandleSetFrames(w http.ResponseWriter, r *http.Request) {
	var req setFramesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := h.session.SetFrames(req.Frames); err != nil {
		if errors.Is(err, domain.ErrNoVideo) {
			h.fail(w, r, err)
			return
		}
		h.badRequest(w, r, err)
		return
	}
	codec.WriteJSON(w, http.StatusOK, map[string]int{"frames": len(req.Frames)})
}
