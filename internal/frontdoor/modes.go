package frontdoor

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/workflow-lens/internal/analysis"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/server"
	"github.com/tjfontaine/workflow-lens/internal/storage"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

const jsonlContextMode = "jsonl-context"

func (h *Handler) HandleListModes(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, map[string]any{"modes": tools.Modes()})
}

func (h *Handler) HandleModeState(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.State(chi.URLParam(r, "mode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	codec.WriteJSON(w, http.StatusOK, st)
}

type runResponse struct {
	analysis.ModeState
	Message string `json:"message,omitempty"`
}

func (h *Handler) HandleRunMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode := chi.URLParam(r, "mode")

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.badRequest(w, r, fmt.Errorf("invalid force value %q", v))
			return
		}
		force = b
	}

	server.AddLogField(ctx, "mode", mode)
	result, err := h.session.Run(ctx, mode, force)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	st, err := h.session.State(mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := runResponse{ModeState: st}
	if result == nil {
		resp.Message = domain.ErrNoFunctionCall.Error()
	} else {
		resp.Result = result
	}
	codec.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleExportJSONL(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.State(jsonlContextMode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if st.State != analysis.StateCached || st.Result == nil || st.Result.Context == nil {
		codec.WriteJSON(w, http.StatusNotFound, codec.ErrorResponse{Error: codec.ErrorBody{
			Type:    domain.ErrorTypeNotFound,
			Message: "no JSONL context has been generated for this video",
		}})
		return
	}

	data, err := st.Result.Context.JSONL()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="workflow-context.jsonl"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	p, ok := domain.ParseProviderType(name)
	if !ok {
		h.badRequest(w, r, fmt.Errorf("unknown provider %q", name))
		return
	}

	cfg, err := h.resolve(r.Context(), domain.ProviderConfig{Provider: p})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cfg.APIKey == "" {
		h.fail(w, r, domain.ErrNoAPIKey)
		return
	}

	list, err := h.models.ListModels(r.Context(), cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	codec.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := storage.RunListOptions{Mode: r.URL.Query().Get("mode")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.badRequest(w, r, fmt.Errorf("invalid limit %q", v))
			return
		}
		opts.Limit = n
	}

	runs, err := h.session.Runs(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	codec.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
