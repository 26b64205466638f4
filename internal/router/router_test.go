package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

type stubProvider struct {
	name domain.ProviderType
	err  error

	mu    sync.Mutex
	calls []*domain.GenerateRequest
}

func (s *stubProvider) Name() domain.ProviderType { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req *domain.GenerateRequest) (*domain.GenerateResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &domain.GenerateResult{FunctionCalls: []domain.FunctionCall{{Name: tools.SetTimecodes}}}, nil
}

func (s *stubProvider) ListModels(ctx context.Context, apiKey string) (*domain.ModelList, error) {
	return &domain.ModelList{Object: "list", Data: []domain.Model{{ID: string(s.name) + "-model"}}}, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newRouter(opts ...Option) (*Router, map[domain.ProviderType]*stubProvider) {
	stubs := map[domain.ProviderType]*stubProvider{}
	providers := map[domain.ProviderType]domain.Provider{}
	for _, p := range domain.ProviderTypes {
		stubs[p] = &stubProvider{name: p}
		providers[p] = stubs[p]
	}
	defaults := map[domain.ProviderType]string{
		domain.ProviderGemini:    "gemini-2.5-flash",
		domain.ProviderOpenAI:    "gpt-4o",
		domain.ProviderAnthropic: "claude-sonnet-4-5",
	}
	return New(providers, defaults, opts...), stubs
}

func TestGenerateContent_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.ProviderType
		want     domain.ProviderType
	}{
		{"openai", domain.ProviderOpenAI, domain.ProviderOpenAI},
		{"anthropic", domain.ProviderAnthropic, domain.ProviderAnthropic},
		{"gemini", domain.ProviderGemini, domain.ProviderGemini},
		{"unknown falls back to gemini", "mistral", domain.ProviderGemini},
		{"empty falls back to gemini", "", domain.ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, stubs := newRouter()
			cfg := domain.ProviderConfig{Provider: tt.provider, APIKey: "k"}

			if _, err := r.GenerateContent(context.Background(), "prompt", tools.Declarations(), &domain.UploadedFile{}, cfg); err != nil {
				t.Fatalf("GenerateContent() error = %v", err)
			}
			for p, stub := range stubs {
				want := 0
				if p == tt.want {
					want = 1
				}
				if got := stub.callCount(); got != want {
					t.Errorf("%s called %d times, want %d", p, got, want)
				}
			}
		})
	}
}

func TestGenerateContent_Request(t *testing.T) {
	r, stubs := newRouter()
	file := &domain.UploadedFile{URI: "blob:local/1"}

	_, err := r.GenerateContent(context.Background(), "prompt", tools.Declarations(), file,
		domain.ProviderConfig{Provider: domain.ProviderOpenAI, APIKey: "k"})
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	req := stubs[domain.ProviderOpenAI].calls[0]
	if req.Model != "gpt-4o" {
		t.Errorf("Model = %s, want default gpt-4o", req.Model)
	}
	if req.APIKey != "k" || req.File != file || req.Prompt != "prompt" {
		t.Errorf("request = %+v", req)
	}
	if req.SystemInstruction != tools.SystemInstruction {
		t.Error("system instruction not set")
	}
	if len(req.Tools) != 5 {
		t.Errorf("tools = %d", len(req.Tools))
	}

	r.SetDefaultModels(map[domain.ProviderType]string{domain.ProviderOpenAI: "gpt-4.1"})
	if got := r.Model(domain.ProviderConfig{Provider: domain.ProviderOpenAI}); got != "gpt-4.1" {
		t.Errorf("Model() after reload = %s", got)
	}
	if got := r.Model(domain.ProviderConfig{Provider: domain.ProviderOpenAI, Model: "o3"}); got != "o3" {
		t.Errorf("Model() with override = %s", got)
	}
}

func TestGenerateContent_ErrorPropagates(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	r, stubs := newRouter(WithTracerProvider(tp))
	want := domain.NewProviderError(domain.ProviderAnthropic, 529, "Overloaded")
	stubs[domain.ProviderAnthropic].err = want

	_, err := r.GenerateContent(context.Background(), "prompt", nil, nil,
		domain.ProviderConfig{Provider: domain.ProviderAnthropic, APIKey: "k"})
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want the adapter's error unchanged", err)
	}
	for p, stub := range stubs {
		if p != domain.ProviderAnthropic && stub.callCount() != 0 {
			t.Errorf("%s was called after a failure", p)
		}
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "router.GenerateContent" {
		t.Fatalf("spans = %+v", spans)
	}
	if len(spans[0].Events) == 0 {
		t.Error("error not recorded on span")
	}
}

func TestListModels(t *testing.T) {
	r, _ := newRouter()
	list, err := r.ListModels(context.Background(), domain.ProviderConfig{Provider: domain.ProviderAnthropic})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if list.Data[0].ID != "anthropic-model" {
		t.Errorf("list = %+v", list)
	}
}
