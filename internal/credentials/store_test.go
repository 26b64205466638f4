package credentials

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/storage/memory"
	"github.com/tjfontaine/workflow-lens/internal/storage/sqlite"
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())

	if _, ok, err := s.Get(ctx, domain.ProviderOpenAI); ok || err != nil {
		t.Fatalf("Get() on empty store = %v, %v", ok, err)
	}

	if err := s.Put(ctx, domain.ProviderOpenAI, Entry{APIKey: "k", Model: "gpt-4o"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	e, ok, err := s.Get(ctx, domain.ProviderOpenAI)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if e.APIKey != "k" || e.Model != "gpt-4o" {
		t.Errorf("entry = %+v", e)
	}
}

func TestStore_Resolve(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.Put(ctx, domain.ProviderAnthropic, Entry{APIKey: "stored-key", Model: "claude-opus-4-1"})

	tests := []struct {
		name      string
		cfg       domain.ProviderConfig
		wantKey   string
		wantModel string
	}{
		{"fills both", domain.ProviderConfig{Provider: domain.ProviderAnthropic}, "stored-key", "claude-opus-4-1"},
		{"keeps explicit key", domain.ProviderConfig{Provider: domain.ProviderAnthropic, APIKey: "new"}, "new", "claude-opus-4-1"},
		{"keeps explicit model", domain.ProviderConfig{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-5"}, "stored-key", "claude-sonnet-4-5"},
		{"nothing stored", domain.ProviderConfig{Provider: domain.ProviderGemini}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.APIKey != tt.wantKey || got.Model != tt.wantModel {
				t.Errorf("Resolve() = %+v", got)
			}
		})
	}
}

func TestStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := New(memory.New())
	src.Put(ctx, domain.ProviderGemini, Entry{APIKey: "g", Model: "gemini-2.5-pro"})
	src.Put(ctx, domain.ProviderOpenAI, Entry{APIKey: "o", Model: "gpt-4o"})

	data, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var doc map[string]map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc["openai"]["apiKey"] != "o" || doc["gemini"]["model"] != "gemini-2.5-pro" {
		t.Errorf("export = %s", data)
	}

	store, err := sqlite.New("file:credentials_import?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	defer store.Close()

	dst := New(store)
	if err := dst.Import(ctx, data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	e, ok, _ := dst.Get(ctx, domain.ProviderOpenAI)
	if !ok || e.APIKey != "o" {
		t.Errorf("imported entry = %+v", e)
	}
}

func TestStore_ImportRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())

	err := s.Import(ctx, []byte(`{"openai":{"apiKey":"o"},"mistral":{"apiKey":"m"}}`))
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, ok, _ := s.Get(ctx, domain.ProviderOpenAI); ok {
		t.Error("partial import was written")
	}
	if err := s.Import(ctx, []byte(`not json`)); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestStore_CloseClears(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.Put(ctx, domain.ProviderOpenAI, Entry{APIKey: "o"})

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, domain.ProviderOpenAI); ok {
		t.Error("entry survived Close")
	}
}
