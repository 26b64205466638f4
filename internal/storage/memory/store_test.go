package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/storage"
)

func TestMemoryStore_Credentials(t *testing.T) {
	store := New()
	ctx := context.Background()

	cred := &storage.Credential{Provider: domain.ProviderAnthropic, APIKey: "sk-ant", Model: "claude-sonnet-4-5"}
	if err := store.PutCredential(ctx, cred); err != nil {
		t.Fatalf("PutCredential() error = %v", err)
	}
	cred.APIKey = "mutated"

	got, err := store.GetCredential(ctx, domain.ProviderAnthropic)
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if got.APIKey != "sk-ant" {
		t.Errorf("store shares caller memory: %+v", got)
	}

	if _, err := store.GetCredential(ctx, domain.ProviderGemini); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	store.DeleteCredentials(ctx)
	if all, _ := store.ListCredentials(ctx); len(all) != 0 {
		t.Errorf("credentials after delete = %+v", all)
	}
}

func TestMemoryStore_Runs(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		mode := "diagram"
		if id == "b" {
			mode = "workflow-steps"
		}
		if err := store.RecordRun(ctx, &storage.Run{ID: id, Mode: mode, Status: storage.RunSuccess}); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, _ := store.ListRuns(ctx, storage.RunListOptions{})
	if len(runs) != 3 || runs[0].ID != "c" {
		t.Errorf("runs = %+v", runs)
	}
	if runs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	diagrams, _ := store.ListRuns(ctx, storage.RunListOptions{Mode: "diagram", Limit: 1})
	if len(diagrams) != 1 || diagrams[0].ID != "c" {
		t.Errorf("filtered runs = %+v", diagrams)
	}
}
