package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/testutil"
)

func TestClient_CreateMessage_ToolUse(t *testing.T) {
	testutil.SkipIfRecordingWithoutKey(t, "ANTHROPIC_API_KEY")

	recorder, cleanup := testutil.NewVCRRecorder(t, "anthropic_tool_use")
	defer cleanup()

	c := NewClient(testutil.APIKey("ANTHROPIC_API_KEY"), WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	resp, err := c.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 8096,
		Messages: []Message{{
			Role:    "user",
			Content: []ContentPart{{Type: "text", Text: "Draw the workflow."}},
		}},
		Tools:      []Tool{{Name: "set_workflow_diagrams", InputSchema: map[string]any{"type": "object"}}},
		ToolChoice: &ToolChoice{Type: "any"},
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	block, ok := resp.FirstToolUse()
	if !ok {
		t.Fatalf("no tool_use block in %+v", resp.Content)
	}
	if block.Name != "set_workflow_diagrams" {
		t.Errorf("Name = %s", block.Name)
	}
	if block.Input["summary"] != "User logs in and reaches the dashboard." {
		t.Errorf("Input = %#v", block.Input)
	}
}

func TestClient_CreateMessage_Overloaded(t *testing.T) {
	testutil.SkipIfRecordingWithoutKey(t, "ANTHROPIC_API_KEY")

	recorder, cleanup := testutil.NewVCRRecorder(t, "anthropic_error")
	defer cleanup()

	c := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	_, err := c.CreateMessage(context.Background(), &MessagesRequest{Model: "claude-sonnet-4-5", MaxTokens: 10})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Message != "Overloaded" || pe.Type != domain.ErrorTypeOverloaded {
		t.Errorf("error = %+v", pe)
	}
}

func TestClient_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := map[string]string{
			"x-api-key":         "sk-ant-test",
			"anthropic-version": "2023-06-01",
			"anthropic-dangerous-direct-browser-access": "true",
		}
		for h, v := range want {
			if got := r.Header.Get(h); got != v {
				t.Errorf("%s = %q, want %q", h, got, v)
			}
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MessagesResponse{Content: []ResponseContent{{Type: "text", Text: "hi"}}})
	}))
	defer srv.Close()

	c := NewClient("sk-ant-test", WithBaseURL(srv.URL))
	resp, err := c.CreateMessage(context.Background(), &MessagesRequest{Model: "m", MaxTokens: 1})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if _, ok := resp.FirstToolUse(); ok {
		t.Error("unexpected tool_use block")
	}
}

func TestClient_ErrorFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.ListModels(context.Background())

	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Message != "Too Many Requests" || pe.Type != domain.ErrorTypeRateLimit {
		t.Errorf("error = %+v", pe)
	}
}
