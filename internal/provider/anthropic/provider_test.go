package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropicapi "github.com/tjfontaine/workflow-lens/internal/api/anthropic"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

func sampledFile(n int) *domain.UploadedFile {
	f := &domain.UploadedFile{URI: "blob:local/video.mp4", MIMEType: "video/mp4"}
	for i := 0; i < n; i++ {
		f.Frames = append(f.Frames, fmt.Sprintf("ZnJhbWU%02d", i))
	}
	return f
}

func newRequest(file *domain.UploadedFile) *domain.GenerateRequest {
	return &domain.GenerateRequest{
		Prompt:            "Produce the workflow diagrams and call set_workflow_diagrams.",
		SystemInstruction: tools.SystemInstruction,
		Tools:             tools.Declarations(),
		File:              file,
		APIKey:            "sk-ant-test",
		Model:             "claude-sonnet-4-5",
	}
}

func TestProvider_Generate_FramesBeforeText(t *testing.T) {
	var got anthropicapi.MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-dangerous-direct-browser-access") != "true" {
			t.Error("missing direct browser access header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Here are the diagrams."},
				{"type": "tool_use", "id": "toolu_1", "name": "set_workflow_diagrams",
				 "input": {"mermaid": "flowchart TD\nA-->B", "plantuml": "@startuml\n@enduml"}}
			]
		}`)
	}))
	defer server.Close()

	p := New(WithBaseURL(server.URL))
	result, err := p.Generate(context.Background(), newRequest(sampledFile(45)))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	call, ok := result.First()
	if !ok || call.Name != tools.SetWorkflowDiagrams || call.Args["mermaid"] != "flowchart TD\nA-->B" {
		t.Fatalf("result = %+v", result)
	}

	content := got.Messages[0].Content
	if len(content) != 21 {
		t.Fatalf("got %d blocks, want 20 images + 1 text", len(content))
	}
	for i, block := range content[:20] {
		if block.Type != "image" || block.Source == nil || block.Source.Type != "base64" || block.Source.MediaType != "image/jpeg" {
			t.Fatalf("block %d = %+v", i, block)
		}
	}
	if content[20].Type != "text" || content[20].Text == "" {
		t.Errorf("last block = %+v", content[20])
	}
	if content[1].Source.Data != "ZnJhbWU02" {
		t.Errorf("second image = %s, want stride 2", content[1].Source.Data)
	}

	if got.ToolChoice == nil || got.ToolChoice.Type != "any" {
		t.Errorf("tool_choice = %+v", got.ToolChoice)
	}
	if got.MaxTokens != 8096 {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature != 0.5 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.System != tools.SystemInstruction {
		t.Errorf("system = %q", got.System)
	}
	if len(got.Tools) != 5 {
		t.Errorf("tools = %d, want 5", len(got.Tools))
	}
	schema, _ := got.Tools[0].InputSchema.(map[string]any)
	if schema["type"] != "object" {
		t.Errorf("input_schema = %v", got.Tools[0].InputSchema)
	}
}

func TestProvider_Generate_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"messages: too many images"}}`)
	}))
	defer server.Close()

	_, err := New(WithBaseURL(server.URL)).Generate(context.Background(), newRequest(sampledFile(2)))
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Provider != domain.ProviderAnthropic || pe.Message != "messages: too many images" {
		t.Errorf("error = %+v", pe)
	}
}

func TestProvider_Generate_StatusTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer server.Close()

	_, err := New(WithBaseURL(server.URL)).Generate(context.Background(), newRequest(sampledFile(2)))
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestProvider_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"data":[{"id":"claude-sonnet-4-5","type":"model","display_name":"Claude Sonnet 4.5"}],"has_more":false}`)
	}))
	defer server.Close()

	list, err := New(WithBaseURL(server.URL)).ListModels(context.Background(), "sk-ant-test")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].DisplayName != "Claude Sonnet 4.5" {
		t.Errorf("list = %+v", list)
	}
}
