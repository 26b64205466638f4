package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

const fileURI = "https://generativelanguage.googleapis.com/v1beta/files/abc123"

func newRequest() *domain.GenerateRequest {
	return &domain.GenerateRequest{
		Prompt:            "Describe each UI element and call set_timecodes_with_objects.",
		SystemInstruction: tools.SystemInstruction,
		Tools:             tools.Declarations(),
		File:              &domain.UploadedFile{URI: fileURI, MIMEType: "video/mp4", Name: "files/abc123"},
		APIKey:            "gemini-key",
		Model:             "gemini-2.5-flash",
	}
}

func TestProvider_Generate(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{
				"content": {
					"role": "model",
					"parts": [{"functionCall": {
						"name": "set_timecodes_with_objects",
						"args": {"timecodes": [{"time": "00:03", "text": "Click Save", "objects": ["Save button"]}]}
					}}]
				},
				"finishReason": "STOP"
			}]
		}`)
	}))
	defer server.Close()

	p := New(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	result, err := p.Generate(context.Background(), newRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	call, ok := result.First()
	if !ok || call.Name != tools.SetTimecodesWithObjects {
		t.Fatalf("result = %+v", result)
	}
	if tc, ok := call.Args["timecodes"].([]any); !ok || len(tc) != 1 {
		t.Errorf("args = %#v", call.Args)
	}

	contents := body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	fileData, ok := parts[0].(map[string]any)["fileData"].(map[string]any)
	if !ok || fileData["fileUri"] != fileURI || fileData["mimeType"] != "video/mp4" {
		t.Errorf("first part = %v", parts[0])
	}
	if parts[1].(map[string]any)["text"] == "" {
		t.Errorf("second part = %v", parts[1])
	}

	decls := body["tools"].([]any)[0].(map[string]any)["functionDeclarations"].([]any)
	if len(decls) != 5 {
		t.Errorf("got %d declarations, want 5", len(decls))
	}
	if gc, ok := body["generationConfig"].(map[string]any); !ok || gc["temperature"] != 0.5 {
		t.Errorf("generationConfig = %v", body["generationConfig"])
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Error("missing systemInstruction")
	}
}

func TestProvider_Generate_NoFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"No workflow visible."}]}}]}`)
	}))
	defer server.Close()

	result, err := New(WithBaseURL(server.URL)).Generate(context.Background(), newRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := result.First(); ok {
		t.Errorf("expected no function call, got %+v", result)
	}
}

func TestProvider_Generate_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	_, err := New(WithBaseURL(server.URL)).Generate(context.Background(), newRequest())
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Provider != domain.ProviderGemini || pe.StatusCode != http.StatusBadRequest {
		t.Errorf("error = %+v", pe)
	}
	if pe.Message != "API key not valid. Please pass a valid API key." {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestProvider_Generate_RequiresRemoteFile(t *testing.T) {
	req := newRequest()
	req.File = &domain.UploadedFile{MIMEType: "video/mp4"}
	if _, err := New().Generate(context.Background(), req); !errors.Is(err, errNoRemoteFile) {
		t.Errorf("error = %v, want errNoRemoteFile", err)
	}
}

func TestProvider_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/models") {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash"}]}`)
	}))
	defer server.Close()

	list, err := New(WithBaseURL(server.URL)).ListModels(context.Background(), "gemini-key")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "gemini-2.5-flash" || list.Data[0].DisplayName != "Gemini 2.5 Flash" {
		t.Errorf("list = %+v", list)
	}
}

func TestProvider_ListModels_NoKey(t *testing.T) {
	if _, err := New().ListModels(context.Background(), ""); !errors.Is(err, domain.ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}
