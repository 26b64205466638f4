package gemini

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

type fakeFiles struct {
	mu        sync.Mutex
	uploadErr error
	states    []genai.FileState
	failMsg   string
	uploaded  string
	gets      []time.Time
	apiKey    string
	getDelay  time.Duration
}

func (f *fakeFiles) factory(ctx context.Context, apiKey string) (FileService, error) {
	f.apiKey = apiKey
	return f, nil
}

func (f *fakeFiles) Upload(ctx context.Context, r io.Reader, cfg *genai.UploadFileConfig) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, _ := io.ReadAll(r)
	f.uploaded = string(data)
	return f.file(f.states[0]), nil
}

func (f *fakeFiles) Get(ctx context.Context, name string, cfg *genai.GetFileConfig) (*genai.File, error) {
	if f.getDelay > 0 {
		select {
		case <-time.After(f.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, time.Now())
	idx := min(len(f.gets), len(f.states)-1)
	return f.file(f.states[idx]), nil
}

func (f *fakeFiles) file(state genai.FileState) *genai.File {
	file := &genai.File{
		Name:     "files/abc123",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc123",
		MIMEType: "video/mp4",
		State:    state,
	}
	if state == genai.FileStateFailed {
		file.Error = &genai.FileStatus{Message: f.failMsg}
	}
	return file
}

func TestUploader_PollsUntilActive(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{
		genai.FileStateProcessing,
		genai.FileStateProcessing,
		genai.FileStateActive,
	}}
	interval := 20 * time.Millisecond
	u := NewUploader(files.factory, WithPollInterval(interval))

	start := time.Now()
	got, err := u.Upload(context.Background(), strings.NewReader("video-bytes"), UploadRequest{
		APIKey: "k", DisplayName: "demo.mp4", MIMEType: "video/mp4",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if len(files.gets) != 2 {
		t.Errorf("polled %d times, want 2", len(files.gets))
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("returned after %s, want at least %s", elapsed, 2*interval)
	}
	if files.gets[1].Sub(files.gets[0]) < interval {
		t.Errorf("polls %s apart, want at least %s", files.gets[1].Sub(files.gets[0]), interval)
	}
	if got.URI != "https://generativelanguage.googleapis.com/v1beta/files/abc123" || got.MIMEType != "video/mp4" {
		t.Errorf("file = %+v", got)
	}
	if got.Name != "files/abc123" || !got.IsRemote() {
		t.Errorf("remote name not kept: %+v", got)
	}
	if files.uploaded != "video-bytes" || files.apiKey != "k" {
		t.Errorf("upload saw %q with key %q", files.uploaded, files.apiKey)
	}
}

func TestUploader_Failed(t *testing.T) {
	files := &fakeFiles{
		states:  []genai.FileState{genai.FileStateProcessing, genai.FileStateFailed},
		failMsg: "unsupported codec",
	}
	u := NewUploader(files.factory, WithPollInterval(time.Millisecond))

	got, err := u.Upload(context.Background(), strings.NewReader("x"), UploadRequest{APIKey: "k", MIMEType: "video/mp4"})
	if got != nil {
		t.Errorf("expected no file, got %+v", got)
	}
	var pe *domain.ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProcessingError", err)
	}
	if pe.State != "FAILED" || pe.Message != "unsupported codec" {
		t.Errorf("error = %+v", pe)
	}
}

func TestUploader_MaxWait(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing}}
	u := NewUploader(files.factory, WithPollInterval(5*time.Millisecond), WithMaxWait(30*time.Millisecond))

	_, err := u.Upload(context.Background(), strings.NewReader("x"), UploadRequest{APIKey: "k"})
	var pe *domain.ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProcessingError", err)
	}
	if !strings.Contains(pe.Message, "timed out") {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestUploader_MaxWaitIsNotOvershot(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		getDelay time.Duration
	}{
		{name: "poll interval longer than budget", interval: time.Hour},
		{name: "poll hangs past budget", interval: 5 * time.Millisecond, getDelay: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing}, getDelay: tt.getDelay}
			maxWait := 40 * time.Millisecond
			u := NewUploader(files.factory, WithPollInterval(tt.interval), WithMaxWait(maxWait))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			start := time.Now()
			_, err := u.Upload(ctx, strings.NewReader("x"), UploadRequest{APIKey: "k"})
			elapsed := time.Since(start)

			var pe *domain.ProcessingError
			if !errors.As(err, &pe) || !strings.Contains(pe.Message, "timed out") {
				t.Fatalf("error = %v, want timed out ProcessingError", err)
			}
			if elapsed > maxWait+time.Second {
				t.Errorf("returned after %s, max wait is %s", elapsed, maxWait)
			}
		})
	}
}

func TestUploader_Rejected(t *testing.T) {
	files := &fakeFiles{uploadErr: genai.APIError{Code: 400, Message: "File too large", Status: "INVALID_ARGUMENT"}}
	u := NewUploader(files.factory)

	_, err := u.Upload(context.Background(), strings.NewReader("x"), UploadRequest{APIKey: "k"})
	var ue *domain.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want UploadError", err)
	}
	if !strings.Contains(ue.Error(), "File too large") {
		t.Errorf("Error() = %q", ue.Error())
	}
}

func TestUploader_Cancelled(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing}}
	u := NewUploader(files.factory, WithPollInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := u.Upload(ctx, strings.NewReader("x"), UploadRequest{APIKey: "k"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestToProviderError(t *testing.T) {
	err := ToProviderError(genai.APIError{Code: 403, Message: "API key not valid", Status: "PERMISSION_DENIED"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v", err)
	}
	if pe.Provider != domain.ProviderGemini || pe.Type != domain.ErrorTypePermission || pe.Message != "API key not valid" {
		t.Errorf("error = %+v", pe)
	}

	if got := ToProviderError(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Errorf("context errors must pass through, got %v", got)
	}
}
