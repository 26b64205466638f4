package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"google.golang.org/genai"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 10 * time.Minute
)

// FileService is the subset of the genai file store used by the uploader.
// *genai.Files satisfies it.
type FileService interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

// FileServiceFactory returns a file service authenticated with apiKey.
type FileServiceFactory func(ctx context.Context, apiKey string) (FileService, error)

// SDKFiles returns a FileServiceFactory backed by the genai SDK.
func SDKFiles(opts ...ClientOption) FileServiceFactory {
	return func(ctx context.Context, apiKey string) (FileService, error) {
		client, err := NewClient(ctx, apiKey, opts...)
		if err != nil {
			return nil, err
		}
		return client.Files, nil
	}
}

// UploadRequest describes one video upload.
type UploadRequest struct {
	APIKey      string
	DisplayName string
	MIMEType    string
	Size        int64
}

// Uploader sends whole videos to the Gemini file store and waits until
// they are ready for inference.
type Uploader struct {
	files        FileServiceFactory
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// UploaderOption configures the uploader.
type UploaderOption func(*Uploader)

// WithPollInterval sets the delay between processing-state polls.
func WithPollInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.pollInterval = d
	}
}

// WithMaxWait bounds the total time spent waiting for processing.
func WithMaxWait(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.maxWait = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader creates an uploader.
func NewUploader(files FileServiceFactory, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		files:        files,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the video and polls its processing state every poll interval
// until it leaves PROCESSING. A rejected upload fails with
// domain.UploadError; a FAILED state or exceeding the maximum wait fails with
// domain.ProcessingError.
func (u *Uploader) Upload(ctx context.Context, r io.Reader, req UploadRequest) (*domain.UploadedFile, error) {
	svc, err := u.files(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	u.logger.Info("uploading video to gemini",
		slog.String("display_name", req.DisplayName),
		slog.String("mime_type", req.MIMEType),
		slog.String("size", humanize.Bytes(uint64(max(req.Size, 0)))))

	file, err := svc.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    req.MIMEType,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.UploadError{Message: ToProviderError(err).Error(), Err: err}
	}

	// maxWait bounds the processing wait: sleeps are capped at the time
	// left and each poll runs under the same deadline.
	deadline := time.Now().Add(u.maxWait)
	polls := 0
	for file.State == genai.FileStateProcessing {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, u.timedOut(file)
		}

		timer := time.NewTimer(min(u.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if !time.Now().Before(deadline) {
			return nil, u.timedOut(file)
		}

		polls++
		name := file.Name
		pollCtx, cancel := context.WithDeadline(ctx, deadline)
		next, err := svc.Get(pollCtx, name, nil)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, u.timedOut(file)
			}
			return nil, fmt.Errorf("poll %s: %w", name, ToProviderError(err))
		}
		file = next
		u.logger.Debug("gemini file state",
			slog.String("name", file.Name),
			slog.String("state", string(file.State)),
			slog.Int("poll", polls))
	}

	if file.State == genai.FileStateFailed {
		msg := ""
		if file.Error != nil {
			msg = file.Error.Message
		}
		return nil, &domain.ProcessingError{FileName: file.Name, State: string(file.State), Message: msg}
	}

	u.logger.Info("gemini file ready",
		slog.String("name", file.Name),
		slog.Int("polls", polls),
		slog.Duration("elapsed", time.Since(start)))

	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = req.MIMEType
	}
	return &domain.UploadedFile{URI: file.URI, MIMEType: mimeType, Name: file.Name}, nil
}

func (u *Uploader) timedOut(file *genai.File) error {
	return &domain.ProcessingError{
		FileName: file.Name,
		State:    string(file.State),
		Message:  fmt.Sprintf("timed out after %s", u.maxWait),
	}
}
