// Package analysis runs analysis modes against the active video and
// provider, caching one result per (provider, model, mode).
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/workflow-lens/internal/api/gemini"
	"github.com/tjfontaine/workflow-lens/internal/cache"
	"github.com/tjfontaine/workflow-lens/internal/codec"
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/frames"
	"github.com/tjfontaine/workflow-lens/internal/schema"
	"github.com/tjfontaine/workflow-lens/internal/storage"
	"github.com/tjfontaine/workflow-lens/internal/tokens"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

// Generator is the dispatch surface the session needs. *router.Router
// satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, text string, decls []schema.Declaration, file *domain.UploadedFile, cfg domain.ProviderConfig) (*domain.GenerateResult, error)
	Model(cfg domain.ProviderConfig) string
}

// Uploader sends a whole video to the Gemini file store. *gemini.Uploader
// satisfies it.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, req gemini.UploadRequest) (*domain.UploadedFile, error)
}

// SourceFactory opens a seekable frame source for a video file.
type SourceFactory func(path string) (frames.Source, error)

// FFmpegSources returns a SourceFactory backed by the ffmpeg binaries.
func FFmpegSources(ffmpegPath, ffprobePath string) SourceFactory {
	return func(path string) (frames.Source, error) {
		return frames.NewFFmpeg(path, ffmpegPath, ffprobePath)
	}
}

// Video describes the active recording.
type Video struct {
	Path     string    `json:"-"`
	Name     string    `json:"name"`
	MIMEType string    `json:"mimeType"`
	Size     int64     `json:"size"`
	LoadedAt time.Time `json:"loadedAt"`
}

const (
	// DefaultMaxFrames is how many frames are sampled per video.
	DefaultMaxFrames = 30

	// DefaultRequestFrames is how many of them a frame-based adapter sends.
	DefaultRequestFrames = 20
)

// Option configures a Session.
type Option func(*Session)

// WithUploader sets the Gemini upload pipeline.
func WithUploader(u Uploader) Option {
	return func(s *Session) { s.uploader = u }
}

// WithSourceFactory sets how frame sources are opened.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Session) { s.sources = f }
}

// WithCache sets the result cache.
func WithCache(c *cache.ResultCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithRunStore sets the run journal.
func WithRunStore(r storage.RunStore) Option {
	return func(s *Session) { s.runs = r }
}

// WithTokenCounter sets the token estimator used for the journal.
func WithTokenCounter(r *tokens.Registry) Option {
	return func(s *Session) { s.tokens = r }
}

// WithLogger sets the session's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMaxFrames sets how many frames are sampled per video.
func WithMaxFrames(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFrames = n
		}
	}
}

// WithRequestFrames sets how many frames a frame-based adapter sends, for
// token estimates.
func WithRequestFrames(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.requestFrames = n
		}
	}
}

// WithFrameOptions sets frame rendering options.
func WithFrameOptions(o frames.Options) Option {
	return func(s *Session) { s.frameOpts = o }
}

type pendingRun struct {
	phase Phase
}

// Session owns the active video, the active provider configuration and the
// result cache. All methods are safe for concurrent use.
type Session struct {
	gen           Generator
	uploader      Uploader
	sources       SourceFactory
	cache         *cache.ResultCache
	runs          storage.RunStore
	tokens        *tokens.Registry
	logger        *slog.Logger
	maxFrames     int
	requestFrames int
	frameOpts     frames.Options

	flights singleflight.Group

	// mediaMu serializes uploads and frame extraction; a source supports
	// one seek at a time.
	mediaMu sync.Mutex

	mu         sync.Mutex
	cfg        domain.ProviderConfig
	video      *Video
	local      *domain.UploadedFile
	remote     *domain.UploadedFile
	generation uint64
	mediaGen   uint64
	pending    map[cache.Key]*pendingRun
}

// NewSession creates a session with no video and the Gemini provider
// selected without a key.
func NewSession(gen Generator, opts ...Option) (*Session, error) {
	s := &Session{
		gen:           gen,
		sources:       FFmpegSources("", ""),
		logger:        slog.Default(),
		maxFrames:     DefaultMaxFrames,
		requestFrames: DefaultRequestFrames,
		frameOpts:     frames.DefaultOptions(),
		cfg:           domain.ProviderConfig{Provider: domain.ProviderGemini},
		pending:       make(map[cache.Key]*pendingRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		c, err := cache.New(cache.DefaultSize)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	return s, nil
}

func effectiveProvider(p domain.ProviderType) domain.ProviderType {
	if parsed, ok := domain.ParseProviderType(string(p)); ok {
		return parsed
	}
	return domain.ProviderGemini
}

// LoadVideo makes v the active video. Every cached result and the media
// handles of the previous video are discarded.
func (s *Session) LoadVideo(ctx context.Context, v Video) error {
	if v.Path == "" {
		return fmt.Errorf("video path is required")
	}
	info, err := os.Stat(v.Path)
	if err != nil {
		return fmt.Errorf("video file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("video file %s is a directory", v.Path)
	}
	if v.Size == 0 {
		v.Size = info.Size()
	}
	if v.Name == "" {
		v.Name = filepath.Base(v.Path)
	}
	if v.MIMEType == "" {
		v.MIMEType = mime.TypeByExtension(filepath.Ext(v.Path))
	}
	if v.MIMEType == "" {
		v.MIMEType = "video/mp4"
	}
	v.LoadedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.video = &v
	s.local = &domain.UploadedFile{
		URI:      "blob:local/" + uuid.NewString(),
		MIMEType: v.MIMEType,
	}
	s.remote = nil
	s.invalidateLocked()
	s.mediaGen++

	s.logger.Info("video loaded",
		slog.String("name", v.Name),
		slog.String("mime_type", v.MIMEType),
		slog.String("size", humanize.Bytes(uint64(v.Size))))
	return nil
}

// SetProvider selects the provider configuration. A change of provider or
// model clears the cache. Entering or leaving Gemini, or changing the Gemini
// key, drops the uploaded file so the next Gemini run uploads again.
func (s *Session) SetProvider(cfg domain.ProviderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg

	oldGemini := effectiveProvider(old.Provider) == domain.ProviderGemini
	newGemini := effectiveProvider(cfg.Provider) == domain.ProviderGemini
	if oldGemini != newGemini || (newGemini && old.APIKey != cfg.APIKey) {
		if s.remote != nil {
			s.logger.Info("dropping uploaded file", slog.String("name", s.remote.Name))
		}
		s.remote = nil
		s.mediaGen++
	}

	if old.Identity() != cfg.Identity() {
		s.invalidateLocked()
		s.logger.Info("provider changed, cache cleared",
			slog.String("from", old.String()),
			slog.String("to", cfg.String()))
	}
}

// invalidateLocked clears the cache and supersedes every in-flight run.
func (s *Session) invalidateLocked() {
	s.cache.Purge()
	s.generation++
	s.pending = make(map[cache.Key]*pendingRun)
}

// Provider returns the active provider configuration.
func (s *Session) Provider() domain.ProviderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Video returns the active video, or nil.
func (s *Session) Video() *Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return nil
	}
	v := *s.video
	return &v
}

// SetFrames installs frames sampled elsewhere (for example by a browser)
// for the active video. Each frame may be a JPEG data URL or bare base64
// JPEG; adapters label every frame as JPEG, so other image types are
// rejected.
func (s *Session) SetFrames(in []string) error {
	if len(in) == 0 {
		return fmt.Errorf("no frames")
	}
	payloads := make([]string, 0, len(in))
	for i, f := range in {
		img, err := codec.ParseDataURL(f)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if img.MediaType != codec.DefaultFrameMediaType {
			return fmt.Errorf("frame %d: unsupported media type %s, frames must be %s", i, img.MediaType, codec.DefaultFrameMediaType)
		}
		payloads = append(payloads, img.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return domain.ErrNoVideo
	}
	updated := *s.local
	updated.Frames = payloads
	s.local = &updated
	return nil
}

func (s *Session) key(cfg domain.ProviderConfig, mode string) cache.Key {
	cfg.Provider = effectiveProvider(cfg.Provider)
	return cache.NewKey(cfg, s.gen.Model(cfg), mode)
}

// Run produces the result of mode for the active video and provider. A
// cached result is returned without any network call unless force is set.
// Concurrent runs of the same key share one provider call, which is not
// cancelled by any one caller's ctx; a cancelled caller stops waiting. When
// the model does not call a function Run returns (nil, nil) and nothing is
// cached.
func (s *Session) Run(ctx context.Context, modeID string, force bool) (*domain.ModeResult, error) {
	mode, err := tools.ModeByID(modeID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.video == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoVideo
	}
	cfg := s.cfg
	if cfg.APIKey == "" {
		s.mu.Unlock()
		return nil, domain.ErrNoAPIKey
	}
	gen := s.generation
	key := s.key(cfg, mode.ID)
	if !force {
		if r, ok := s.cache.Get(key); ok {
			s.mu.Unlock()
			return r, nil
		}
	}
	s.mu.Unlock()

	// The shared run belongs to every caller that joins it, so it runs to
	// completion or failure even when the caller that started it goes away.
	flight := fmt.Sprintf("%s#%d", key, gen)
	ch := s.flights.DoChan(flight, func() (any, error) {
		return s.run(context.WithoutCancel(ctx), mode, key, cfg, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("joined in-flight run", slog.String("key", key.String()))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		mr, _ := res.Val.(*domain.ModeResult)
		return mr, nil
	}
}

func (s *Session) run(ctx context.Context, mode tools.Mode, key cache.Key, cfg domain.ProviderConfig, gen uint64) (*domain.ModeResult, error) {
	start := time.Now()
	p := &pendingRun{phase: PhaseExtracting}
	if key.Provider.UsesNativeVideo() {
		p.phase = PhaseUploading
	}
	s.mu.Lock()
	if s.generation == gen {
		s.pending[key] = p
	}
	s.mu.Unlock()

	logger := s.logger.With(slog.String("mode", mode.ID), slog.String("provider", string(key.Provider)), slog.String("model", key.Model))
	logger.Info("analysis started")

	run := &storage.Run{
		ID:       uuid.NewString(),
		Provider: key.Provider,
		Model:    key.Model,
		Mode:     mode.ID,
	}

	file, err := s.prepareMedia(ctx, key.Provider, cfg, gen)
	if err == nil {
		s.setPhase(key, p, PhaseGenerating)
		run.Frames = len(file.Frames)
		run.InputTokens = s.estimateTokens(ctx, key, mode, file)

		var result *domain.GenerateResult
		result, err = s.gen.GenerateContent(ctx, mode.Prompt, tools.Declarations(), file, cfg)
		if err == nil {
			call, ok := result.First()
			if !ok {
				err = domain.ErrNoFunctionCall
			} else {
				var mr *domain.ModeResult
				mr, err = tools.Parse(call)
				if err == nil {
					stale := s.settle(key, p, gen, mr)
					run.Status, run.Stale = storage.RunSuccess, stale
					s.record(ctx, run, start)
					logger.Info("analysis complete",
						slog.String("function", mr.Function),
						slog.Bool("stale", stale),
						slog.Duration("duration", time.Since(start)))
					return mr, nil
				}
			}
		}
	}

	stale := s.settle(key, p, gen, nil)
	run.Stale = stale
	if errors.Is(err, domain.ErrNoFunctionCall) {
		run.Status = storage.RunNoCall
		s.record(ctx, run, start)
		logger.Warn("model did not call a function")
		return nil, nil
	}

	run.Status, run.Error = storage.RunFailed, err.Error()
	s.record(ctx, run, start)
	logger.Error("analysis failed", slog.String("error", err.Error()))
	return nil, err
}

// settle clears the pending marker and caches mr unless the run was
// superseded by a video or provider change. It reports whether it was.
func (s *Session) settle(key cache.Key, p *pendingRun, gen uint64, mr *domain.ModeResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[key] == p {
		delete(s.pending, key)
	}
	if s.generation != gen {
		return true
	}
	if mr != nil {
		s.cache.Put(key, mr)
	}
	return false
}

func (s *Session) setPhase(key cache.Key, p *pendingRun, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.phase = phase
}

// prepareMedia returns the media handle the provider needs: the uploaded
// Gemini file, or the local handle with sampled frames. Each is produced at
// most once per video.
func (s *Session) prepareMedia(ctx context.Context, provider domain.ProviderType, cfg domain.ProviderConfig, gen uint64) (*domain.UploadedFile, error) {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()

	s.mu.Lock()
	video, local, remote, mediaGen := s.video, s.local, s.remote, s.mediaGen
	s.mu.Unlock()
	if video == nil || local == nil {
		return nil, domain.ErrNoVideo
	}

	if provider.UsesNativeVideo() {
		if remote != nil {
			return remote, nil
		}
		uploaded, err := s.upload(ctx, video, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.mediaGen == mediaGen {
			s.remote = uploaded
		}
		s.mu.Unlock()
		return uploaded, nil
	}

	if len(local.Frames) > 0 {
		return local, nil
	}

	src, err := s.sources(video.Path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	start := time.Now()
	sampled, err := frames.Extract(ctx, src, s.maxFrames, s.frameOpts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("frames extracted",
		slog.Int("frames", len(sampled)),
		slog.Duration("duration", time.Since(start)))

	updated := *local
	updated.Frames = sampled
	s.mu.Lock()
	if s.local == local {
		s.local = &updated
	}
	s.mu.Unlock()
	return &updated, nil
}

func (s *Session) upload(ctx context.Context, video *Video, apiKey string) (*domain.UploadedFile, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("no uploader configured")
	}
	f, err := os.Open(video.Path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	return s.uploader.Upload(ctx, f, gemini.UploadRequest{
		APIKey:      apiKey,
		DisplayName: video.Name,
		MIMEType:    video.MIMEType,
		Size:        video.Size,
	})
}

func (s *Session) estimateTokens(ctx context.Context, key cache.Key, mode tools.Mode, file *domain.UploadedFile) int {
	if s.tokens == nil {
		return 0
	}
	count, err := s.tokens.CountTokens(ctx, &tokens.Request{
		Model:  key.Model,
		System: tools.SystemInstruction,
		Prompt: mode.Prompt,
		Tools:  tools.Declarations(),
		Images: min(len(file.Frames), s.requestFrames),
	})
	if err != nil {
		s.logger.Debug("token estimate failed", slog.String("error", err.Error()))
		return 0
	}
	return count.InputTokens
}

func (s *Session) record(ctx context.Context, run *storage.Run, start time.Time) {
	if s.runs == nil {
		return
	}
	run.Duration = time.Since(start)
	run.CreatedAt = time.Now()
	// The journal outlives the request that triggered the run.
	if err := s.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record run", slog.String("error", err.Error()))
	}
}

// Runs returns the journal, newest first.
func (s *Session) Runs(ctx context.Context, opts storage.RunListOptions) ([]*storage.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, opts)
}
