package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpeg reads frames from a video file with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	Path        string
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg returns a Source for the video at path. Empty binary paths fall
// back to "ffmpeg" and "ffprobe" on $PATH.
func NewFFmpeg(path, ffmpegPath, ffprobePath string) (*FFmpeg, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file %q: %w", path, err)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{Path: path, FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}, nil
}

// Duration implements Source.
func (f *FFmpeg) Duration(ctx context.Context) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		f.Path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v\nOutput: %s", err, string(output))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FrameAt implements Source. The frame is piped out as PNG so that the only
// lossy step is the final JPEG encode.
func (f *FFmpeg) FrameAt(ctx context.Context, ts time.Duration) (image.Image, error) {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts.Seconds(), 'f', 3, 64),
		"-i", f.Path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %s", ts)
	}
	return png.Decode(&stdout)
}
