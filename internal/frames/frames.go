// Package frames samples evenly spaced still images from a video for
// providers that cannot ingest video natively.
package frames

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// Source is a seekable video. Implementations only need to support one
// FrameAt call at a time.
type Source interface {
	Duration(ctx context.Context) (time.Duration, error)
	FrameAt(ctx context.Context, ts time.Duration) (image.Image, error)
}

// Options tune frame rendering.
type Options struct {
	Width       int
	Quality     int
	SeekTimeout time.Duration
}

// DefaultOptions returns 640px wide JPEGs at quality 70 with a 10s seek timeout.
func DefaultOptions() Options {
	return Options{Width: 640, Quality: 70, SeekTimeout: 10 * time.Second}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	if o.SeekTimeout <= 0 {
		o.SeekTimeout = d.SeekTimeout
	}
	return o
}

// Extract seeks to i*duration/maxFrames for every i in [0, maxFrames) and
// returns the frames as base64 JPEG payloads without a data-URL prefix.
// Seeks are strictly sequential. A seek that does not complete within
// SeekTimeout fails the whole extraction with a domain.ExtractionStallError.
func Extract(ctx context.Context, src Source, maxFrames int, opts Options) ([]string, error) {
	if maxFrames <= 0 {
		return nil, fmt.Errorf("maxFrames must be positive, got %d", maxFrames)
	}
	opts = opts.withDefaults()

	duration, err := src.Duration(ctx)
	if err != nil {
		return nil, fmt.Errorf("read duration: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("video has no duration")
	}

	var (
		canvas *image.RGBA
		buf    bytes.Buffer
		out    = make([]string, 0, maxFrames)
	)
	for i := 0; i < maxFrames; i++ {
		ts := Timestamp(duration, i, maxFrames)

		img, err := seek(ctx, src, ts, opts.SeekTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &domain.ExtractionStallError{Index: i, Timestamp: ts, Err: err}
		}

		canvas = render(canvas, img, opts.Width)

		buf.Reset()
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out, nil
}

// Timestamp returns the position of frame i of n in a video of length d.
func Timestamp(d time.Duration, i, n int) time.Duration {
	return time.Duration(int64(d) * int64(i) / int64(n))
}

type seekResult struct {
	img image.Image
	err error
}

func seek(ctx context.Context, src Source, ts, timeout time.Duration) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan seekResult, 1)
	go func() {
		img, err := src.FrameAt(ctx, ts)
		done <- seekResult{img, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.img == nil {
			return nil, errors.New("source returned no image")
		}
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// render scales img to width, preserving the aspect ratio, into canvas. The
// canvas is reused when its size already matches.
func render(canvas *image.RGBA, img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	height := 1
	if b.Dx() > 0 {
		height = max(1, (b.Dy()*width+b.Dx()/2)/b.Dx())
	}

	if canvas == nil || canvas.Bounds().Dx() != width || canvas.Bounds().Dy() != height {
		canvas = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, b, draw.Src, nil)
	return canvas
}

// Subsample picks at most n frames spread evenly over the input: with
// stride = max(1, len/n) it keeps indices divisible by stride, then
// truncates to n.
func Subsample(frames []string, n int) []string {
	if n <= 0 {
		return nil
	}
	stride := max(1, len(frames)/n)

	out := make([]string, 0, min(n, len(frames)))
	for i, f := range frames {
		if i%stride != 0 {
			continue
		}
		out = append(out, f)
		if len(out) == n {
			break
		}
	}
	return out
}
