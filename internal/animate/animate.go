package animate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures Animate.
type Options struct {
	PNGDir   string
	VideoDir string
	FPS      float64
}

// Result describes a written animation.
type Result struct {
	Prefix string
	Path   string
	Frames int
	Width  int
	Height int
}

// OutputName returns "{prefix}_Animation.{ext}".
func OutputName(prefix, ext string) string {
	return prefix + "_Animation." + ext
}

// Animate encodes every "{prefix}_*.png" in opts.PNGDir, in date order, into
// opts.VideoDir.
func Animate(ctx context.Context, prefix string, opts Options, enc Encoder) (*Result, error) {
	if opts.FPS <= 0 {
		opts.FPS = 1
	}
	log := zap.L().With(zap.String("component", "animate"), zap.String("map", prefix))

	paths, err := Collect(opts.PNGDir, prefix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, eris.Errorf("animate: no %s_*.png frames in %s", prefix, opts.PNGDir)
	}
	frames, err := NewFrames(paths)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.VideoDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "animate: create video dir")
	}
	out := filepath.Join(opts.VideoDir, OutputName(prefix, enc.Ext()))
	if err := enc.Encode(ctx, frames, opts.FPS, out); err != nil {
		return nil, err
	}

	log.Info("wrote animation",
		zap.String("path", out),
		zap.Int("frames", frames.Len()),
		zap.Int("width", frames.Width),
		zap.Int("height", frames.Height),
	)
	return &Result{Prefix: prefix, Path: out, Frames: frames.Len(), Width: frames.Width, Height: frames.Height}, nil
}
