package animate

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Encoder writes frames as one animation file.
type Encoder interface {
	// Ext is the output file extension without the dot.
	Ext() string
	Encode(ctx context.Context, frames *Frames, fps float64, out string) error
}

// NewEncoder returns the encoder for format ("gif" or "mp4"). ffmpegPath is
// used by the mp4 encoder.
func NewEncoder(format, ffmpegPath string) (Encoder, error) {
	switch format {
	case "gif":
		return GIFEncoder{}, nil
	case "mp4":
		return &FFmpegEncoder{Bin: ffmpegPath}, nil
	default:
		return nil, eris.Errorf("animate: unknown format %q", format)
	}
}

// GIFEncoder encodes in process against the web-safe palette.
type GIFEncoder struct{}

// Ext implements Encoder.
func (GIFEncoder) Ext() string { return "gif" }

// Encode implements Encoder.
func (GIFEncoder) Encode(ctx context.Context, frames *Frames, fps float64, out string) error {
	delay := int(100/fps + 0.5)
	anim := &gif.GIF{}
	for i := 0; i < frames.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "animate: gif cancelled")
		}
		img, err := frames.Load(i)
		if err != nil {
			return err
		}
		pal := image.NewPaletted(img.Bounds(), palette.WebSafe)
		draw.FloydSteinberg.Draw(pal, img.Bounds(), img, image.Point{})
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, delay)
	}

	fh, err := os.Create(out)
	if err != nil {
		return eris.Wrapf(err, "animate: create %s", out)
	}
	if err := gif.EncodeAll(fh, anim); err != nil {
		_ = fh.Close()
		return eris.Wrapf(err, "animate: encode %s", out)
	}
	return eris.Wrap(fh.Close(), "animate: close gif")
}

// FFmpegEncoder writes the cropped frames to a scratch directory and runs
// ffmpeg over them to produce an H.264 MP4.
type FFmpegEncoder struct {
	Bin string
}

// Ext implements Encoder.
func (*FFmpegEncoder) Ext() string { return "mp4" }

// Encode implements Encoder.
func (e *FFmpegEncoder) Encode(ctx context.Context, frames *Frames, fps float64, out string) error {
	bin := e.Bin
	if bin == "" {
		bin = "ffmpeg"
	}

	scratch, err := os.MkdirTemp("", "covidmap-frames-*")
	if err != nil {
		return eris.Wrap(err, "animate: create scratch dir")
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	for i := 0; i < frames.Len(); i++ {
		img, err := frames.Load(i)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(scratch, fmt.Sprintf("frame_%05d.png", i)), img); err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y", "-loglevel", "error",
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", filepath.Join(scratch, "frame_%05d.png"),
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return eris.Wrapf(err, "animate: ffmpeg: %s", string(output))
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "animate: create %s", path)
	}
	if err := png.Encode(fh, img); err != nil {
		_ = fh.Close()
		return eris.Wrapf(err, "animate: encode %s", path)
	}
	return eris.Wrap(fh.Close(), "animate: close png")
}
