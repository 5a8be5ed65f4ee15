// Package animate stitches the per-date map images of one map family into
// an animation.
package animate

import (
	"image"
	"image/draw"
	_ "image/png" // register decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Frames is an ordered image sequence cropped to a common size.
type Frames struct {
	Paths  []string
	Width  int
	Height int
}

// Collect returns the "{prefix}_*.png" files in dir in file name order. With
// fixed-width date stamps that order is chronological.
func Collect(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "animate: read dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"_") || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// NewFrames reads the dimensions of every image and settles on the smallest
// width and height among them.
func NewFrames(paths []string) (*Frames, error) {
	if len(paths) == 0 {
		return nil, eris.New("animate: no frames")
	}
	f := &Frames{Paths: paths}
	for i, p := range paths {
		w, h, err := imageSize(p)
		if err != nil {
			return nil, err
		}
		if i == 0 || w < f.Width {
			f.Width = w
		}
		if i == 0 || h < f.Height {
			f.Height = h
		}
	}
	return f, nil
}

func imageSize(path string) (int, int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "animate: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	cfg, _, err := image.DecodeConfig(fh)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "animate: decode header %s", path)
	}
	return cfg.Width, cfg.Height, nil
}

// Len returns the number of frames.
func (f *Frames) Len() int { return len(f.Paths) }

// Load decodes frame i and crops it about its centre to the common size.
func (f *Frames) Load(i int) (*image.RGBA, error) {
	path := f.Paths[i]
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "animate: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, eris.Wrapf(err, "animate: decode %s", path)
	}
	return CenterCrop(img, f.Width, f.Height), nil
}

// CenterCrop returns the w×h region at the centre of img. Odd leftovers go
// to the right and bottom edges.
func CenterCrop(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	w = min(w, b.Dx())
	h = min(h, b.Dy())
	left := b.Min.X + (b.Dx()-w)/2
	top := b.Min.Y + (b.Dy()-h)/2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(left, top), draw.Src)
	return dst
}
