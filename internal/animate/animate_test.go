package animate

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	p := filepath.Join(dir, name)
	require.NoError(t, writePNG(p, img))
	return p
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "CovidCaseMap_20200402.png", 4, 4)
	writeFrame(t, dir, "CovidCaseMap_20200401.png", 4, 4)
	writeFrame(t, dir, "NewCovidCaseMap_20200401.png", 4, 4)
	writeFrame(t, dir, "CovidCaseMapX_20200401.png", 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CovidCaseMap_20200403.html"), nil, 0o644))

	paths, err := Collect(dir, "CovidCaseMap")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "CovidCaseMap_20200401.png", filepath.Base(paths[0]))
	assert.Equal(t, "CovidCaseMap_20200402.png", filepath.Base(paths[1]))

	_, err = Collect(filepath.Join(dir, "missing"), "CovidCaseMap")
	require.Error(t, err)
}

func TestNewFrames_MinSize(t *testing.T) {
	dir := t.TempDir()
	a := writeFrame(t, dir, "M_1.png", 10, 6)
	b := writeFrame(t, dir, "M_2.png", 8, 9)

	f, err := NewFrames([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width)
	assert.Equal(t, 6, f.Height)

	img, err := f.Load(0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	// 10 wide cropped to 8 drops one column on each side.
	assert.Equal(t, uint8(1), img.RGBAAt(0, 0).R)

	img, err = f.Load(1)
	require.NoError(t, err)
	// 9 tall cropped to 6 starts at row 1.
	assert.Equal(t, uint8(1), img.RGBAAt(0, 0).G)

	_, err = NewFrames(nil)
	require.Error(t, err)
}

func TestCenterCrop_LargerThanImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	assert.Equal(t, image.Rect(0, 0, 3, 3), CenterCrop(img, 10, 10).Bounds())
}

func TestAnimate_GIF(t *testing.T) {
	png := t.TempDir()
	video := filepath.Join(t.TempDir(), "video")
	writeFrame(t, png, "CovidDeathMap_20200401.png", 12, 10)
	writeFrame(t, png, "CovidDeathMap_20200402.png", 10, 12)
	writeFrame(t, png, "CovidDeathMap_20200403.png", 11, 11)

	res, err := Animate(context.Background(), "CovidDeathMap", Options{PNGDir: png, VideoDir: video, FPS: 2}, GIFEncoder{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(video, "CovidDeathMap_Animation.gif"), res.Path)
	assert.Equal(t, 3, res.Frames)

	fh, err := os.Open(res.Path)
	require.NoError(t, err)
	defer fh.Close() //nolint:errcheck
	anim, err := gif.DecodeAll(fh)
	require.NoError(t, err)
	require.Len(t, anim.Image, 3)
	assert.Equal(t, []int{50, 50, 50}, anim.Delay)
	for _, frame := range anim.Image {
		assert.Equal(t, 10, frame.Bounds().Dx())
		assert.Equal(t, 10, frame.Bounds().Dy())
	}
}

func TestAnimate_NoFrames(t *testing.T) {
	_, err := Animate(context.Background(), "CovidCaseMap", Options{PNGDir: t.TempDir(), VideoDir: t.TempDir()}, GIFEncoder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CovidCaseMap_*.png frames")
}

func TestFFmpegEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	png := filepath.Join(dir, "png")
	require.NoError(t, os.MkdirAll(png, 0o755))
	writeFrame(t, png, "CovidCaseMap_20200401.png", 4, 4)
	writeFrame(t, png, "CovidCaseMap_20200402.png", 4, 4)

	// The stub records its arguments and touches the output (last argument).
	stub := filepath.Join(dir, "ffmpeg")
	argsFile := filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\nfor last; do :; done\n: > \"$last\"\n"
	require.NoError(t, os.WriteFile(stub, []byte(script), 0o755))

	res, err := Animate(context.Background(), "CovidCaseMap",
		Options{PNGDir: png, VideoDir: filepath.Join(dir, "video"), FPS: 1},
		&FFmpegEncoder{Bin: stub})
	require.NoError(t, err)
	assert.Equal(t, "CovidCaseMap_Animation.mp4", filepath.Base(res.Path))
	assert.FileExists(t, res.Path)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-framerate 1")
	assert.Contains(t, string(args), "frame_%05d.png")
	assert.Contains(t, string(args), "libx264")
}

func TestFFmpegEncoder_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	writeFrame(t, dir, "M_1.png", 2, 2)
	stub := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755))

	_, err := Animate(context.Background(), "M", Options{PNGDir: dir, VideoDir: dir}, &FFmpegEncoder{Bin: stub})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewEncoder(t *testing.T) {
	enc, err := NewEncoder("gif", "")
	require.NoError(t, err)
	assert.Equal(t, "gif", enc.Ext())

	enc, err = NewEncoder("mp4", "/usr/bin/ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, "mp4", enc.Ext())

	_, err = NewEncoder("avi", "")
	require.Error(t, err)
}
