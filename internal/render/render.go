// Package render draws one choropleth page per map per timepoint and
// captures it as an image.
package render

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/classify"
	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/geodoc"
)

// Options configures a Renderer.
type Options struct {
	HTMLDir string
	PNGDir  string
	// Key is the feature property holding the county identifier.
	Key  string
	View MapView
	// SkipScreenshot writes only the HTML pages.
	SkipScreenshot bool
}

// Output lists the files written for one map and timepoint.
type Output struct {
	HTML string
	PNG  string
}

// Renderer writes map pages and screenshots them.
type Renderer struct {
	opts    Options
	palette *classify.Palette
	shooter Screenshotter
	log     *zap.Logger
}

// New creates a Renderer. shooter may be nil when opts.SkipScreenshot is set.
func New(opts Options, palette *classify.Palette, shooter Screenshotter) *Renderer {
	if opts.Key == "" {
		opts.Key = "FIPS"
	}
	if opts.View == (MapView{}) {
		opts.View = DefaultView()
	}
	return &Renderer{
		opts:    opts,
		palette: palette,
		shooter: shooter,
		log:     zap.L().With(zap.String("component", "render")),
	}
}

// FileBase returns the "{Map}_{YYYYMMDD}" stem shared by a map's page and
// image.
func FileBase(m classify.Map, tp dataset.Timepoint) string {
	return fmt.Sprintf("%s_%s", m.Name, tp)
}

// Render writes the page for m at tp and, unless disabled, its screenshot.
func (r *Renderer) Render(ctx context.Context, doc *geodoc.Document, m classify.Map, tp dataset.Timepoint) (*Output, error) {
	data, err := buildPage(doc, m, r.palette, r.opts.Key, tp, r.opts.View)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.opts.HTMLDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "render: create html dir")
	}
	base := FileBase(m, tp)
	out := &Output{HTML: filepath.Join(r.opts.HTMLDir, base+".html")}
	if err := writePage(out.HTML, data); err != nil {
		return nil, err
	}

	if r.opts.SkipScreenshot {
		return out, nil
	}
	if r.shooter == nil {
		return nil, eris.New("render: no screenshotter configured")
	}
	if err := os.MkdirAll(r.opts.PNGDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "render: create png dir")
	}

	abs, err := filepath.Abs(out.HTML)
	if err != nil {
		return nil, eris.Wrap(err, "render: resolve page path")
	}
	pageURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	png := filepath.Join(r.opts.PNGDir, base+".png")
	if err := r.shooter.Screenshot(ctx, pageURL, png); err != nil {
		return nil, err
	}
	out.PNG = png

	r.log.Debug("rendered map", zap.String("map", m.Name), zap.String("date", tp.String()), zap.String("png", png))
	return out, nil
}
