// Package pipeline drives a covidmap run: fetch sources, prepare the county
// template, build one geometry file per timepoint, render every map and
// animate each map family.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/covidmap/internal/animate"
	"github.com/sells-group/covidmap/internal/boundary"
	"github.com/sells-group/covidmap/internal/classify"
	"github.com/sells-group/covidmap/internal/config"
	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/export"
	"github.com/sells-group/covidmap/internal/fetcher"
	"github.com/sells-group/covidmap/internal/geodoc"
	"github.com/sells-group/covidmap/internal/metrics"
	"github.com/sells-group/covidmap/internal/render"
)

// Pipeline orchestrates the stages of a run.
type Pipeline struct {
	cfg     *config.Config
	palette *classify.Palette
	maps    []classify.Map
	fetcher fetcher.Fetcher
	shooter render.Screenshotter
	encoder animate.Encoder
	runID   string
	log     *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFetcher overrides the HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option { return func(p *Pipeline) { p.fetcher = f } }

// WithScreenshotter overrides the headless browser.
func WithScreenshotter(s render.Screenshotter) Option { return func(p *Pipeline) { p.shooter = s } }

// WithEncoder overrides the animation encoder.
func WithEncoder(e animate.Encoder) Option { return func(p *Pipeline) { p.encoder = e } }

// New creates a Pipeline from configuration. The palette is loaded from
// palette.path (or the built-in default) and the map selection from
// pipeline.maps.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	palette, err := classify.LoadPalette(cfg.Palette.Path)
	if err != nil {
		return nil, err
	}
	maps, err := classify.SelectMaps(cfg.Pipeline.Maps)
	if err != nil {
		return nil, err
	}
	if err := palette.CheckCatalog(maps); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p := &Pipeline{
		cfg:     cfg,
		palette: palette,
		maps:    maps,
		runID:   runID,
		log:     zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID)),
	}
	for _, o := range opts {
		o(p)
	}

	if p.fetcher == nil {
		p.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		})
	}
	if p.encoder == nil {
		enc, err := animate.NewEncoder(cfg.Animate.Format, cfg.Animate.FFmpegPath)
		if err != nil {
			return nil, err
		}
		p.encoder = enc
	}
	return p, nil
}

// RunID identifies this pipeline's log lines.
func (p *Pipeline) RunID() string { return p.runID }

// Maps returns the selected maps.
func (p *Pipeline) Maps() []classify.Map { return p.maps }

// TemplatePath is where the prepared county template lives.
func (p *Pipeline) TemplatePath() string {
	return filepath.Join(p.cfg.Paths.Clean, boundary.TemplateName)
}

// Fetch downloads the source tables and, when withBoundary is set, the
// boundary archive into paths.raw.
func (p *Pipeline) Fetch(ctx context.Context, withBoundary bool) error {
	downloads := []struct{ url, name string }{
		{p.cfg.Fetch.CasesURL, p.cfg.Inputs.Cases},
		{p.cfg.Fetch.DeathsURL, p.cfg.Inputs.Deaths},
		{p.cfg.Fetch.PopulationURL, p.cfg.Inputs.Population},
	}
	if withBoundary {
		downloads = append(downloads, struct{ url, name string }{p.cfg.Fetch.BoundaryURL, p.cfg.Inputs.Boundary})
	}

	for _, d := range downloads {
		path := p.cfg.InputPath(d.name)
		start := time.Now()
		n, err := p.fetcher.DownloadToFile(ctx, d.url, path)
		if err != nil {
			return eris.Wrapf(err, "pipeline: fetch %s", d.name)
		}
		p.log.Info("downloaded source",
			zap.String("url", d.url),
			zap.String("path", path),
			zap.Int64("bytes", n),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// Prepare normalizes the boundary file into the county template.
func (p *Pipeline) Prepare(ctx context.Context) (*boundary.Report, error) {
	fields := boundary.Fields{
		State:     p.cfg.Boundary.StateField,
		County:    p.cfg.Boundary.CountyField,
		ID:        p.cfg.Boundary.IDField,
		StateAbbr: metrics.PropStateAbbr,
	}
	return boundary.Prepare(ctx, p.cfg.InputPath(p.cfg.Inputs.Boundary), p.TemplatePath(), fields)
}

// Load reads and joins the source tables.
func (p *Pipeline) Load(ctx context.Context) (*dataset.Dataset, error) {
	ds, _, err := dataset.Load(ctx, dataset.Sources{
		Cases:      p.cfg.InputPath(p.cfg.Inputs.Cases),
		Deaths:     p.cfg.InputPath(p.cfg.Inputs.Deaths),
		Population: p.cfg.InputPath(p.cfg.Inputs.Population),
	})
	return ds, err
}

// Timepoints returns the dataset's timepoints within pipeline.start/end.
func (p *Pipeline) Timepoints(ds *dataset.Dataset) []dataset.Timepoint {
	return ds.Range(dataset.Timepoint(p.cfg.Pipeline.Start), dataset.Timepoint(p.cfg.Pipeline.End))
}

// BuiltTimepoints lists the geometry files already in paths.clean, limited
// to pipeline.start/end.
func (p *Pipeline) BuiltTimepoints() ([]dataset.Timepoint, error) {
	tps, err := ListGeoFiles(p.cfg.Paths.Clean)
	if err != nil {
		return nil, err
	}
	return within(tps, p.cfg.Pipeline.Start, p.cfg.Pipeline.End), nil
}

// Build writes one geometry file per timepoint. Timepoints are independent
// and run with up to pipeline.concurrency workers. A failed timepoint is
// recorded and the rest continue, unless pipeline.fail_fast is set.
func (p *Pipeline) Build(ctx context.Context, ds *dataset.Dataset, tps []dataset.Timepoint, res *Result) error {
	if _, err := os.Stat(p.TemplatePath()); err != nil {
		return eris.Wrapf(err, "pipeline: county template %s (run prepare first)", p.TemplatePath())
	}
	if err := os.MkdirAll(p.cfg.Paths.Clean, 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create clean dir")
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Pipeline.Concurrency, 1))

	for _, tp := range tps {
		tp := tp
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			report, err := p.buildOne(ds, tp)
			if err != nil {
				res.addFailure(Failure{Date: tp, Stage: "build", Err: err})
				p.log.Error("build failed", zap.String("date", tp.String()), zap.Error(err))
				p.removeStale(tp)
				if p.cfg.Pipeline.FailFast {
					return err
				}
				return nil
			}
			res.addBuilt(tp, report.CaseCorrections, report.DeathCorrections)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: build")
	}
	return nil
}

// removeStale deletes a geometry file left for tp by an earlier run, so a
// later render does not pick up metrics this build could not reproduce.
func (p *Pipeline) removeStale(tp dataset.Timepoint) {
	path := filepath.Join(p.cfg.Paths.Clean, GeoFileName(tp))
	err := os.Remove(path)
	switch {
	case err == nil:
		p.log.Warn("removed stale geometry file", zap.String("date", tp.String()), zap.String("path", path))
	case !os.IsNotExist(err):
		p.log.Error("remove stale geometry file", zap.String("path", path), zap.Error(err))
	}
}

// buildOne computes a timepoint's metrics, merges them into a fresh copy of
// the template and writes the geometry file.
func (p *Pipeline) buildOne(ds *dataset.Dataset, tp dataset.Timepoint) (*metrics.Report, error) {
	byFIPS, report, err := metrics.Compute(ds.Counties, tp, ds.Previous(tp))
	if err != nil {
		return nil, err
	}

	doc, err := geodoc.Read(p.TemplatePath())
	if err != nil {
		return nil, err
	}
	matched := metrics.MergeIntoGeometry(doc, p.cfg.Metrics.Key, byFIPS)

	out := filepath.Join(p.cfg.Paths.Clean, GeoFileName(tp))
	if err := doc.Write(out); err != nil {
		return nil, err
	}

	p.log.Debug("built geometry file",
		zap.String("date", tp.String()),
		zap.String("path", out),
		zap.Int("counties", report.Computed),
		zap.Int("features_matched", matched),
		zap.Int("features", len(doc.Features)),
	)
	return report, nil
}

// Render draws every selected map for each timepoint, one timepoint at a
// time. A timepoint with any failed map is recorded and skipped.
func (p *Pipeline) Render(ctx context.Context, tps []dataset.Timepoint, res *Result) error {
	r := render.New(render.Options{
		HTMLDir:        p.cfg.Paths.HTML,
		PNGDir:         p.cfg.Paths.PNG,
		Key:            p.cfg.Metrics.Key,
		SkipScreenshot: p.cfg.Render.SkipScreenshot,
		View: render.MapView{
			Lat:         p.cfg.Render.Lat,
			Lon:         p.cfg.Render.Lon,
			Zoom:        p.cfg.Render.Zoom,
			Tiles:       p.cfg.Render.Tiles,
			Attribution: p.cfg.Render.Attribution,
		},
	}, p.palette, p.screenshotter())

	for _, tp := range tps {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: render")
		}

		doc, err := geodoc.Read(filepath.Join(p.cfg.Paths.Clean, GeoFileName(tp)))
		if err != nil {
			res.addFailure(Failure{Date: tp, Stage: "render", Err: err})
			if p.cfg.Pipeline.FailFast {
				return eris.Wrap(err, "pipeline: render")
			}
			continue
		}

		images, failed := 0, false
		for _, m := range p.maps {
			out, err := r.Render(ctx, doc, m, tp)
			if err != nil {
				failed = true
				res.addFailure(Failure{Date: tp, Stage: "render", Map: m.Name, Err: err})
				p.log.Error("render failed", zap.String("date", tp.String()), zap.String("map", m.Name), zap.Error(err))
				if p.cfg.Pipeline.FailFast {
					return eris.Wrap(err, "pipeline: render")
				}
				continue
			}
			if out.PNG != "" {
				images++
			}
		}
		if !failed {
			res.addRendered(tp, images)
		}
		p.log.Info("rendered date", zap.String("date", tp.String()), zap.Int("images", images))
	}
	return nil
}

func (p *Pipeline) screenshotter() render.Screenshotter {
	if p.cfg.Render.SkipScreenshot {
		return nil
	}
	if p.shooter == nil {
		p.shooter = render.NewRodScreenshotter(render.BrowserOptions{
			RemoteURL:  p.cfg.Render.RemoteURL,
			Bin:        p.cfg.Render.BrowserBin,
			Headless:   p.cfg.Render.Headless,
			Width:      p.cfg.Render.Width,
			Height:     p.cfg.Render.Height,
			Settle:     p.cfg.Render.Settle(),
			NavTimeout: time.Duration(p.cfg.Render.NavTimeoutSecs) * time.Second,
		})
	}
	return p.shooter
}

// Animate encodes each selected map family's images in date order.
func (p *Pipeline) Animate(ctx context.Context, res *Result) error {
	opts := animate.Options{PNGDir: p.cfg.Paths.PNG, VideoDir: p.cfg.Paths.Video, FPS: p.cfg.Animate.FPS}
	for _, m := range p.maps {
		a, err := animate.Animate(ctx, m.Name, opts, p.encoder)
		if err != nil {
			if p.cfg.Pipeline.FailFast {
				return err
			}
			res.addFailure(Failure{Stage: "animate", Map: m.Name, Err: err})
			p.log.Error("animate failed", zap.String("map", m.Name), zap.Error(err))
			continue
		}
		res.addAnimation(a.Path)
	}
	return nil
}

// Export writes the metrics for tps to an XLSX workbook, one sheet per
// timepoint.
func (p *Pipeline) Export(ds *dataset.Dataset, tps []dataset.Timepoint, path string) (int, error) {
	wb := export.NewWorkbook()
	for _, tp := range tps {
		byFIPS, _, err := metrics.Compute(ds.Counties, tp, ds.Previous(tp))
		if err != nil {
			return 0, err
		}
		if err := wb.AddTimepoint(tp, byFIPS); err != nil {
			return 0, err
		}
	}
	if err := wb.Save(path); err != nil {
		return 0, err
	}
	p.log.Info("exported metrics", zap.String("path", path), zap.Int("sheets", len(tps)), zap.Int("rows", wb.Rows()))
	return wb.Rows(), nil
}

// RunOptions selects the optional stages of Run.
type RunOptions struct {
	Fetch        bool
	SkipPrepare  bool
	SkipRender   bool
	SkipAnimate  bool
	WithBoundary bool
}

// Run executes the stages in order and returns the per-date outcome. The
// returned error is set only for failures that stop the run; per-date
// failures are in the Result.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	res := newResult(p.runID)
	start := time.Now()
	p.log.Info("run starting", zap.Int("maps", len(p.maps)))

	if opts.Fetch {
		if err := p.Fetch(ctx, opts.WithBoundary); err != nil {
			return res, err
		}
	}
	if !opts.SkipPrepare {
		if _, err := p.Prepare(ctx); err != nil {
			return res, err
		}
	}

	ds, err := p.Load(ctx)
	if err != nil {
		return res, err
	}
	tps := p.Timepoints(ds)
	if len(tps) == 0 {
		return res, eris.Errorf("pipeline: no timepoints between %q and %q", p.cfg.Pipeline.Start, p.cfg.Pipeline.End)
	}

	if err := p.Build(ctx, ds, tps, res); err != nil {
		return res, err
	}

	if !opts.SkipRender {
		defer p.closeShooter()
		if err := p.Render(ctx, res.Built(), res); err != nil {
			return res, err
		}
	}
	if !opts.SkipAnimate && !p.cfg.Render.SkipScreenshot {
		if err := p.Animate(ctx, res); err != nil {
			return res, err
		}
	}

	res.Log(p.log.With(zap.Duration("elapsed", time.Since(start))))
	return res, nil
}

// Close releases the browser, if one was started.
func (p *Pipeline) Close() {
	p.closeShooter()
}

func (p *Pipeline) closeShooter() {
	if p.shooter == nil {
		return
	}
	if err := p.shooter.Close(); err != nil {
		p.log.Warn("close browser", zap.Error(err))
	}
}

// NewResult starts an empty result for callers that drive stages directly.
func (p *Pipeline) NewResult() *Result { return newResult(p.runID) }
