package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/dataset"
)

// Failure records one timepoint that could not be processed by a stage.
type Failure struct {
	Date  dataset.Timepoint
	Stage string
	Map   string
	Err   error
}

func (f Failure) Error() string {
	if f.Map != "" {
		return fmt.Sprintf("%s %s %s: %v", f.Stage, f.Date, f.Map, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Date, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result accumulates per-timepoint outcomes across the stages of a run. It
// is safe for concurrent use.
type Result struct {
	RunID string

	mu               sync.Mutex
	built            []dataset.Timepoint
	rendered         []dataset.Timepoint
	failures         []Failure
	images           int
	caseCorrections  int
	deathCorrections int
	animations       []string
}

func newResult(runID string) *Result {
	return &Result{RunID: runID}
}

func (r *Result) addBuilt(tp dataset.Timepoint, caseCorr, deathCorr int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built = append(r.built, tp)
	r.caseCorrections += caseCorr
	r.deathCorrections += deathCorr
}

func (r *Result) addRendered(tp dataset.Timepoint, images int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, tp)
	r.images += images
}

func (r *Result) addFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *Result) addAnimation(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.animations = append(r.animations, path)
}

func sortedCopy(tps []dataset.Timepoint) []dataset.Timepoint {
	out := append([]dataset.Timepoint(nil), tps...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Built returns the timepoints whose geometry file was written, ascending.
func (r *Result) Built() []dataset.Timepoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedCopy(r.built)
}

// Rendered returns the timepoints whose maps were all rendered, ascending.
func (r *Result) Rendered() []dataset.Timepoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedCopy(r.rendered)
}

// Failures returns every recorded failure ordered by date then stage.
func (r *Result) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Failure(nil), r.failures...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Images returns the number of screenshots written.
func (r *Result) Images() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images
}

// Corrections returns the number of clamped downward revisions.
func (r *Result) Corrections() (cases, deaths int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caseCorrections, r.deathCorrections
}

// Animations returns the animation files written.
func (r *Result) Animations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.animations...)
}

// Err joins every failure, or returns nil when there were none.
func (r *Result) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Log writes the end-of-run summary.
func (r *Result) Log(log *zap.Logger) {
	cases, deaths := r.Corrections()
	failures := r.Failures()
	log.Info("run summary",
		zap.Int("dates_built", len(r.Built())),
		zap.Int("dates_rendered", len(r.Rendered())),
		zap.Int("failures", len(failures)),
		zap.Int("images", r.Images()),
		zap.Int("animations", len(r.Animations())),
		zap.Int("case_corrections", cases),
		zap.Int("death_corrections", deaths),
	)
	for _, f := range failures {
		log.Warn("date failed",
			zap.String("stage", f.Stage),
			zap.String("date", f.Date.String()),
			zap.String("map", f.Map),
			zap.Error(f.Err),
		)
	}
}
