// Package metrics derives per-county timepoint statistics from cumulative
// case and death series and merges them into county geometry.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/geodoc"
)

// Property keys written into each feature's properties.
const (
	PropCountyName          = "CountyName"
	PropStateAbbr           = "StateAbbr"
	PropPopulation          = "Population"
	PropCases               = "Cases"
	PropDeaths              = "Deaths"
	PropCasesPerMillion     = "Cases Per Million"
	PropDeathsPerMillion    = "Deaths Per Million"
	PropNewCases            = "New Cases"
	PropNewDeaths           = "New Deaths"
	PropNewCasesPerMillion  = "New Cases Per Million"
	PropNewDeathsPerMillion = "New Deaths Per Million"
)

// ErrCoverageGap is returned when a county that has cumulative data is
// missing a value for the requested or previous timepoint.
var ErrCoverageGap = eris.New("metrics: coverage gap")

// Metrics holds one county's statistics at one timepoint.
type Metrics struct {
	CountyName          string
	StateAbbr           string
	Population          int64
	Cases               int64
	Deaths              int64
	CasesPerMillion     float64
	DeathsPerMillion    float64
	NewCases            int64
	NewDeaths           int64
	NewCasesPerMillion  float64
	NewDeathsPerMillion float64
}

// Properties returns the feature properties for m.
func (m Metrics) Properties() map[string]any {
	return map[string]any{
		PropCountyName:          m.CountyName,
		PropStateAbbr:           m.StateAbbr,
		PropPopulation:          m.Population,
		PropCases:               m.Cases,
		PropDeaths:              m.Deaths,
		PropCasesPerMillion:     m.CasesPerMillion,
		PropDeathsPerMillion:    m.DeathsPerMillion,
		PropNewCases:            m.NewCases,
		PropNewDeaths:           m.NewDeaths,
		PropNewCasesPerMillion:  m.NewCasesPerMillion,
		PropNewDeathsPerMillion: m.NewDeathsPerMillion,
	}
}

// Report summarizes one Compute call.
type Report struct {
	Date     dataset.Timepoint
	Computed int
	// Skipped counts counties with no cumulative data at all.
	Skipped int
	// Corrections counts downward revisions clamped to zero, per series.
	CaseCorrections  int
	DeathCorrections int
}

// CoverageGapError lists the counties missing a value for a timepoint.
type CoverageGapError struct {
	Date  dataset.Timepoint
	FIPS  []string
	first string
}

func (e *CoverageGapError) Error() string {
	return fmt.Sprintf("metrics: coverage gap at %s for %d counties (first %s)", e.Date, len(e.FIPS), e.first)
}

// Is makes errors.Is(err, ErrCoverageGap) match.
func (e *CoverageGapError) Is(target error) bool {
	return target == ErrCoverageGap
}

// PerMillion scales value to a population of one million, rounded to two
// decimals. A non-positive population yields 0.
func PerMillion(value, population int64) float64 {
	if population <= 0 {
		return 0
	}
	return Round2(float64(value) / (float64(population) / 1_000_000))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute derives metrics for every county at date. prev is the preceding
// timepoint, or nil when date is the first in the series; in that case all
// "new" metrics are 0. Counties without any cumulative data are skipped.
// A county with data but no value at date or prev fails the whole call with
// a *CoverageGapError.
func Compute(counties []dataset.County, date dataset.Timepoint, prev *dataset.Timepoint) (map[string]Metrics, *Report, error) {
	log := zap.L().With(zap.String("component", "metrics"), zap.String("date", date.String()))

	out := make(map[string]Metrics, len(counties))
	report := &Report{Date: date}
	var gaps []string

	for i := range counties {
		c := &counties[i]
		if !c.HasData() {
			report.Skipped++
			continue
		}

		cases, okCases := c.Cases.At(date)
		deaths, okDeaths := c.Deaths.At(date)
		if !okCases || !okDeaths {
			gaps = append(gaps, c.FIPS)
			continue
		}

		m := Metrics{
			CountyName:       c.Name,
			StateAbbr:        c.State,
			Population:       c.Population,
			Cases:            cases,
			Deaths:           deaths,
			CasesPerMillion:  PerMillion(cases, c.Population),
			DeathsPerMillion: PerMillion(deaths, c.Population),
		}

		if prev != nil {
			prevCases, okPC := c.Cases.At(*prev)
			prevDeaths, okPD := c.Deaths.At(*prev)
			if !okPC || !okPD {
				gaps = append(gaps, c.FIPS)
				continue
			}

			if cases < prevCases {
				report.CaseCorrections++
				log.Debug("clamped case revision",
					zap.String("fips", c.FIPS), zap.Int64("previous", prevCases), zap.Int64("current", cases))
			}
			if deaths < prevDeaths {
				report.DeathCorrections++
				log.Debug("clamped death revision",
					zap.String("fips", c.FIPS), zap.Int64("previous", prevDeaths), zap.Int64("current", deaths))
			}
			m.NewCases = max(cases-prevCases, 0)
			m.NewDeaths = max(deaths-prevDeaths, 0)
			m.NewCasesPerMillion = PerMillion(m.NewCases, c.Population)
			m.NewDeathsPerMillion = PerMillion(m.NewDeaths, c.Population)
		}

		out[c.FIPS] = m
		report.Computed++
	}

	if len(gaps) > 0 {
		sort.Strings(gaps)
		return nil, report, &CoverageGapError{Date: date, FIPS: gaps, first: gaps[0]}
	}

	if report.CaseCorrections > 0 || report.DeathCorrections > 0 {
		log.Info("clamped downward revisions",
			zap.Int("case_corrections", report.CaseCorrections),
			zap.Int("death_corrections", report.DeathCorrections))
	}
	return out, report, nil
}

// MergeIntoGeometry writes metrics into the features of doc whose key
// property matches a county identifier. It returns the number of features
// updated. Applying the same metrics twice leaves doc unchanged.
func MergeIntoGeometry(doc *geodoc.Document, key string, byFIPS map[string]Metrics) int {
	values := make(map[string]map[string]any, len(byFIPS))
	for id, m := range byFIPS {
		values[id] = m.Properties()
	}
	return geodoc.Merge(doc, key, values)
}

// GapCounties returns the counties listed in a coverage-gap error, or nil.
func GapCounties(err error) []string {
	var gap *CoverageGapError
	if errors.As(err, &gap) {
		return gap.FIPS
	}
	return nil
}

// Names lists the numeric metric properties in display order.
func Names() []string {
	return []string{
		PropCases, PropDeaths,
		PropCasesPerMillion, PropDeathsPerMillion,
		PropNewCases, PropNewDeaths,
		PropNewCasesPerMillion, PropNewDeathsPerMillion,
	}
}
