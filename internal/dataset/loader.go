// Package dataset loads the USAFacts county tables and joins them into one
// read-only dataset keyed by 5-digit FIPS code.
package dataset

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sources names the three input tables. Each may be .csv or .xlsx.
type Sources struct {
	Cases      string
	Deaths     string
	Population string
}

// LoadReport summarizes what the join kept and dropped.
type LoadReport struct {
	CaseRows        int
	DeathRows       int
	PopulationRows  int
	StateAggregates int
	InvalidFIPS     int
	Unmatched       int
	Duplicates      int
	Counties        int
	Timepoints      int
}

// Load reads and joins the three source tables.
func Load(ctx context.Context, src Sources) (*Dataset, *LoadReport, error) {
	tables := make([]*table, 3)
	for i, in := range []struct {
		name, path string
		pop        bool
	}{
		{"cases", src.Cases, false},
		{"deaths", src.Deaths, false},
		{"population", src.Population, true},
	} {
		rows, err := readRows(ctx, in.path)
		if err != nil {
			return nil, nil, err
		}
		t, err := parseTable(in.name, rows, in.pop)
		if err != nil {
			return nil, nil, err
		}
		tables[i] = t
	}

	ds, report := Join(tables[0], tables[1], tables[2])

	zap.L().Info("dataset loaded",
		zap.String("component", "dataset.loader"),
		zap.Int("counties", report.Counties),
		zap.Int("timepoints", report.Timepoints),
		zap.Int("state_aggregates", report.StateAggregates),
		zap.Int("invalid_fips", report.InvalidFIPS),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("duplicates", report.Duplicates),
	)

	if len(ds.Counties) == 0 {
		return nil, report, eris.New("dataset: join produced no counties")
	}
	return ds, report, nil
}

// Join merges cases and deaths with population on (FIPS, name, state), then
// cases with deaths on the same key plus population. Rows without a partner
// in every table are dropped and counted; on duplicate FIPS the first row wins.
func Join(cases, deaths, population *table) (*Dataset, *LoadReport) {
	report := &LoadReport{
		CaseRows:        len(cases.rows),
		DeathRows:       len(deaths.rows),
		PopulationRows:  len(population.rows),
		StateAggregates: cases.aggregates + deaths.aggregates + population.aggregates,
		InvalidFIPS:     cases.invalid + deaths.invalid + population.invalid,
	}

	pop := make(map[joinKey]int64, len(population.rows))
	for _, r := range population.rows {
		if _, dup := pop[r.key]; dup {
			report.Duplicates++
			continue
		}
		pop[r.key] = r.population
	}

	deathsByKey := make(map[joinKey]Series, len(deaths.rows))
	for _, r := range deaths.rows {
		if _, ok := pop[r.key]; !ok {
			report.Unmatched++
			continue
		}
		if _, dup := deathsByKey[r.key]; dup {
			report.Duplicates++
			continue
		}
		deathsByKey[r.key] = r.values
	}

	log := zap.L().With(zap.String("component", "dataset.join"))
	seen := make(map[string]bool, len(cases.rows))
	ds := &Dataset{}
	for _, r := range cases.rows {
		population, ok := pop[r.key]
		if !ok {
			report.Unmatched++
			continue
		}
		deathSeries, ok := deathsByKey[r.key]
		if !ok {
			report.Unmatched++
			continue
		}
		if seen[r.key.FIPS] {
			report.Duplicates++
			log.Debug("duplicate county identifier dropped", zap.String("fips", r.key.FIPS))
			continue
		}
		seen[r.key.FIPS] = true
		ds.Counties = append(ds.Counties, County{
			FIPS:       r.key.FIPS,
			Name:       r.key.Name,
			State:      r.key.State,
			Population: population,
			Cases:      r.values,
			Deaths:     deathSeries,
		})
	}
	sort.Slice(ds.Counties, func(i, j int) bool { return ds.Counties[i].FIPS < ds.Counties[j].FIPS })

	union := make(map[Timepoint]bool, len(cases.timepoints))
	for _, tp := range cases.timepoints {
		union[tp] = true
	}
	for _, tp := range deaths.timepoints {
		union[tp] = true
	}
	for tp := range union {
		ds.Timepoints = append(ds.Timepoints, tp)
	}
	sort.Slice(ds.Timepoints, func(i, j int) bool { return ds.Timepoints[i] < ds.Timepoints[j] })

	report.Counties = len(ds.Counties)
	report.Timepoints = len(ds.Timepoints)
	return ds, report
}
