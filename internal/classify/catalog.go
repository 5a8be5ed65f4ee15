package classify

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Map names one rendered map family: the metric property it colors by and
// the label shown in its title.
type Map struct {
	Name   string
	Metric string
	Label  string
}

// Catalog is the fixed set of maps, in render order.
var Catalog = []Map{
	{Name: "CovidCaseMap", Metric: "Cases", Label: "Cases"},
	{Name: "CovidDeathMap", Metric: "Deaths", Label: "Deaths"},
	{Name: "CovidCasesPerMillionMap", Metric: "Cases Per Million", Label: "Cases Per Million"},
	{Name: "CovidDeathsPerMillionMap", Metric: "Deaths Per Million", Label: "Deaths Per Million"},
	{Name: "NewCovidCaseMap", Metric: "New Cases", Label: "New Cases"},
	{Name: "NewCovidDeathMap", Metric: "New Deaths", Label: "New Deaths"},
	{Name: "NewCovidCasesPerMillionMap", Metric: "New Cases Per Million", Label: "New Cases Per Million"},
	{Name: "NewCovidDeathsPerMillionMap", Metric: "New Deaths Per Million", Label: "New Deaths Per Million"},
}

// LookupMap finds a catalog entry by name, case-insensitively.
func LookupMap(name string) (Map, bool) {
	for _, m := range Catalog {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Map{}, false
}

// SelectMaps resolves names against the catalog. An empty selection returns
// the whole catalog.
func SelectMaps(names []string) ([]Map, error) {
	if len(names) == 0 {
		return append([]Map(nil), Catalog...), nil
	}
	out := make([]Map, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		m, ok := LookupMap(n)
		if !ok {
			return nil, eris.Errorf("classify: unknown map %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// CheckCatalog verifies every selected map has a scale in p.
func (p *Palette) CheckCatalog(maps []Map) error {
	for _, m := range maps {
		if _, ok := p.Scales[m.Metric]; !ok {
			return eris.Errorf("classify: no scale for metric %q (map %s)", m.Metric, m.Name)
		}
	}
	return nil
}
