package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covidmap/internal/dataset"
)

// GeoFilePrefix starts the name of every per-timepoint geometry file.
const GeoFilePrefix = "CovidGeoFile"

// GeoFileName returns "CovidGeoFile{YYYYMMDD}.json".
func GeoFileName(tp dataset.Timepoint) string {
	return GeoFilePrefix + tp.String() + ".json"
}

// ListGeoFiles returns the timepoints that have a geometry file in dir,
// ascending. A missing dir yields no timepoints.
func ListGeoFiles(dir string) ([]dataset.Timepoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "pipeline: read dir %s", dir)
	}

	var tps []dataset.Timepoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, GeoFilePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, GeoFilePrefix), ".json")
		tp, err := dataset.ParseTimepoint(stamp)
		if err != nil || tp.String() != stamp {
			continue
		}
		tps = append(tps, tp)
	}
	sort.Slice(tps, func(i, j int) bool { return tps[i] < tps[j] })
	return tps, nil
}

// within filters tps to [start, end]; empty bounds are open.
func within(tps []dataset.Timepoint, start, end string) []dataset.Timepoint {
	var out []dataset.Timepoint
	for _, tp := range tps {
		if start != "" && tp.String() < start {
			continue
		}
		if end != "" && tp.String() > end {
			continue
		}
		out = append(out, tp)
	}
	return out
}
