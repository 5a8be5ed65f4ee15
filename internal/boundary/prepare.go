// Package boundary turns a downloaded county boundary file into the
// geometry template every timepoint is built from.
package boundary

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/fetcher"
	"github.com/sells-group/covidmap/internal/fips"
	"github.com/sells-group/covidmap/internal/geodoc"
)

// TemplateName is the file name of the prepared template.
const TemplateName = "CountyTemplate.json"

// Fields names the identifier properties of a boundary feature.
type Fields struct {
	State  string
	County string
	ID     string
	// StateAbbr is added from the state FIPS table when absent.
	StateAbbr string
}

// DefaultFields matches the Census cartographic boundary files.
func DefaultFields() Fields {
	return Fields{State: "STATEFP", County: "COUNTYFP", ID: "FIPS", StateAbbr: "StateAbbr"}
}

// Report summarizes a Normalize pass.
type Report struct {
	Features     int
	Identified   int
	Unidentified int
	// BadGeometry counts features whose geometry is not a polygon or
	// multipolygon.
	BadGeometry int
	Duplicates  int
}

// Load reads a boundary file: a shapefile, a ZIP archive holding one, or a
// GeoJSON feature collection.
func Load(ctx context.Context, path string) (*geodoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: load")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path)
	case ".zip":
		dir, err := os.MkdirTemp("", "covidmap-boundary-*")
		if err != nil {
			return nil, eris.Wrap(err, "boundary: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		shpPath, err := fetcher.ExtractShapefile(path, dir)
		if err != nil {
			return nil, eris.Wrap(err, "boundary: extract archive")
		}
		return ReadShapefile(shpPath)
	case ".json", ".geojson":
		return geodoc.Read(path)
	default:
		return nil, eris.Errorf("boundary: unsupported boundary file %s", path)
	}
}

// Normalize rewrites every feature's identifier fields consistently: the
// state code padded to 2 digits, the county code to 3 and the combined ID to
// 5. Features that carry only the combined ID get the parts split from it.
func Normalize(doc *geodoc.Document, fields Fields) *Report {
	report := &Report{Features: len(doc.Features)}
	seen := make(map[string]bool, len(doc.Features))

	for _, f := range doc.Features {
		if !polygonal(f) {
			report.BadGeometry++
		}

		id := identify(f, fields)
		if id == "" {
			report.Unidentified++
			continue
		}
		report.Identified++
		if seen[id] {
			report.Duplicates++
		}
		seen[id] = true

		state, county := fips.Split(id)
		f.Properties[fields.State] = state
		f.Properties[fields.County] = county
		f.Properties[fields.ID] = id

		if fields.StateAbbr == "" {
			continue
		}
		if _, ok := f.StringProperty(fields.StateAbbr); !ok {
			if abbr, ok := fips.StateAbbr(state); ok {
				f.Properties[fields.StateAbbr] = abbr
			}
		}
	}
	return report
}

// identify derives the 5-digit identifier from the state and county parts,
// falling back to the combined ID field and then GEOID.
func identify(f *geodoc.Feature, fields Fields) string {
	state, okS := f.StringProperty(fields.State)
	county, okC := f.StringProperty(fields.County)
	if okS && okC {
		if id := fips.Combine(state, county); len(id) == 5 && fips.Normalize(id) == id {
			return id
		}
	}
	for _, key := range []string{fields.ID, "GEOID"} {
		if v, ok := f.StringProperty(key); ok {
			if id := fips.Normalize(v); id != "" && len(id) == 5 {
				return id
			}
		}
	}
	return ""
}

func polygonal(f *geodoc.Feature) bool {
	if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
		return false
	}
	var g geom.T
	if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
		return false
	}
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	default:
		return false
	}
}

// Prepare loads the boundary file at in, normalizes it and writes the
// template to out.
func Prepare(ctx context.Context, in, out string, fields Fields) (*Report, error) {
	log := zap.L().With(zap.String("component", "boundary"))

	doc, err := Load(ctx, in)
	if err != nil {
		return nil, err
	}
	report := Normalize(doc, fields)
	if report.Identified == 0 {
		return report, eris.Errorf("boundary: no feature in %s has a county identifier", in)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return report, eris.Wrap(err, "boundary: create output dir")
	}
	if err := doc.Write(out); err != nil {
		return report, err
	}

	log.Info("prepared county template",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("features", report.Features),
		zap.Int("identified", report.Identified),
		zap.Int("unidentified", report.Unidentified),
		zap.Int("bad_geometry", report.BadGeometry),
		zap.Int("duplicates", report.Duplicates),
	)
	return report, nil
}
