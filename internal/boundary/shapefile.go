package boundary

import (
	"encoding/json"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/geodoc"
)

// coordDigits caps coordinate precision in the written template; six
// decimals is roughly 10cm, well below what a county map can show.
const coordDigits = 6

// ReadShapefile converts every polygon record of a shapefile into a GeoJSON
// feature carrying the record's attributes as string properties. Records
// with no usable geometry are skipped.
func ReadShapefile(shpPath string) (*geodoc.Document, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	doc := &geodoc.Document{Type: "FeatureCollection"}
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		raw, encErr := encodeShape(shape)
		if encErr != nil || raw == nil {
			skipped++
			zap.L().Debug("boundary: skipping shapefile record", zap.Int("record", n), zap.Error(encErr))
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			props[name] = val
		}

		doc.Features = append(doc.Features, &geodoc.Feature{
			Type:       "Feature",
			Properties: props,
			Geometry:   raw,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Warn("boundary: skipped shapefile records without polygon geometry",
			zap.String("path", shpPath), zap.Int("skipped", skipped))
	}
	return doc, nil
}

// encodeShape returns GeoJSON for polygon shapes and nil for anything else.
func encodeShape(shape shp.Shape) (json.RawMessage, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok {
		return nil, nil
	}
	mp := polygonToMultiPolygon(p)
	if mp == nil {
		return nil, nil
	}
	data, err := geojson.Marshal(mp, geojson.EncodeGeometryWithMaxDecimalDigits(coordDigits))
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode geojson")
	}
	return data, nil
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile
// outer rings run clockwise and holes counter-clockwise; a hole belongs to
// the outer ring preceding it. A counter-clockwise ring with no preceding
// outer ring is taken as an outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("boundary: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if xy.IsRingCounterClockwise(geom.XY, flat) && len(polys) > 0 {
			if err := polys[len(polys)-1].Push(ring); err != nil {
				zap.L().Debug("boundary: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}

	if len(polys) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
