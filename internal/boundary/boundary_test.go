package boundary

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/covidmap/internal/geodoc"
)

func square(x0, y0, x1, y1 float64, clockwise bool) []shp.Point {
	if clockwise {
		return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
	}
	return []shp.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

// writeShapefile writes a two-county polygon shapefile and returns the .shp
// path.
func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	base := filepath.Join(dir, "counties")

	w, err := shp.Create(base+".shp", shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("NAME", 32),
	}))

	withHole := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		square(0, 0, 1, 1, true),
		square(0.25, 0.25, 0.75, 0.75, false),
	}))
	row := w.Write(&withHole)
	require.NoError(t, w.WriteAttribute(int(row), 0, "01"))
	require.NoError(t, w.WriteAttribute(int(row), 1, "001"))
	require.NoError(t, w.WriteAttribute(int(row), 2, "Autauga"))

	twoParts := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		square(2, 2, 3, 3, true),
		square(4, 4, 5, 5, true),
	}))
	row = w.Write(&twoParts)
	require.NoError(t, w.WriteAttribute(int(row), 0, "6"))
	require.NoError(t, w.WriteAttribute(int(row), 1, "37"))
	require.NoError(t, w.WriteAttribute(int(row), 2, "Los Angeles"))
	w.Close()

	// go-shp v0.1.1 drops the dot from the DBF name it writes.
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	return base + ".shp"
}

func zipDir(t *testing.T, dir, out string) {
	t.Helper()
	f, err := os.Create(out)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(filepath.Join(dir, "counties"+ext))
		require.NoError(t, err)
		dst, err := zw.Create("counties" + ext)
		require.NoError(t, err)
		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func decodeGeometry(t *testing.T, f *geodoc.Feature) geom.T {
	t.Helper()
	var g geom.T
	require.NoError(t, geojson.Unmarshal(f.Geometry, &g))
	return g
}

func TestReadShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	doc, err := ReadShapefile(path)
	require.NoError(t, err)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "FeatureCollection", doc.Type)

	first := doc.Features[0]
	assert.Equal(t, "01", first.Properties["STATEFP"])
	assert.Equal(t, "Autauga", first.Properties["NAME"])

	mp, ok := decodeGeometry(t, first).(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 1, mp.NumPolygons(), "counter-clockwise ring is a hole, not a polygon")
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())

	mp, ok = decodeGeometry(t, doc.Features[1]).(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestPolygonToMultiPolygon_Degenerate(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))

	tooShort := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}}))
	assert.Nil(t, polygonToMultiPolygon(&tooShort))

	// A lone counter-clockwise ring is still a polygon.
	ccw := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(0, 0, 1, 1, false)}))
	mp := polygonToMultiPolygon(&ccw)
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestEncodeShape_NonPolygon(t *testing.T) {
	raw, err := encodeShape(&shp.Point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNormalize(t *testing.T) {
	doc, err := geodoc.Decode([]byte(`{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"STATEFP":"6","COUNTYFP":"37"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}},
{"type":"Feature","properties":{"FIPS":1001},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[0,1],[1,1],[0,0]]]]}},
{"type":"Feature","properties":{"GEOID":"72001","StateAbbr":"XX"},"geometry":{"type":"Point","coordinates":[0,0]}},
{"type":"Feature","properties":{"NAME":"nowhere"},"geometry":null},
{"type":"Feature","properties":{"STATEFP":"06","COUNTYFP":"037"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}}
]}`))
	require.NoError(t, err)

	report := Normalize(doc, DefaultFields())
	assert.Equal(t, 5, report.Features)
	assert.Equal(t, 4, report.Identified)
	assert.Equal(t, 1, report.Unidentified)
	assert.Equal(t, 2, report.BadGeometry)
	assert.Equal(t, 1, report.Duplicates)

	la := doc.Features[0].Properties
	assert.Equal(t, "06037", la["FIPS"])
	assert.Equal(t, "06", la["STATEFP"])
	assert.Equal(t, "037", la["COUNTYFP"])
	assert.Equal(t, "CA", la["StateAbbr"])

	autauga := doc.Features[1].Properties
	assert.Equal(t, "01001", autauga["FIPS"])
	assert.Equal(t, "01", autauga["STATEFP"])
	assert.Equal(t, "001", autauga["COUNTYFP"])
	assert.Equal(t, "AL", autauga["StateAbbr"])

	assert.Equal(t, "XX", doc.Features[2].Properties["StateAbbr"], "existing abbreviation is kept")
	assert.NotContains(t, doc.Features[3].Properties, "FIPS")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeShapefile(t, dir)

	t.Run("shapefile", func(t *testing.T) {
		doc, err := Load(context.Background(), shpPath)
		require.NoError(t, err)
		assert.Len(t, doc.Features, 2)
	})

	t.Run("zip", func(t *testing.T) {
		zipPath := filepath.Join(t.TempDir(), "cb_2019_us_county_500k.zip")
		zipDir(t, dir, zipPath)
		doc, err := Load(context.Background(), zipPath)
		require.NoError(t, err)
		assert.Len(t, doc.Features, 2)
	})

	t.Run("geojson", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "counties.geojson")
		require.NoError(t, os.WriteFile(p, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
		doc, err := Load(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, doc.Features)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Load(context.Background(), "counties.kml")
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Load(ctx, shpPath)
		require.Error(t, err)
	})
}

func TestPrepare(t *testing.T) {
	shpPath := writeShapefile(t, t.TempDir())
	out := filepath.Join(t.TempDir(), "clean", TemplateName)

	report, err := Prepare(context.Background(), shpPath, out, DefaultFields())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Identified)

	doc, err := geodoc.Read(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"01001", "06037"}, doc.Identifiers("FIPS"))
}

func TestPrepare_NoIdentifiers(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"x"},"geometry":null}]}`), 0o644))

	_, err := Prepare(context.Background(), in, filepath.Join(t.TempDir(), TemplateName), DefaultFields())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feature")
}
