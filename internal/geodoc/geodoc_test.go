package geodoc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"FIPS":"01001","NAME":"Autauga"},"geometry":{"type":"Polygon","coordinates":[[[-86.9,32.6],[-86.4,32.6],[-86.4,32.4],[-86.9,32.6]]]}},
{"type":"Feature","properties":{"FIPS":"06037","NAME":"Los Angeles"},"geometry":{"type":"Polygon","coordinates":[[[-118.9,34.8],[-117.6,34.8],[-117.6,33.7],[-118.9,34.8]]]}},
{"type":"Feature","properties":{"FIPS":"72001","NAME":"Adjuntas"},"geometry":null}
]}`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	require.NoError(t, err)
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Equal(t, []string{"01001", "06037", "72001"}, doc.Identifiers("FIPS"))
}

func TestDecode_RejectsNonCollection(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Feature"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected FeatureCollection")
}

func TestDecode_NilPropertiesBecomeEmpty(t *testing.T) {
	doc, err := Decode([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":null,"geometry":null}]}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Features[0].Properties)
}

func TestMerge(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	require.NoError(t, err)

	n := Merge(doc, "FIPS", map[string]map[string]any{
		"01001": {"Cases": int64(15), "NAME": "Autauga County"},
		"99999": {"Cases": int64(1)},
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(15), doc.Features[0].Properties["Cases"])
	assert.Equal(t, "Autauga County", doc.Features[0].Properties["NAME"])
	assert.NotContains(t, doc.Features[1].Properties, "Cases")
}

func TestMerge_Idempotent(t *testing.T) {
	values := map[string]map[string]any{
		"01001": {"Cases": int64(15), "Cases Per Million": 268.48},
		"06037": {"Cases": int64(120)},
	}

	once, err := Decode([]byte(sampleDoc))
	require.NoError(t, err)
	Merge(once, "FIPS", values)
	onceJSON, err := once.Encode()
	require.NoError(t, err)

	twice, err := Decode([]byte(sampleDoc))
	require.NoError(t, err)
	Merge(twice, "FIPS", values)
	Merge(twice, "FIPS", values)
	twiceJSON, err := twice.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
}

func TestMerge_GeometryUntouched(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	require.NoError(t, err)
	before := string(doc.Features[0].Geometry)

	Merge(doc, "FIPS", map[string]map[string]any{"01001": {"Cases": int64(1)}})
	data, err := doc.Encode()
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, before, string(out.Features[0].Geometry))
}

func TestStringProperty(t *testing.T) {
	f := &Feature{Properties: map[string]any{
		"s": "01001",
		"n": json.Number("1001"),
		"f": float64(48201),
		"b": true,
		"z": nil,
	}}

	v, ok := f.StringProperty("s")
	assert.True(t, ok)
	assert.Equal(t, "01001", v)

	v, _ = f.StringProperty("n")
	assert.Equal(t, "1001", v)

	v, _ = f.StringProperty("f")
	assert.Equal(t, "48201", v)

	v, _ = f.StringProperty("b")
	assert.Equal(t, "true", v)

	_, ok = f.StringProperty("z")
	assert.False(t, ok)
	_, ok = f.StringProperty("missing")
	assert.False(t, ok)
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(in, []byte(sampleDoc), 0o644))

	doc, err := Read(in)
	require.NoError(t, err)

	out := filepath.Join(dir, "sub", "CovidGeoFile20200122.json")
	require.NoError(t, doc.Write(out))

	back, err := Read(out)
	require.NoError(t, err)
	assert.Len(t, back.Features, 3)

	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
