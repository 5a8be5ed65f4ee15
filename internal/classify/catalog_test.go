package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectMaps(t *testing.T) {
	all, err := SelectMaps(nil)
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, "CovidCaseMap", all[0].Name)

	some, err := SelectMaps([]string{"newcoviddeathmap", " CovidCaseMap ", ""})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "New Deaths", some[0].Metric)
	assert.Equal(t, "Cases", some[1].Metric)

	_, err = SelectMaps([]string{"BogusMap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BogusMap")
}

func TestSelectMaps_DoesNotAliasCatalog(t *testing.T) {
	all, err := SelectMaps(nil)
	require.NoError(t, err)
	all[0].Name = "changed"
	assert.Equal(t, "CovidCaseMap", Catalog[0].Name)
}

func TestDefaultPaletteCoversCatalog(t *testing.T) {
	assert.NoError(t, DefaultPalette().CheckCatalog(Catalog))

	p := &Palette{BelowRange: BelowRange, Scales: map[string]Scale{}}
	err := p.CheckCatalog(Catalog[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CovidCaseMap")
}
