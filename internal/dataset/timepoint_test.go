package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderTimepoint(t *testing.T) {
	tests := []struct {
		header string
		want   Timepoint
		ok     bool
	}{
		{"1/22/20", "20200122", true},
		{"12/31/20", "20201231", true},
		{"3/5/2020", "20200305", true},
		{"2020-03-05", "20200305", true},
		{"20200305", "20200305", true},
		{"countyFIPS", "", false},
		{"population", "", false},
		{"13/1/20", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := HeaderTimepoint(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimepoint(t *testing.T) {
	tp, err := ParseTimepoint("20200305")
	require.NoError(t, err)
	assert.Equal(t, Timepoint("20200305"), tp)
	assert.Equal(t, time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC), tp.Time())

	_, err = ParseTimepoint("2020-03-05")
	require.Error(t, err)
}

func TestTimepointFormats(t *testing.T) {
	tp := Timepoint("20200305")
	assert.Equal(t, "2020/03/05", tp.Slash())
	assert.Equal(t, "March 05, 2020", tp.Long())
	assert.Equal(t, "20200305", tp.String())
}
