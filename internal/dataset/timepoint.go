package dataset

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TimepointLayout is the fixed-width date stamp used in file names and keys.
const TimepointLayout = "20060102"

// Timepoint identifies one calendar date of cumulative data as YYYYMMDD.
// Fixed width makes lexical order chronological.
type Timepoint string

// headerLayouts are the date header spellings seen in USAFacts exports.
var headerLayouts = []string{"1/2/06", "1/2/2006", "2006-01-02", TimepointLayout}

// ParseTimepoint parses a YYYYMMDD stamp.
func ParseTimepoint(s string) (Timepoint, error) {
	t, err := time.Parse(TimepointLayout, strings.TrimSpace(s))
	if err != nil {
		return "", eris.Wrapf(err, "dataset: parse timepoint %q", s)
	}
	return FromTime(t), nil
}

// FromTime converts a time to its Timepoint.
func FromTime(t time.Time) Timepoint {
	return Timepoint(t.Format(TimepointLayout))
}

// HeaderTimepoint reports whether a column header names a date and returns
// the normalized Timepoint if so.
func HeaderTimepoint(header string) (Timepoint, bool) {
	header = strings.TrimSpace(header)
	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, header); err == nil {
			return FromTime(t), true
		}
	}
	return "", false
}

// Time returns the timepoint as a UTC midnight time.
func (tp Timepoint) Time() time.Time {
	t, _ := time.Parse(TimepointLayout, string(tp))
	return t
}

// Slash returns the timepoint as YYYY/MM/DD for titles and tooltips.
func (tp Timepoint) Slash() string {
	return tp.Time().Format("2006/01/02")
}

// Long returns the timepoint spelled out, e.g. "March 05, 2020".
func (tp Timepoint) Long() string {
	return tp.Time().Format("January 02, 2006")
}

// String implements fmt.Stringer.
func (tp Timepoint) String() string { return string(tp) }
