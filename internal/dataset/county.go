package dataset

import "sort"

// Series holds cumulative counts keyed by timepoint. A missing key means the
// source table had no value for that date.
type Series map[Timepoint]int64

// At returns the cumulative value at tp and whether one was reported.
func (s Series) At(tp Timepoint) (int64, bool) {
	v, ok := s[tp]
	return v, ok
}

// County is one joined county record.
type County struct {
	FIPS       string
	Name       string
	State      string
	Population int64
	Cases      Series
	Deaths     Series
}

// HasData reports whether the county carries any cumulative values at all.
// Counties without data are treated as unmatched rather than as coverage gaps.
func (c *County) HasData() bool {
	return len(c.Cases) > 0 || len(c.Deaths) > 0
}

// Dataset is the joined, read-only input to metric computation.
type Dataset struct {
	// Timepoints lists every date column present, ascending.
	Timepoints []Timepoint
	Counties   []County
}

// Previous returns the timepoint immediately before tp in the dataset's
// column order, or nil when tp is the first (or unknown).
func (d *Dataset) Previous(tp Timepoint) *Timepoint {
	i := sort.Search(len(d.Timepoints), func(i int) bool { return d.Timepoints[i] >= tp })
	if i == 0 || i >= len(d.Timepoints) || d.Timepoints[i] != tp {
		return nil
	}
	prev := d.Timepoints[i-1]
	return &prev
}

// Has reports whether tp is one of the dataset's timepoints.
func (d *Dataset) Has(tp Timepoint) bool {
	i := sort.Search(len(d.Timepoints), func(i int) bool { return d.Timepoints[i] >= tp })
	return i < len(d.Timepoints) && d.Timepoints[i] == tp
}

// Range returns the dataset's timepoints within [start, end]. Empty bounds
// are open.
func (d *Dataset) Range(start, end Timepoint) []Timepoint {
	var out []Timepoint
	for _, tp := range d.Timepoints {
		if start != "" && tp < start {
			continue
		}
		if end != "" && tp > end {
			continue
		}
		out = append(out, tp)
	}
	return out
}

// Lookup returns the county with the given FIPS code.
func (d *Dataset) Lookup(fipsCode string) (*County, bool) {
	for i := range d.Counties {
		if d.Counties[i].FIPS == fipsCode {
			return &d.Counties[i], true
		}
	}
	return nil, false
}
