package dataset

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covidmap/internal/fetcher"
	"github.com/sells-group/covidmap/internal/fips"
)

// Accepted spellings per logical column. The first entry is the USAFacts
// header, the second the renamed form used in the clean data.
var (
	colFIPS       = []string{"countyFIPS", "FIPS"}
	colName       = []string{"County Name", "CountyName"}
	colState      = []string{"State", "StateAbbr"}
	colPopulation = []string{"population"}
)

// joinKey is the (identifier, name, state) triple every source shares.
type joinKey struct {
	FIPS  string
	Name  string
	State string
}

type tableRow struct {
	key        joinKey
	population int64
	values     Series
}

type dateCol struct {
	idx int
	tp  Timepoint
}

// table is one parsed source file with renamed columns.
type table struct {
	name       string
	timepoints []Timepoint
	rows       []tableRow
	aggregates int
	invalid    int
}

// readRows loads every row of a .csv or .xlsx file, header included.
func readRows(ctx context.Context, path string) ([][]string, error) {
	rows, err := fetcher.ReadTable(ctx, path, fetcher.TableOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read source")
	}
	return rows, nil
}

// parseTable renames a source table's columns and collects its date columns.
// Rows with a blank or non-numeric identifier are counted as invalid; the
// statewide "0" rows are counted as aggregates. Both are dropped.
func parseTable(name string, rows [][]string, wantPopulation bool) (*table, error) {
	if len(rows) == 0 {
		return nil, eris.Errorf("dataset: %s: empty table", name)
	}

	header := rows[0]
	colIdx := mapColumns(header)
	for _, required := range [][]string{colFIPS, colName, colState} {
		if !hasCol(colIdx, required...) {
			return nil, eris.Errorf("dataset: %s: missing column %q", name, required[0])
		}
	}
	if wantPopulation && !hasCol(colIdx, colPopulation...) {
		return nil, eris.Errorf("dataset: %s: missing column %q", name, colPopulation[0])
	}

	var dates []dateCol
	seen := make(map[Timepoint]bool)
	for i, h := range header {
		tp, ok := HeaderTimepoint(h)
		if !ok || seen[tp] {
			continue
		}
		seen[tp] = true
		dates = append(dates, dateCol{idx: i, tp: tp})
	}

	t := &table{name: name}
	for tp := range seen {
		t.timepoints = append(t.timepoints, tp)
	}
	sort.Slice(t.timepoints, func(i, j int) bool { return t.timepoints[i] < t.timepoints[j] })

	for _, record := range rows[1:] {
		id := fips.Normalize(getCol(record, colIdx, colFIPS...))
		if id == "" {
			t.invalid++
			continue
		}
		if fips.IsStateAggregate(id) {
			t.aggregates++
			continue
		}

		row := tableRow{
			key: joinKey{
				FIPS:  id,
				Name:  getCol(record, colIdx, colName...),
				State: getCol(record, colIdx, colState...),
			},
			values: make(Series, len(dates)),
		}
		if wantPopulation {
			row.population = parseInt64Or(getCol(record, colIdx, colPopulation...), 0)
		}
		for _, d := range dates {
			if d.idx >= len(record) {
				continue
			}
			if v, ok := parseInt64(record[d.idx]); ok {
				row.values[d.tp] = v
			}
		}
		t.rows = append(t.rows, row)
	}

	return t, nil
}
