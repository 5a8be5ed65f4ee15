// Package export writes computed county metrics to an Excel workbook so the
// numbers behind a map can be checked independently.
package export

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/metrics"
)

// Header is the column layout of every sheet.
var Header = append([]string{"FIPS", metrics.PropCountyName, metrics.PropStateAbbr, metrics.PropPopulation}, metrics.Names()...)

// Workbook accumulates one sheet per timepoint.
type Workbook struct {
	file *xlsx.File
	rows int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: xlsx.NewFile()}
}

// AddTimepoint adds a sheet named after tp with one row per county, ordered
// by FIPS.
func (w *Workbook) AddTimepoint(tp dataset.Timepoint, byFIPS map[string]metrics.Metrics) error {
	sheet, err := w.file.AddSheet(tp.String())
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", tp)
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	ids := make([]string, 0, len(byFIPS))
	for id := range byFIPS {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := byFIPS[id]
		row := sheet.AddRow()
		row.AddCell().SetString(id)
		row.AddCell().SetString(m.CountyName)
		row.AddCell().SetString(m.StateAbbr)
		row.AddCell().SetInt64(m.Population)
		row.AddCell().SetInt64(m.Cases)
		row.AddCell().SetInt64(m.Deaths)
		row.AddCell().SetFloat(m.CasesPerMillion)
		row.AddCell().SetFloat(m.DeathsPerMillion)
		row.AddCell().SetInt64(m.NewCases)
		row.AddCell().SetInt64(m.NewDeaths)
		row.AddCell().SetFloat(m.NewCasesPerMillion)
		row.AddCell().SetFloat(m.NewDeathsPerMillion)
	}
	w.rows += len(ids)
	return nil
}

// Rows returns the number of county rows written so far.
func (w *Workbook) Rows() int { return w.rows }

// Save writes the workbook to path.
func (w *Workbook) Save(path string) error {
	if len(w.file.Sheets) == 0 {
		return eris.New("export: workbook has no sheets")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := w.file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
