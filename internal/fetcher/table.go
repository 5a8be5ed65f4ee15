// Package fetcher downloads the source files and reads the containers they
// arrive in: CSV or XLSX tables and the zipped boundary shapefile.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// TableOptions configures ReadTable.
type TableOptions struct {
	// Sheet names the XLSX sheet to read; the first sheet when empty.
	Sheet string
}

// ReadTable reads every row of a .csv or .xlsx file, header included. Cells
// are trimmed, trailing blank cells are dropped and blank lines skipped, so
// a table saved from a spreadsheet reads the same as its CSV export.
func ReadTable(ctx context.Context, path string, opts TableOptions) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, opts.Sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, eris.Wrapf(err, "table: read %s", path)
	}
	return rows, nil
}

// ReadCSV reads all rows from r. Quotes are parsed leniently and rows may
// differ in width; USAFacts exports carry both.
func ReadCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "csv: context cancelled")
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if len(rows) == 0 && len(record) > 0 {
			// Excel-exported CSVs lead with a UTF-8 BOM.
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		if row := cleanRow(record); len(row) > 0 {
			rows = append(rows, row)
		}
	}
}

// ReadXLSX reads all rows of one sheet, the first when sheet is empty.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	s, err := pickSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range s.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if clean := cleanRow(cells); len(clean) > 0 {
			rows = append(rows, clean)
		}
	}
	return rows, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		return f.Sheets[0], nil
	}
	s, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	return s, nil
}

// cleanRow trims every cell and drops trailing blanks. A row of blanks
// becomes empty.
func cleanRow(cells []string) []string {
	last := -1
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
		if cells[i] != "" {
			last = i
		}
	}
	return cells[:last+1]
}
