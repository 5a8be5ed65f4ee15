package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffcountyFIPS,County Name,State,1/22/20,\n" +
		"1001, Autauga County ,AL,5,\n" +
		"\n" +
		",,,,\n" +
		"1003,Baldwin \"County\",AL,7\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"countyFIPS", "County Name", "State", "1/22/20"}, rows[0])
	assert.Equal(t, []string{"1001", "Autauga County", "AL", "5"}, rows[1])
	assert.Equal(t, []string{"1003", `Baldwin "County"`, "AL", "7"}, rows[2])
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a,b\n1,2\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeWorkbook(t *testing.T, path string, sheets map[string][][]string) {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, r := range rows {
			row := sheet.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	require.NoError(t, f.Save(path))
}

func TestReadTable_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "population.xlsx")
	writeWorkbook(t, path, map[string][][]string{
		"population": {
			{"countyFIPS", "County Name", "State", "population", ""},
			{"1001", "Autauga County", "AL", "55869"},
			{"", "", ""},
		},
	})

	rows, err := ReadTable(context.Background(), path, TableOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"countyFIPS", "County Name", "State", "population"}, rows[0])
	assert.Equal(t, "55869", rows[1][3])
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, map[string][][]string{
		"20200401": {{"a"}},
		"20200402": {{"b"}, {"c"}},
	})

	rows, err := ReadXLSX(path, "20200402")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b"}, {"c"}}, rows)

	_, err = ReadXLSX(path, "20200403")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadTable_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.csv")
	require.NoError(t, os.WriteFile(path, []byte("countyFIPS,1/22/20\n1001,5\n"), 0o644))

	rows, err := ReadTable(context.Background(), path, TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"countyFIPS", "1/22/20"}, {"1001", "5"}}, rows)
}

func TestReadTable_Missing(t *testing.T) {
	_, err := ReadTable(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), TableOptions{})
	require.Error(t, err)
}

func TestCleanRow(t *testing.T) {
	assert.Equal(t, []string{"a", "", "b"}, cleanRow([]string{" a", "", "b ", " ", ""}))
	assert.Empty(t, cleanRow([]string{"", "  "}))
}
