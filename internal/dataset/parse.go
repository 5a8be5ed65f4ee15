package dataset

import (
	"strconv"
	"strings"
)

// parseInt64 parses a count cell. Thousands separators and a trailing ".0"
// (spreadsheet float export) are tolerated. ok is false for blank or
// unparseable cells.
func parseInt64(s string) (int64, bool) {
	s = trimQuotes(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseInt64Or parses a string as an int64, returning def if parsing fails.
func parseInt64Or(s string, def int64) int64 {
	if v, ok := parseInt64(s); ok {
		return v
	}
	return def
}

// trimQuotes removes surrounding double quotes from a CSV field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// normalizeCol lowercases and strips spaces and underscores for cross-format
// column matching: "County Name", "CountyName" and "county_name" all match.
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// mapColumns builds a normalized column name → index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		if _, dup := m[normalizeCol(col)]; !dup {
			m[normalizeCol(col)] = i
		}
	}
	return m
}

// getCol gets a column value by any of its accepted names.
func getCol(record []string, colIdx map[string]int, names ...string) string {
	for _, name := range names {
		idx, ok := colIdx[normalizeCol(name)]
		if ok && idx < len(record) {
			return trimQuotes(record[idx])
		}
	}
	return ""
}

// hasCol reports whether any of the accepted names is present.
func hasCol(colIdx map[string]int, names ...string) bool {
	for _, name := range names {
		if _, ok := colIdx[normalizeCol(name)]; ok {
			return true
		}
	}
	return false
}
