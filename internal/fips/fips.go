// Package fips normalizes Census FIPS codes for US states and counties.
package fips

import "strings"

// StateAggregate is the county identifier USAFacts uses for statewide
// unallocated rows. It never joins to a boundary feature.
const StateAggregate = "00000"

// NormalizeState normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeState(code string) string {
	return pad(code, 2)
}

// NormalizeCounty normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeCounty(code string) string {
	return pad(code, 3)
}

// Normalize returns a 5-digit county identifier. Spreadsheets often drop the
// leading zero ("1001" for Autauga, AL) and some exports carry a float suffix
// ("1001.0"); both are repaired. Returns "" for empty input, anything but
// ASCII digits, or more than 5 digits.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(code, ".0")
	if code == "" || len(code) > 5 || !digits(code) {
		return ""
	}
	return pad(code, 5)
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Combine combines state and county FIPS codes into a 5-digit code.
func Combine(state, county string) string {
	s := NormalizeState(state)
	c := NormalizeCounty(county)
	if s == "" || c == "" {
		return ""
	}
	return s + c
}

// IsStateAggregate reports whether id is the statewide placeholder ("0").
func IsStateAggregate(id string) bool {
	return Normalize(id) == StateAggregate
}

// Split returns the state and county parts of a 5-digit identifier.
func Split(id string) (state, county string) {
	id = Normalize(id)
	if id == "" {
		return "", ""
	}
	return id[:2], id[2:]
}

func pad(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < width {
		code = "0" + code
	}
	return code
}
