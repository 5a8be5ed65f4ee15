// Package geodoc reads and writes county boundary feature collections.
//
// Geometry is held as raw JSON and written back byte-for-byte; only the
// properties mapping is decoded and mutated.
package geodoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
)

// Feature is one GeoJSON feature.
type Feature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Document is a GeoJSON FeatureCollection.
type Document struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	CRS      json.RawMessage `json:"crs,omitempty"`
	BBox     json.RawMessage `json:"bbox,omitempty"`
	Features []*Feature      `json:"features"`
}

// Decode parses a feature collection. Numbers in properties decode as
// json.Number so integer identifiers keep their digits.
func Decode(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "geodoc: decode")
	}
	if doc.Type != "FeatureCollection" {
		return nil, eris.Errorf("geodoc: expected FeatureCollection, got %q", doc.Type)
	}
	for i, f := range doc.Features {
		if f == nil {
			return nil, eris.Errorf("geodoc: feature %d is null", i)
		}
		if f.Properties == nil {
			f.Properties = make(map[string]any)
		}
	}
	return &doc, nil
}

// Read loads a feature collection from disk.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geodoc: read %s", path)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geodoc: %s", path)
	}
	return doc, nil
}

// Encode serializes the document.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "geodoc: encode")
	}
	return data, nil
}

// Write serializes the document to path via a temporary file and rename.
func (d *Document) Write(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "geodoc: create directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "geodoc: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "geodoc: rename %s", path)
	}
	return nil
}

// StringProperty returns a property rendered as a string. Numeric values
// (json.Number or float64) are formatted without exponent.
func (f *Feature) StringProperty(key string) (string, bool) {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

// Merge overwrites the properties of every feature whose key property matches
// an entry in values. Features without a match are left untouched. Applying
// the same values twice yields the same document. Returns the number of
// features updated.
func Merge(doc *Document, key string, values map[string]map[string]any) int {
	matched := 0
	for _, f := range doc.Features {
		id, ok := f.StringProperty(key)
		if !ok {
			continue
		}
		props, ok := values[id]
		if !ok {
			continue
		}
		for k, v := range props {
			f.Properties[k] = v
		}
		matched++
	}
	return matched
}

// Identifiers returns the key property of every feature that has one.
func (d *Document) Identifiers(key string) []string {
	ids := make([]string, 0, len(d.Features))
	for _, f := range d.Features {
		if id, ok := f.StringProperty(key); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
