package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html"
	"html/template"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covidmap/internal/classify"
	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/geodoc"
	"github.com/sells-group/covidmap/internal/metrics"
)

//go:embed page.html.tmpl
var pageTemplate string

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

// MapView is the initial viewport and base layer of a rendered page.
type MapView struct {
	Lat         float64
	Lon         float64
	Zoom        float64
	Tiles       string
	Attribution string
}

// DefaultView frames the contiguous United States on CartoDB Positron.
func DefaultView() MapView {
	return MapView{
		Lat:         43,
		Lon:         -100,
		Zoom:        4.25,
		Tiles:       "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; OpenStreetMap contributors &copy; CARTO`,
	}
}

// featureStyle is the per-county fill color and tooltip.
type featureStyle struct {
	Color string `json:"color"`
	Tip   string `json:"tip,omitempty"`
}

// pageData feeds page.html.tmpl. JSON payloads are pre-encoded; encoding/json
// escapes <, > and & so they are safe inside the script element.
type pageData struct {
	Title       string
	Date        string
	Legend      []LegendEntry
	GeoJSON     template.JS
	Styles      template.JS
	Key         string
	BelowRange  string
	Lat         float64
	Lon         float64
	Zoom        float64
	Tiles       string
	Attribution string
}

// tooltipFields are shown for every county, labelled as in the title date.
var tooltipFields = []struct {
	key   string
	label string
	dated bool
}{
	{metrics.PropCountyName, "County Name", false},
	{metrics.PropStateAbbr, "State", false},
	{metrics.PropPopulation, "Population", false},
	{metrics.PropCases, "Cases", true},
	{metrics.PropDeaths, "Deaths", true},
	{metrics.PropCasesPerMillion, "Cases Per Million", true},
	{metrics.PropDeathsPerMillion, "Deaths Per Million", true},
	{metrics.PropNewCases, "New Cases", true},
	{metrics.PropNewDeaths, "New Deaths", true},
	{metrics.PropNewCasesPerMillion, "New Cases Per Million", true},
	{metrics.PropNewDeathsPerMillion, "New Deaths Per Million", true},
}

func tooltip(props map[string]any, tp dataset.Timepoint) string {
	if _, ok := props[metrics.PropCases]; !ok {
		return ""
	}
	var b strings.Builder
	for i, f := range tooltipFields {
		if i > 0 {
			b.WriteString("<br>")
		}
		label := f.label
		if f.dated {
			label += " " + tp.Slash()
		}
		b.WriteString("<b>" + html.EscapeString(label) + ":</b> ")

		v := props[f.key]
		if s, ok := v.(string); ok {
			b.WriteString(html.EscapeString(s))
		} else {
			b.WriteString(formatValue(v))
		}
	}
	return b.String()
}

// buildPage classifies every feature of doc for m and assembles the page
// data. doc is not modified.
func buildPage(doc *geodoc.Document, m classify.Map, p *classify.Palette, key string, tp dataset.Timepoint, view MapView) (*pageData, error) {
	scale, ok := p.Scale(m.Metric)
	if !ok {
		return nil, eris.Errorf("render: no scale for metric %q", m.Metric)
	}

	styles := make(map[string]featureStyle, len(doc.Features))
	for _, f := range doc.Features {
		id, ok := f.StringProperty(key)
		if !ok {
			continue
		}
		styles[id] = featureStyle{
			Color: p.Color(m.Metric, f.Properties[m.Metric]),
			Tip:   tooltip(f.Properties, tp),
		}
	}

	geo, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	styleJSON, err := json.Marshal(styles)
	if err != nil {
		return nil, eris.Wrap(err, "render: encode styles")
	}

	return &pageData{
		Title:       m.Label,
		Date:        tp.Long(),
		Legend:      BuildLegend(scale, p.BelowRange),
		GeoJSON:     template.JS(geo),       //nolint:gosec // encoding/json output
		Styles:      template.JS(styleJSON), //nolint:gosec // encoding/json output
		Key:         key,
		BelowRange:  p.BelowRange,
		Lat:         view.Lat,
		Lon:         view.Lon,
		Zoom:        view.Zoom,
		Tiles:       view.Tiles,
		Attribution: view.Attribution,
	}, nil
}

// writePage executes the page template to path.
func writePage(path string, data *pageData) error {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return eris.Wrap(err, "render: execute page template")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}
