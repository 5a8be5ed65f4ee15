package classify

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed palette.yaml
var defaultPaletteYAML []byte

// Scale pairs ascending thresholds 1:1 with colors.
type Scale struct {
	Thresholds []float64 `yaml:"thresholds"`
	Colors     []string  `yaml:"colors"`
}

// Validate checks that the scale is non-empty, strictly ascending and that
// every threshold has a color.
func (s Scale) Validate() error {
	if len(s.Thresholds) == 0 {
		return eris.New("classify: scale has no thresholds")
	}
	if len(s.Thresholds) != len(s.Colors) {
		return eris.Errorf("classify: %d thresholds but %d colors", len(s.Thresholds), len(s.Colors))
	}
	for i := 1; i < len(s.Thresholds); i++ {
		if s.Thresholds[i] <= s.Thresholds[i-1] {
			return eris.Errorf("classify: thresholds not strictly ascending at index %d (%v <= %v)",
				i, s.Thresholds[i], s.Thresholds[i-1])
		}
	}
	for i, c := range s.Colors {
		if c == "" {
			return eris.Errorf("classify: empty color at index %d", i)
		}
	}
	return nil
}

// Palette holds one scale per metric plus the shared below-range color.
type Palette struct {
	BelowRange string           `yaml:"below_range"`
	Scales     map[string]Scale `yaml:"scales"`
}

// Color classifies a property value for metric. Unknown metrics and
// non-numeric values both yield the below-range color.
func (p *Palette) Color(metric string, v any) string {
	s, ok := p.Scales[metric]
	if !ok {
		return p.BelowRange
	}
	return ClassifyAny(v, s.Thresholds, s.Colors, p.BelowRange)
}

// Scale returns the scale for metric.
func (p *Palette) Scale(metric string) (Scale, bool) {
	s, ok := p.Scales[metric]
	return s, ok
}

// Metrics lists the metrics the palette has scales for, sorted.
func (p *Palette) Metrics() []string {
	names := make([]string, 0, len(p.Scales))
	for name := range p.Scales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate validates every scale.
func (p *Palette) Validate() error {
	if len(p.Scales) == 0 {
		return eris.New("classify: palette has no scales")
	}
	for _, name := range p.Metrics() {
		if err := p.Scales[name].Validate(); err != nil {
			return eris.Wrapf(err, "classify: scale %q", name)
		}
	}
	return nil
}

// ParsePalette decodes and validates a YAML palette.
func ParsePalette(data []byte) (*Palette, error) {
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "classify: parse palette")
	}
	if p.BelowRange == "" {
		p.BelowRange = BelowRange
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPalette returns the built-in palette.
func DefaultPalette() *Palette {
	p, err := ParsePalette(defaultPaletteYAML)
	if err != nil {
		panic("classify: built-in palette invalid: " + err.Error())
	}
	return p
}

// LoadPalette returns the built-in palette with any scales from the YAML file
// at path layered on top. An empty path returns the built-in palette.
func LoadPalette(path string) (*Palette, error) {
	p := DefaultPalette()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read palette %s", path)
	}
	var override Palette
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "classify: parse palette %s", path)
	}
	if override.BelowRange != "" {
		p.BelowRange = override.BelowRange
	}
	for name, s := range override.Scales {
		if err := s.Validate(); err != nil {
			return nil, eris.Wrapf(err, "classify: scale %q in %s", name, path)
		}
		p.Scales[name] = s
	}
	return p, nil
}
