package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Style holds the document-level presentation attributes written onto the
// root SVG element. Per-element styling by OSM tags is intentionally not
// supported; paths carry geometry and an id only.
type Style struct {
	// Stroke is the stroke color applied to the whole document
	Stroke string `yaml:"stroke,omitempty"`
	// StrokeWidth is the stroke width in output pixels
	StrokeWidth float64 `yaml:"stroke_width,omitempty"`
	// Linecap/Linejoin follow the SVG attribute values
	Linecap  string `yaml:"linecap,omitempty"`
	Linejoin string `yaml:"linejoin,omitempty"`
	// Background fills the canvas behind all geometry (empty = transparent)
	Background string `yaml:"background,omitempty"`
	// Padding is the margin in output pixels around the geometry bound
	Padding float64 `yaml:"padding"`
}

// Default returns the built-in style: thin black round-capped strokes on a
// transparent canvas.
func Default() *Style {
	return &Style{
		Stroke:      "#000000",
		StrokeWidth: 1.0,
		Linecap:     "round",
		Linejoin:    "round",
		Background:  "",
		Padding:     10,
	}
}

// Load reads a style configuration from a YAML file. Fields left unset in
// the file keep their default values.
func Load(path string) (*Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	st := Default()
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}

	if st.StrokeWidth < 0 {
		return nil, fmt.Errorf("stroke_width must be non-negative")
	}
	if st.Padding < 0 {
		return nil, fmt.Errorf("padding must be non-negative")
	}

	return st, nil
}
