package svg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/osm2svg/internal/geom"
	"github.com/wegman-software/osm2svg/internal/proj"
	"github.com/wegman-software/osm2svg/internal/style"
)

func testViewport() proj.Viewport {
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	return proj.FitViewport(bound, 0.001, 10)
}

func emit(t *testing.T, geoms []geom.Geometry, st *style.Style, precision int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Emit(&buf, geoms, testViewport(), st, precision); err != nil {
		t.Fatalf("emit: %v", err)
	}
	return buf.String()
}

func TestEmitStructure(t *testing.T) {
	open := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}
	ring := &geom.Path{WayID: 11, Points: orb.LineString{{0, 0}, {1, 0}, {0, 1}, {0, 0}}, Closed: true}
	tree := []geom.Geometry{
		&geom.Group{RelationID: 100, Children: []geom.Geometry{
			open,
			&geom.Group{RelationID: 101, Children: []geom.Geometry{ring}},
		}},
	}

	out := emit(t, tree, style.Default(), 2)

	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`+"\n<svg xmlns=") {
		t.Errorf("missing document prolog:\n%s", out)
	}
	if !strings.HasSuffix(out, "</svg>\n") {
		t.Errorf("missing closing tag:\n%s", out)
	}
	for _, want := range []string{
		`  <g id="100">`,
		`    <g id="101">`,
		`    <path id="10" d="M `,
		`      <path id="11" d="M `,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEmitClosedPath(t *testing.T) {
	ring := &geom.Path{WayID: 11, Points: orb.LineString{{0, 0}, {1, 0}, {0, 1}, {0, 0}}, Closed: true}
	open := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}

	out := emit(t, []geom.Geometry{ring, open}, style.Default(), 2)

	lines := strings.Split(out, "\n")
	var ringLine, openLine string
	for _, l := range lines {
		if strings.Contains(l, `id="11"`) {
			ringLine = l
		}
		if strings.Contains(l, `id="10"`) {
			openLine = l
		}
	}
	if !strings.Contains(ringLine, ` Z"/>`) {
		t.Errorf("closed ring missing close command: %s", ringLine)
	}
	if strings.Contains(openLine, " Z") {
		t.Errorf("open path has close command: %s", openLine)
	}
}

func TestEmitPathOrigin(t *testing.T) {
	// The bound's top-left corner lands at (padding, padding).
	path := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}

	out := emit(t, []geom.Geometry{path}, style.Default(), 2)

	if !strings.Contains(out, `d="M 10.00 10.00 L `) {
		t.Errorf("top-left corner not at padding offset:\n%s", out)
	}
}

func TestEmitStyleAttributes(t *testing.T) {
	st := &style.Style{
		Stroke:      "#ff0000",
		StrokeWidth: 2.5,
		Linecap:     "butt",
		Linejoin:    "miter",
		Background:  "#ffffff",
		Padding:     10,
	}
	path := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}

	out := emit(t, []geom.Geometry{path}, st, 2)

	for _, want := range []string{
		` stroke="#ff0000"`,
		` stroke-width="2.5"`,
		` stroke-linecap="butt"`,
		` stroke-linejoin="miter"`,
		` fill="#ffffff" stroke="none"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "<rect ") {
		t.Errorf("background set but no rect emitted:\n%s", out)
	}
}

func TestEmitNoBackground(t *testing.T) {
	path := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}
	out := emit(t, []geom.Geometry{path}, style.Default(), 2)
	if strings.Contains(out, "<rect") {
		t.Errorf("rect emitted without a background color:\n%s", out)
	}
}

func TestEmitEscapesStyleValues(t *testing.T) {
	st := style.Default()
	st.Stroke = `url(#g) "<&`
	path := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}

	out := emit(t, []geom.Geometry{path}, st, 2)

	if strings.Contains(out, `"<&`) {
		t.Errorf("attribute metacharacters not escaped:\n%s", out)
	}
}

func TestEmitDeterministic(t *testing.T) {
	tree := []geom.Geometry{
		&geom.Group{RelationID: 100, Children: []geom.Geometry{
			&geom.Path{WayID: 10, Points: orb.LineString{{0.123456, 0.654321}, {0.9, 0.8}}},
		}},
	}

	first := emit(t, tree, style.Default(), 4)
	second := emit(t, tree, style.Default(), 4)
	if first != second {
		t.Error("identical input produced different documents")
	}
}

func TestEmitPrecision(t *testing.T) {
	path := &geom.Path{WayID: 10, Points: orb.LineString{{0, 1}, {1, 0}}}

	out := emit(t, []geom.Geometry{path}, style.Default(), 4)

	if !strings.Contains(out, `d="M 10.0000 10.0000 L `) {
		t.Errorf("coordinates not formatted at 4 decimals:\n%s", out)
	}
}
