// Package svg serializes resolved geometry trees as SVG. Output is
// deterministic: identical input produces byte-identical documents.
package svg

import (
	"bufio"
	"io"
	"strconv"

	"github.com/wegman-software/osm2svg/internal/geom"
	"github.com/wegman-software/osm2svg/internal/proj"
	"github.com/wegman-software/osm2svg/internal/style"
)

// Emitter writes one SVG document for a set of resolved geometry trees.
type Emitter struct {
	w         *bufio.Writer
	vp        proj.Viewport
	precision int
	err       error
}

// Emit writes the document: a root svg element sized from the viewport and
// carrying the document-level stroke attributes, then one nested <g> per
// group and one <path> per path, mirroring the tree.
func Emit(w io.Writer, geoms []geom.Geometry, vp proj.Viewport, st *style.Style, precision int) error {
	e := &Emitter{
		w:         bufio.NewWriter(w),
		vp:        vp,
		precision: precision,
	}

	e.writeString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	e.writeString(`<svg xmlns="http://www.w3.org/2000/svg"`)
	e.attr("width", e.num(vp.Width))
	e.attr("height", e.num(vp.Height))
	e.attr("viewBox", "0 0 "+e.num(vp.Width)+" "+e.num(vp.Height))
	e.attr("fill", "none")
	if st.Stroke != "" {
		e.attr("stroke", escapeAttr(st.Stroke))
	}
	if st.StrokeWidth > 0 {
		e.attr("stroke-width", strconv.FormatFloat(st.StrokeWidth, 'f', -1, 64))
	}
	if st.Linecap != "" {
		e.attr("stroke-linecap", escapeAttr(st.Linecap))
	}
	if st.Linejoin != "" {
		e.attr("stroke-linejoin", escapeAttr(st.Linejoin))
	}
	e.writeString(">\n")

	if st.Background != "" {
		e.writeString(`<rect width="` + e.num(vp.Width) + `" height="` + e.num(vp.Height) +
			`" fill="` + escapeAttr(st.Background) + `" stroke="none"/>` + "\n")
	}

	for _, g := range geoms {
		e.emit(g, 0)
	}

	e.writeString("</svg>\n")

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func (e *Emitter) emit(g geom.Geometry, depth int) {
	switch t := g.(type) {
	case *geom.Path:
		e.indent(depth + 1)
		e.writeString(`<path id="` + strconv.FormatInt(int64(t.WayID), 10) + `" d="`)
		e.writeString(e.pathData(t))
		e.writeString(`"/>` + "\n")
	case *geom.Group:
		e.indent(depth + 1)
		e.writeString(`<g id="` + strconv.FormatInt(int64(t.RelationID), 10) + `">` + "\n")
		for _, child := range t.Children {
			e.emit(child, depth+1)
		}
		e.indent(depth + 1)
		e.writeString("</g>\n")
	}
}

// pathData serializes a path's projected points as move/line commands, with
// a close command for closed rings.
func (e *Emitter) pathData(p *geom.Path) string {
	var b []byte
	for i, pt := range p.Points {
		x, y := e.vp.Project(pt)
		if i == 0 {
			b = append(b, 'M')
		} else {
			b = append(b, ' ', 'L')
		}
		b = append(b, ' ')
		b = strconv.AppendFloat(b, x, 'f', e.precision, 64)
		b = append(b, ' ')
		b = strconv.AppendFloat(b, y, 'f', e.precision, 64)
	}
	if p.Closed {
		b = append(b, ' ', 'Z')
	}
	return string(b)
}

func (e *Emitter) num(v float64) string {
	return strconv.FormatFloat(v, 'f', e.precision, 64)
}

func (e *Emitter) attr(name, value string) {
	e.writeString(" " + name + `="` + value + `"`)
}

func (e *Emitter) indent(depth int) {
	for i := 0; i < depth; i++ {
		e.writeString("  ")
	}
}

func (e *Emitter) writeString(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

// escapeAttr escapes the XML attribute metacharacters. Only user-supplied
// style values pass through here; geometry attributes are numeric.
func escapeAttr(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			b = append(b, "&amp;"...)
		case '<':
			b = append(b, "&lt;"...)
		case '"':
			b = append(b, "&quot;"...)
		default:
			b = append(b, s[i])
		}
	}
	return string(b)
}
