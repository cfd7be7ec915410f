package proj

import (
	"math"

	"github.com/paulmach/orb"
)

// Web Mercator constants
const (
	// Semi-major axis of WGS84 ellipsoid in meters
	earthRadius = 6378137.0
	// Maximum extent of Web Mercator
	maxExtent = 20037508.342789244
	// Latitude of the projection's vertical asymptote; values beyond this
	// are clamped before projecting to keep y finite
	MaxLatitude = 85.05113
)

// WebMercator converts WGS84 (lon, lat) in degrees to Web Mercator (x, y)
// in meters. x grows east, y grows north.
func WebMercator(lon, lat float64) (x, y float64) {
	if lat > MaxLatitude {
		lat = MaxLatitude
	} else if lat < -MaxLatitude {
		lat = -MaxLatitude
	}

	x = lon * maxExtent / 180.0

	// y = R * ln(tan(π/4 + φ/2))
	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius

	return x, y
}

// Viewport maps projected coordinates into SVG pixel space: scaled, flipped
// so y grows downward, and translated so the geometry bound lands at the
// padded top-left of the canvas.
type Viewport struct {
	Scale   float64 // output pixels per projected meter
	Padding float64 // margin in output pixels on every side

	minX, maxY    float64 // projected top-left of the geometry bound
	Width, Height float64 // canvas size including padding
}

// FitViewport computes the viewport for a lon/lat bound at the given scale
// and padding. The bound must come from a pre-pass over every point that
// will be emitted.
func FitViewport(bound orb.Bound, scale, padding float64) Viewport {
	minX, minY := WebMercator(bound.Min.Lon(), bound.Min.Lat())
	maxX, maxY := WebMercator(bound.Max.Lon(), bound.Max.Lat())

	return Viewport{
		Scale:   scale,
		Padding: padding,
		minX:    minX,
		maxY:    maxY,
		Width:   (maxX-minX)*scale + 2*padding,
		Height:  (maxY-minY)*scale + 2*padding,
	}
}

// Project maps a lon/lat point in degrees to canvas pixels.
func (v Viewport) Project(p orb.Point) (x, y float64) {
	mx, my := WebMercator(p.Lon(), p.Lat())
	x = (mx-v.minX)*v.Scale + v.Padding
	y = (v.maxY-my)*v.Scale + v.Padding
	return x, y
}
