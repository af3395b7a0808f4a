// Package geo holds the coordinate and viewport value types shared by the map
// packages. Values are plain data; the only logic is comparison and clamping.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultEpsilon is the jitter threshold in degrees below which two centers
// are considered the same.
const DefaultEpsilon = 1e-5

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat" doc:"Latitude" example:"37.5172"`
	Lng float64 `json:"lng" yaml:"lng" doc:"Longitude" example:"127.0473"`
}

// Orb converts the point to an orb.Point (lng, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromOrb converts an orb.Point back to a Point.
func FromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lng: o.Lon()}
}

// Distance returns the planar Euclidean distance to q in degrees.
func (p Point) Distance(q Point) float64 {
	return planar.Distance(p.Orb(), q.Orb())
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Viewport is the map's center and zoom level. Zoom is an inverse-scale
// integer: smaller values are more zoomed in.
type Viewport struct {
	Center Point `json:"center" yaml:"center" doc:"Map center"`
	Zoom   int   `json:"zoom" yaml:"zoom" doc:"Zoom level (smaller is closer)" example:"6"`
}

// Equal reports whether v and o have the same zoom and centers closer than eps.
func (v Viewport) Equal(o Viewport, eps float64) bool {
	return v.Zoom == o.Zoom && v.Center.Distance(o.Center) < eps
}

func (v Viewport) String() string {
	return fmt.Sprintf("%s z%d", v.Center, v.Zoom)
}

// ZoomBounds is the provider-defined valid zoom range, inclusive.
type ZoomBounds struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultZoomBounds matches the Kakao level range used by the map page.
var DefaultZoomBounds = ZoomBounds{Min: 1, Max: 14}

// Clamp pulls z into the bounds.
func (b ZoomBounds) Clamp(z int) int {
	if z < b.Min {
		return b.Min
	}
	if z > b.Max {
		return b.Max
	}
	return z
}

// Contains reports whether z is within the bounds.
func (b ZoomBounds) Contains(z int) bool {
	return z >= b.Min && z <= b.Max
}

// ClampViewport returns v with its zoom clamped.
func (b ZoomBounds) ClampViewport(v Viewport) Viewport {
	v.Zoom = b.Clamp(v.Zoom)
	return v
}

// Ring converts a path to a closed orb.Ring. The ring is closed implicitly,
// so the first point is appended when the path does not already end on it.
func Ring(path []Point) orb.Ring {
	ring := make(orb.Ring, 0, len(path)+1)
	for _, p := range path {
		ring = append(ring, p.Orb())
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Bound returns the bounding box of the given points.
func Bound(points []Point) orb.Bound {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.Orb()
	}
	return mp.Bound()
}
