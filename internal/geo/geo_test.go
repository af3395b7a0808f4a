package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointDistance(t *testing.T) {
	a := Point{Lat: 37.5172, Lng: 127.0473}
	b := Point{Lat: 37.5172, Lng: 127.0473 + 3e-6}

	assert.InDelta(t, 3e-6, a.Distance(b), 1e-12)
	assert.Zero(t, a.Distance(a))
}

func TestOrbRoundTrip(t *testing.T) {
	p := Point{Lat: 36.3504, Lng: 127.3845}
	o := p.Orb()

	assert.Equal(t, 127.3845, o.Lon())
	assert.Equal(t, 36.3504, o.Lat())
	assert.Equal(t, p, FromOrb(o))
}

func TestViewportEqual(t *testing.T) {
	v := Viewport{Center: Point{Lat: 37.5, Lng: 127.0}, Zoom: 8}

	assert.True(t, v.Equal(Viewport{Center: Point{Lat: 37.5 + 5e-6, Lng: 127.0}, Zoom: 8}, DefaultEpsilon))
	assert.False(t, v.Equal(Viewport{Center: Point{Lat: 37.5 + 5e-5, Lng: 127.0}, Zoom: 8}, DefaultEpsilon))
	assert.False(t, v.Equal(Viewport{Center: v.Center, Zoom: 7}, DefaultEpsilon))
}

func TestZoomBoundsClamp(t *testing.T) {
	b := DefaultZoomBounds

	assert.Equal(t, 1, b.Clamp(-3))
	assert.Equal(t, 1, b.Clamp(0))
	assert.Equal(t, 7, b.Clamp(7))
	assert.Equal(t, 14, b.Clamp(14))
	assert.Equal(t, 14, b.Clamp(20))
	assert.True(t, b.Contains(1))
	assert.False(t, b.Contains(15))

	v := b.ClampViewport(Viewport{Zoom: 99})
	assert.Equal(t, 14, v.Zoom)
}

func TestRingClosesPath(t *testing.T) {
	path := []Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}

	ring := Ring(path)
	require.Len(t, ring, 4)
	assert.True(t, ring.Closed())

	closed := Ring(append(path, path[0]))
	assert.Len(t, closed, 4)
}

func TestBound(t *testing.T) {
	b := Bound([]Point{{Lat: 35, Lng: 129}, {Lat: 37.5, Lng: 126.9}})

	assert.Equal(t, 126.9, b.Min.Lon())
	assert.Equal(t, 35.0, b.Min.Lat())
	assert.Equal(t, 129.0, b.Max.Lon())
	assert.Equal(t, 37.5, b.Max.Lat())
}
