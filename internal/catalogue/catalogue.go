// Package catalogue holds the fixed, per-mode set of overlays and polygons the
// map shows, along with the zoom tunables that go with it.
//
// The catalogue is read from YAML: an embedded default, or a file given on the
// command line.
package catalogue

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-termit/internal/geo"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrNotFound is returned when an ID is not in the catalogue.
var ErrNotFound = errors.New("catalogue entry not found")

// Polygon colors used when an entry does not set its own.
const (
	DefaultStrokeColor = "#5C7CFA"
	DefaultFillColor   = "#A5D8FF"
	DefaultZIndex      = 10
)

// Entry is one overlay: what it shows and where clicking it navigates.
type Entry struct {
	ID          string         `json:"id" yaml:"id" doc:"Stable entry ID" example:"gangnam-gu"`
	Mode        viewstate.Mode `json:"mode" yaml:"mode" doc:"Mode the entry is shown in" enum:"NATION,CITY,DISTRICT"`
	Label       string         `json:"label" yaml:"label" doc:"Display label"`
	Price       string         `json:"price,omitempty" yaml:"price,omitempty" doc:"Price shown on property markers"`
	Position    geo.Point      `json:"position" yaml:"position" doc:"Overlay coordinate"`
	Target      geo.Viewport   `json:"target" yaml:"target" doc:"Viewport a click navigates to"`
	Leaf        bool           `json:"leaf" yaml:"leaf,omitempty" doc:"Clicking selects the entry and opens its details"`
	ZIndex      int            `json:"zIndex" yaml:"zIndex,omitempty" doc:"Overlay stacking order"`
	Polygon     []geo.Point    `json:"polygon,omitempty" yaml:"polygon,omitempty" doc:"Area outline"`
	StrokeColor string         `json:"strokeColor,omitempty" yaml:"strokeColor,omitempty"`
	FillColor   string         `json:"fillColor,omitempty" yaml:"fillColor,omitempty"`
}

// Document is the YAML layout of a catalogue file.
type Document struct {
	Thresholds viewstate.Thresholds `yaml:"thresholds"`
	Zoom       geo.ZoomBounds       `yaml:"zoom"`
	Epsilon    float64              `yaml:"epsilon"`
	Initial    geo.Viewport         `yaml:"initial"`
	Entries    []Entry              `yaml:"entries"`
}

// ContentFunc renders the markup of an entry's overlay.
type ContentFunc func(Entry) string

// Catalogue is a validated, read-only Document.
type Catalogue struct {
	doc     Document
	byID    map[string]int
	byMode  map[viewstate.Mode][]int
	content ContentFunc
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultYAML)
}

// Load reads a catalogue file. An empty path loads the embedded default.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Catalogue, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return New(doc)
}

// New validates doc, fills defaults and indexes the entries.
func New(doc Document) (*Catalogue, error) {
	if doc.Thresholds == (viewstate.Thresholds{}) {
		doc.Thresholds = viewstate.DefaultThresholds
	}
	if doc.Zoom == (geo.ZoomBounds{}) {
		doc.Zoom = geo.DefaultZoomBounds
	}
	if doc.Epsilon == 0 {
		doc.Epsilon = geo.DefaultEpsilon
	}

	if err := doc.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if doc.Zoom.Min > doc.Zoom.Max {
		return nil, fmt.Errorf("zoom bounds %d..%d out of order", doc.Zoom.Min, doc.Zoom.Max)
	}
	if doc.Epsilon < 0 {
		return nil, fmt.Errorf("epsilon %g must not be negative", doc.Epsilon)
	}
	if !doc.Zoom.Contains(doc.Initial.Zoom) {
		return nil, fmt.Errorf("initial zoom %d outside %d..%d", doc.Initial.Zoom, doc.Zoom.Min, doc.Zoom.Max)
	}

	c := &Catalogue{
		doc:    doc,
		byID:   make(map[string]int, len(doc.Entries)),
		byMode: make(map[viewstate.Mode][]int),
	}
	for i := range doc.Entries {
		e := &doc.Entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %q: duplicate id", e.ID)
		}
		if !e.Mode.Valid() {
			return nil, fmt.Errorf("entry %q: unknown mode %q", e.ID, e.Mode)
		}
		if !doc.Zoom.Contains(e.Target.Zoom) {
			return nil, fmt.Errorf("entry %q: target zoom %d outside %d..%d", e.ID, e.Target.Zoom, doc.Zoom.Min, doc.Zoom.Max)
		}
		if n := len(e.Polygon); n > 0 && n < 3 {
			return nil, fmt.Errorf("entry %q: polygon needs at least 3 points, got %d", e.ID, n)
		}
		if e.ZIndex == 0 {
			e.ZIndex = DefaultZIndex
		}
		if len(e.Polygon) > 0 {
			if e.StrokeColor == "" {
				e.StrokeColor = DefaultStrokeColor
			}
			if e.FillColor == "" {
				e.FillColor = DefaultFillColor
			}
		}
		c.byID[e.ID] = i
		c.byMode[e.Mode] = append(c.byMode[e.Mode], i)
	}
	return c, nil
}

// WithContent returns a copy of c that renders overlay markup with fn.
func (c *Catalogue) WithContent(fn ContentFunc) *Catalogue {
	cp := *c
	cp.content = fn
	return &cp
}

// Document returns the catalogue as loaded, defaults filled in.
func (c *Catalogue) Document() Document { return c.doc }

// Thresholds returns the mode thresholds.
func (c *Catalogue) Thresholds() viewstate.Thresholds { return c.doc.Thresholds }

// Zoom returns the provider zoom bounds.
func (c *Catalogue) Zoom() geo.ZoomBounds { return c.doc.Zoom }

// Epsilon returns the jitter threshold.
func (c *Catalogue) Epsilon() float64 { return c.doc.Epsilon }

// Initial returns the viewport a new map opens at.
func (c *Catalogue) Initial() geo.Viewport { return c.doc.Initial }

// Len returns the number of entries.
func (c *Catalogue) Len() int { return len(c.doc.Entries) }

// Lookup returns the entry with the given ID.
func (c *Catalogue) Lookup(id string) (Entry, error) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.doc.Entries[i], nil
}

// Entries returns the entries shown in mode, in file order. An empty mode
// returns every entry.
func (c *Catalogue) Entries(mode viewstate.Mode) []Entry {
	if mode == "" {
		return append([]Entry(nil), c.doc.Entries...)
	}
	idx := c.byMode[mode]
	out := make([]Entry, len(idx))
	for i, j := range idx {
		out[i] = c.doc.Entries[j]
	}
	return out
}

// Target implements viewstate.Catalogue.
func (c *Catalogue) Target(id string) (viewstate.Target, bool) {
	i, ok := c.byID[id]
	if !ok {
		return viewstate.Target{}, false
	}
	e := c.doc.Entries[i]
	return viewstate.Target{Viewport: e.Target, Leaf: e.Leaf}, true
}

// Overlays implements viewstate.Catalogue.
func (c *Catalogue) Overlays(mode viewstate.Mode) []mapwidget.OverlaySpec {
	idx := c.byMode[mode]
	out := make([]mapwidget.OverlaySpec, 0, len(idx))
	for _, j := range idx {
		e := c.doc.Entries[j]
		out = append(out, mapwidget.OverlaySpec{
			ID:       e.ID,
			Position: e.Position,
			Content:  c.render(e),
			Anchor:   mapwidget.DefaultAnchor,
			ZIndex:   e.ZIndex,
		})
	}
	return out
}

// Polygons implements viewstate.Catalogue.
func (c *Catalogue) Polygons(mode viewstate.Mode) []mapwidget.PolygonSpec {
	var out []mapwidget.PolygonSpec
	for _, j := range c.byMode[mode] {
		e := c.doc.Entries[j]
		if len(e.Polygon) == 0 {
			continue
		}
		out = append(out, mapwidget.PolygonSpec{
			ID:          e.ID,
			Path:        append([]geo.Point(nil), e.Polygon...),
			StrokeColor: e.StrokeColor,
			FillColor:   e.FillColor,
		})
	}
	return out
}

// Bound returns the bounding box of the positions shown in mode.
func (c *Catalogue) Bound(mode viewstate.Mode) orb.Bound {
	entries := c.Entries(mode)
	points := make([]geo.Point, 0, len(entries))
	for _, e := range entries {
		points = append(points, e.Position)
		points = append(points, e.Polygon...)
	}
	return geo.Bound(points)
}

// FeatureCollection exports the entries shown in mode as GeoJSON: one point
// per entry, plus one polygon per entry outline.
func (c *Catalogue) FeatureCollection(mode viewstate.Mode) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range c.Entries(mode) {
		f := geojson.NewFeature(e.Position.Orb())
		f.ID = e.ID
		f.Properties = properties(e)
		fc.Append(f)

		if len(e.Polygon) == 0 {
			continue
		}
		pf := geojson.NewFeature(orb.Polygon{geo.Ring(e.Polygon)})
		pf.ID = e.ID + "/area"
		pf.Properties = properties(e)
		pf.Properties["strokeColor"] = e.StrokeColor
		pf.Properties["fillColor"] = e.FillColor
		fc.Append(pf)
	}
	return fc
}

func properties(e Entry) geojson.Properties {
	p := geojson.Properties{
		"id":    e.ID,
		"mode":  string(e.Mode),
		"label": e.Label,
		"leaf":  e.Leaf,
		"zoom":  e.Target.Zoom,
	}
	if e.Price != "" {
		p["price"] = e.Price
	}
	return p
}

func (c *Catalogue) render(e Entry) string {
	if c.content != nil {
		return c.content(e)
	}
	return html.EscapeString(e.Label)
}
