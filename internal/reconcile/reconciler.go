// Package reconcile keeps the overlays and polygons rendered on a map widget
// equal to a declarative set of specs.
//
// The reconciler owns every handle it creates. Given the next desired set it
// removes what disappeared, replaces what changed and adds what is new;
// anything unchanged keeps its handle, so siblings never flicker.
package reconcile

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-termit/internal/mapwidget"
)

// Surface is the part of the map widget the reconciler draws on.
// *mapwidget.Adapter satisfies it.
type Surface interface {
	AddOverlay(spec mapwidget.OverlaySpec, onClick mapwidget.ClickFunc) (mapwidget.Handle, error)
	RemoveOverlay(h mapwidget.Handle)
	AddPolygon(spec mapwidget.PolygonSpec) (mapwidget.Handle, error)
	RemovePolygon(h mapwidget.Handle)
}

// Kind names what a reconcile operation touched.
type Kind string

const (
	KindOverlay Kind = "overlay"
	KindPolygon Kind = "polygon"
)

// Op is a reconcile operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Observer is notified of every operation applied to the surface.
type Observer interface {
	Reconciled(kind Kind, op Op, n int)
}

// Result counts the operations one Apply performed. A replaced item counts
// once in each.
type Result struct {
	Added   int
	Removed int
	Failed  int
}

// Zero reports whether the apply touched nothing.
func (r Result) Zero() bool {
	return r.Added == 0 && r.Removed == 0 && r.Failed == 0
}

type renderedOverlay struct {
	spec   mapwidget.OverlaySpec
	handle mapwidget.Handle
}

type renderedPolygon struct {
	spec   mapwidget.PolygonSpec
	handle mapwidget.Handle
}

// Reconciler diffs successive overlay and polygon sets onto a Surface.
// It is not safe for concurrent use.
type Reconciler struct {
	surface Surface
	onClick func(id string)
	obs     Observer
	log     zerolog.Logger

	overlays     map[string]renderedOverlay
	overlayOrder []string
	polygons     map[string]renderedPolygon
	polygonOrder []string

	// generation invalidates click closures created before a Clear.
	generation uint64
}

// New returns a reconciler drawing on s. onClick receives the ID of a clicked
// overlay; obs may be nil.
func New(s Surface, onClick func(id string), obs Observer, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		surface:  s,
		onClick:  onClick,
		obs:      obs,
		log:      log.With().Str("component", "reconcile").Logger(),
		overlays: make(map[string]renderedOverlay),
		polygons: make(map[string]renderedPolygon),
	}
}

// Apply makes the rendered overlays equal to next.
func (r *Reconciler) Apply(next []mapwidget.OverlaySpec) Result {
	want, order := dedupeOverlays(next)

	var res Result
	kept := r.overlayOrder[:0:0]
	for _, id := range r.overlayOrder {
		cur := r.overlays[id]
		if spec, ok := want[id]; ok && spec == cur.spec {
			kept = append(kept, id)
			continue
		}
		r.surface.RemoveOverlay(cur.handle)
		delete(r.overlays, id)
		res.Removed++
	}

	for _, id := range order {
		if _, ok := r.overlays[id]; ok {
			continue
		}
		spec := want[id]
		h, err := r.surface.AddOverlay(spec, r.clickFunc(id))
		if err != nil {
			r.log.Debug().Err(err).Str("overlay", id).Msg("add overlay failed")
			res.Failed++
			continue
		}
		r.overlays[id] = renderedOverlay{spec: spec, handle: h}
		kept = append(kept, id)
		res.Added++
	}
	r.overlayOrder = kept

	r.observe(KindOverlay, res)
	return res
}

// ApplyPolygons makes the rendered polygons equal to next. A polygon without
// an ID is keyed by its position in next.
func (r *Reconciler) ApplyPolygons(next []mapwidget.PolygonSpec) Result {
	want, order := dedupePolygons(next)

	var res Result
	kept := r.polygonOrder[:0:0]
	for _, key := range r.polygonOrder {
		cur := r.polygons[key]
		if spec, ok := want[key]; ok && spec.Equal(cur.spec) {
			kept = append(kept, key)
			continue
		}
		r.surface.RemovePolygon(cur.handle)
		delete(r.polygons, key)
		res.Removed++
	}

	for _, key := range order {
		if _, ok := r.polygons[key]; ok {
			continue
		}
		spec := want[key]
		h, err := r.surface.AddPolygon(spec)
		if err != nil {
			r.log.Debug().Err(err).Str("polygon", key).Msg("add polygon failed")
			res.Failed++
			continue
		}
		r.polygons[key] = renderedPolygon{spec: spec, handle: h}
		kept = append(kept, key)
		res.Added++
	}
	r.polygonOrder = kept

	r.observe(KindPolygon, res)
	return res
}

// Clear removes every rendered overlay and polygon. Clicks on overlays that
// were rendered before the clear are ignored afterwards.
func (r *Reconciler) Clear() Result {
	r.generation++

	var res Result
	for _, id := range r.overlayOrder {
		r.surface.RemoveOverlay(r.overlays[id].handle)
		res.Removed++
	}
	r.overlays = make(map[string]renderedOverlay)
	r.overlayOrder = nil
	r.observe(KindOverlay, Result{Removed: res.Removed})

	n := 0
	for _, key := range r.polygonOrder {
		r.surface.RemovePolygon(r.polygons[key].handle)
		n++
	}
	r.polygons = make(map[string]renderedPolygon)
	r.polygonOrder = nil
	r.observe(KindPolygon, Result{Removed: n})

	res.Removed += n
	return res
}

// Rendered returns the IDs of rendered overlays in render order.
func (r *Reconciler) Rendered() []string {
	return append([]string(nil), r.overlayOrder...)
}

// RenderedPolygons returns the keys of rendered polygons in render order.
func (r *Reconciler) RenderedPolygons() []string {
	return append([]string(nil), r.polygonOrder...)
}

// Handle returns the handle of a rendered overlay.
func (r *Reconciler) Handle(id string) (mapwidget.Handle, bool) {
	o, ok := r.overlays[id]
	return o.handle, ok
}

func (r *Reconciler) clickFunc(id string) mapwidget.ClickFunc {
	gen := r.generation
	return func(ev *mapwidget.ClickEvent) {
		ev.StopPropagation()
		if gen != r.generation {
			return
		}
		if _, ok := r.overlays[id]; !ok {
			return
		}
		if fn := r.onClick; fn != nil {
			fn(id)
		}
	}
}

func (r *Reconciler) observe(kind Kind, res Result) {
	if r.obs == nil {
		return
	}
	if res.Removed > 0 {
		r.obs.Reconciled(kind, OpRemove, res.Removed)
	}
	if res.Added > 0 {
		r.obs.Reconciled(kind, OpAdd, res.Added)
	}
}

// dedupeOverlays keys specs by ID, the last duplicate winning, and returns the
// keys in order of first appearance.
func dedupeOverlays(next []mapwidget.OverlaySpec) (map[string]mapwidget.OverlaySpec, []string) {
	want := make(map[string]mapwidget.OverlaySpec, len(next))
	order := make([]string, 0, len(next))
	for _, spec := range next {
		if _, seen := want[spec.ID]; !seen {
			order = append(order, spec.ID)
		}
		want[spec.ID] = spec
	}
	return want, order
}

func dedupePolygons(next []mapwidget.PolygonSpec) (map[string]mapwidget.PolygonSpec, []string) {
	want := make(map[string]mapwidget.PolygonSpec, len(next))
	order := make([]string, 0, len(next))
	for i, spec := range next {
		key := PolygonKey(spec, i)
		if _, seen := want[key]; !seen {
			order = append(order, key)
		}
		want[key] = spec
	}
	return want, order
}

// PolygonKey is the reconcile key for the polygon at index i.
func PolygonKey(spec mapwidget.PolygonSpec, i int) string {
	if spec.ID != "" {
		return spec.ID
	}
	return "#" + strconv.Itoa(i)
}
