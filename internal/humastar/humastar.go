// Package humastar connects Huma operations to Datastar. Handlers answer with
// Datastar SSE streams built from Huma streaming contexts, read the signals
// the page posts with each action, and get RFC 8288 Link headers derived from
// the OpenAPI document and from their response bodies.
//
//	type PanelHandler struct {
//	    humastar.Handler
//	}
//
//	func (h *PanelHandler) Panel(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.Render("detail-panel", data), "#detail-panel")
//	    }), nil
//	}
package humastar

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-termit/internal/templates"
)

// Handler is embedded by handlers that answer with Datastar streams.
type Handler struct {
	Renderer *templates.Renderer
	Log      zerolog.Logger
}

// Stream wraps fn as a Huma streaming response. fn owns the connection until
// it returns.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) { fn(NewSSE(ctx)) },
	}
}

// Render renders a template. Failures are logged and render as "".
func (h *Handler) Render(name string, data any) string {
	html, err := h.Renderer.Render(name, data)
	if err != nil {
		h.Log.Error().Err(err).Str("template", name).Msg("render failed")
		return ""
	}
	return html
}

// SSE is a Datastar event generator over a Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar stream on a humago context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner content of selector.
func (s SSE) Patch(html, selector string) error {
	return s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Signals merges signals into the page's store.
func (s SSE) Signals(signals map[string]any) error {
	return s.MarshalAndPatchSignals(signals)
}

// Error sets the page's error signal.
func (s SSE) Error(msg string) error {
	return s.Signals(map[string]any{"error": msg})
}

// Event dispatches a CustomEvent named name on document.
func (s SSE) Event(name string, detail any) error {
	return s.DispatchCustomEvent(name, detail)
}

// Signals is the flat JSON object Datastar posts with every action.
type Signals map[string]any

// ParseSignals decodes a posted body. An empty body has no signals.
func ParseSignals(body []byte) (Signals, error) {
	s := Signals{}
	if len(body) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func lookup[T any](s Signals, key string) (T, bool) {
	v, ok := s[key].(T)
	return v, ok
}

// String returns a string signal, or "".
func (s Signals) String(key string) string {
	v, _ := lookup[string](s, key)
	return v
}

// Int returns a numeric signal truncated to an int, or 0.
func (s Signals) Int(key string) int {
	v, _ := lookup[float64](s, key)
	return int(v)
}

// Float returns a numeric signal, or 0.
func (s Signals) Float(key string) float64 {
	v, _ := lookup[float64](s, key)
	return v
}

// Bool returns a boolean signal, or false.
func (s Signals) Bool(key string) bool {
	v, _ := lookup[bool](s, key)
	return v
}

// Has reports whether key was posted, whatever its value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SignalsInput is embedded in Huma inputs of Datastar actions; Huma fills
// RawBody with the posted signals.
type SignalsInput struct {
	RawBody []byte
}

// Decode parses the posted signals. A body that is not a JSON object answers
// 400.
func (i *SignalsInput) Decode() (Signals, error) {
	s, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return s, nil
}
