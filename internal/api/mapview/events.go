package mapview

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-termit/internal/humastar"
	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/service"
)

// EventInput carries an event reported by the page.
type EventInput struct {
	IDInput
	Body browser.Event
}

// SignalsInput carries Datastar signals for a session.
type SignalsInput struct {
	IDInput
	humastar.SignalsInput
}

// OutcomeOutput reports what the map did with an event.
type OutcomeOutput struct {
	Body browser.Outcome
}

func loopError(err error) error {
	if errors.Is(err, service.ErrLoopClosed) {
		return huma.Error404NotFound(service.ErrSessionNotFound.Error())
	}
	return huma.Error500InternalServerError("session unavailable", err)
}

func (h *Handler) dispatch(ctx context.Context, id string, ev browser.Event) (*OutcomeOutput, error) {
	s, err := h.session(id)
	if err != nil {
		return nil, err
	}
	out, err := s.Dispatch(ctx, ev)
	switch {
	case errors.Is(err, browser.ErrNoMap):
		return nil, huma.Error409Conflict("map not mounted")
	case err != nil:
		return nil, loopError(err)
	}
	return &OutcomeOutput{Body: out}, nil
}

// Ready records that the page loaded the map engine script.
func (h *Handler) Ready(ctx context.Context, input *IDInput) (*struct{}, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := s.Ready(ctx); err != nil {
		return nil, loopError(err)
	}
	return nil, nil
}

// Viewport reports the map's center and zoom after a user interaction.
func (h *Handler) Viewport(ctx context.Context, input *EventInput) (*OutcomeOutput, error) {
	switch input.Body.Name {
	case mapwidget.EventZoomChanged, mapwidget.EventDragEnd, mapwidget.EventIdle:
	default:
		return nil, huma.Error422UnprocessableEntity("not a viewport event: " + input.Body.Name)
	}
	if input.Body.Center == nil || input.Body.Zoom == nil {
		return nil, huma.Error422UnprocessableEntity("center and zoom are required")
	}
	return h.dispatch(ctx, input.ID, input.Body)
}

// OverlayClick reports a click on an overlay.
func (h *Handler) OverlayClick(ctx context.Context, input *EventInput) (*OutcomeOutput, error) {
	ev := input.Body
	ev.Name = browser.EventOverlayClick
	return h.dispatch(ctx, input.ID, ev)
}

// MapClick reports a click on the map background.
func (h *Handler) MapClick(ctx context.Context, input *IDInput) (*OutcomeOutput, error) {
	return h.dispatch(ctx, input.ID, browser.Event{Name: mapwidget.EventClick})
}

// Resize reports a window resize.
func (h *Handler) Resize(ctx context.Context, input *IDInput) (*OutcomeOutput, error) {
	return h.dispatch(ctx, input.ID, browser.Event{Name: mapwidget.EventResize})
}

// PanelClose deselects, which closes the detail panel.
func (h *Handler) PanelClose(ctx context.Context, input *IDInput) (*struct{}, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ClearSelection(ctx); err != nil {
		return nil, loopError(err)
	}
	return nil, nil
}

// PanelUnit switches the price option to the unit signal.
func (h *Handler) PanelUnit(ctx context.Context, input *SignalsInput) (*struct{}, error) {
	signals, err := input.Decode()
	if err != nil {
		return nil, err
	}
	if !signals.Has("unit") {
		return nil, huma.Error400BadRequest("unit signal is required")
	}
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.SelectUnit(ctx, signals.Int("unit")); err != nil {
		return nil, loopError(err)
	}
	return nil, nil
}

// PanelMore expands or collapses the extra transactions.
func (h *Handler) PanelMore(ctx context.Context, input *IDInput) (*struct{}, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ToggleShowMore(ctx); err != nil {
		return nil, loopError(err)
	}
	return nil, nil
}

// Close ends the session when the page goes away.
func (h *Handler) Close(ctx context.Context, input *IDInput) (*struct{}, error) {
	if err := h.sessions.Close(ctx, input.ID); err != nil && !errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error500InternalServerError("close session", err)
	}
	return nil, nil
}
