package api

import (
	"github.com/joeblew999/plat-termit/internal/humastar"
	"github.com/joeblew999/plat-termit/internal/service"
)

// sessionActions are always available on a live session.
var sessionActions = []humastar.ActionDef{
	{Rel: "move", Pattern: "/api/v1/sessions/%s/viewport", Method: "PUT", Title: "Move the map", Schema: "/openapi.json#/components/schemas/Viewport"},
	{Rel: "select", Pattern: "/api/v1/sessions/%s/selection", Method: "PUT", Title: "Select an entry"},
	{Rel: "stream", Pattern: "/api/v1/map/%s/stream", Method: "GET", Title: "Map event stream"},
	{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "Close the session"},
}

// selectedActions apply only while an entry is selected.
var selectedActions = []humastar.ActionDef{
	{Rel: "clear-selection", Pattern: "/api/v1/sessions/%s/selection", Method: "DELETE", Title: "Close the detail panel"},
}

// SessionBody is a session snapshot. It emits state-dependent action Link
// headers through the humastar link transformer.
type SessionBody struct {
	service.State
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	actions := humastar.ActionsFor(b.ID, sessionActions)
	if b.View.Selected != "" {
		actions = append(actions, humastar.ActionsFor(b.ID, selectedActions)...)
	}
	return actions
}
