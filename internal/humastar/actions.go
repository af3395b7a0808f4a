package humastar

import (
	"fmt"
	"strings"
)

// Action is a link to something the client may do next with a resource. It
// renders as an RFC 8288 Link header with method, title and schema
// extension parameters:
//
//	</api/v1/sessions/42/selection>; rel="clear-selection"; method="DELETE"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // JSON Schema of the request body, if any
}

// Actor is implemented by response bodies whose available actions depend on
// their state. Links.Transformer emits them as Link headers.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel=%q`, a.Href, a.Rel)
	for _, p := range [][2]string{{"method", a.Method}, {"title", a.Title}, {"schema", a.Schema}} {
		if p[1] != "" {
			fmt.Fprintf(&b, `; %s=%q`, p[0], p[1])
		}
	}
	return b.String()
}

// ActionDef describes an action for any resource of a kind. Pattern holds
// one %s verb for the resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
}

// For resolves the definition against one resource.
func (d ActionDef) For(id string) Action {
	return Action{
		Rel:    d.Rel,
		Href:   fmt.Sprintf(d.Pattern, id),
		Method: d.Method,
		Title:  d.Title,
		Schema: d.Schema,
	}
}

// ActionsFor resolves every definition against one resource.
func ActionsFor(id string, defs []ActionDef) []Action {
	out := make([]Action, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.For(id))
	}
	return out
}
