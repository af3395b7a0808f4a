package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-termit/internal/detail"
)

// RegisterDetails registers the detail record routes.
func (h *APIHandler) RegisterDetails(api huma.API) {
	huma.Get(api, "/api/v1/details", h.ListDetails, huma.OperationTags("details"))
	huma.Get(api, "/api/v1/details/{id}", h.GetDetail, huma.OperationTags("details"))
}

// DetailsOutput is the response for listing detail records.
type DetailsOutput struct {
	Body struct {
		IDs []string `json:"ids" doc:"IDs with a detail record"`
	}
}

// ListDetails returns the IDs that have a record. Sources that cannot list
// their contents answer 501.
func (h *APIHandler) ListDetails(ctx context.Context, input *struct{}) (*DetailsOutput, error) {
	lister, ok := h.svc.Details.(detail.Lister)
	if !ok {
		return nil, huma.Error501NotImplemented("detail source cannot list records")
	}
	out := &DetailsOutput{}
	out.Body.IDs = lister.IDs()
	if out.Body.IDs == nil {
		out.Body.IDs = []string{}
	}
	return out, nil
}

// GetDetail returns the record shown in the detail panel for an entry.
func (h *APIHandler) GetDetail(ctx context.Context, input *EntryIDInput) (*struct{ Body detail.Record }, error) {
	r, ok := h.svc.Details.Lookup(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("no detail record for " + input.ID)
	}
	return &struct{ Body detail.Record }{Body: r}, nil
}
