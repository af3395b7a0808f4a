package humastar

import (
	"fmt"
	"strings"
)

// Pager is implemented by response bodies that carry pagination metadata.
// Links.Transformer turns them into first/prev/next/last Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a generic paginated response envelope.
// Any handler returning PageBody[T] gets automatic pagination Link headers.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
// basePath may already carry a query string (filters), which is kept.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	sep := "?"
	if strings.Contains(basePath, "?") {
		sep = "&"
	}
	basePath += sep
	var links []string

	links = append(links, fmt.Sprintf(`<%soffset=0&limit=%d>; rel="first"`, basePath, p.Limit))

	if p.Offset > 0 {
		prev := max(p.Offset-p.Limit, 0)
		links = append(links, fmt.Sprintf(`<%soffset=%d&limit=%d>; rel="prev"`, basePath, prev, p.Limit))
	}

	if p.Offset+p.Limit < p.Total {
		links = append(links, fmt.Sprintf(`<%soffset=%d&limit=%d>; rel="next"`, basePath, p.Offset+p.Limit, p.Limit))
	}

	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	links = append(links, fmt.Sprintf(`<%soffset=%d&limit=%d>; rel="last"`, basePath, lastOffset, p.Limit))

	return links
}

// Page slices items according to offset and limit and wraps them in a
// PageBody. Offsets past the end yield an empty page.
func Page[T any](items []T, offset, limit int) PageBody[T] {
	total := len(items)
	limit = max(limit, 0)
	offset = min(max(offset, 0), total)
	end := min(offset+limit, total)
	data := items[offset:end]
	if data == nil {
		data = []T{}
	}
	return PageBody[T]{Total: total, Offset: offset, Limit: limit, Data: data}
}
