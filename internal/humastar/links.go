package humastar

import (
	"fmt"
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPoint is the path clients discover the API from.
const EntryPoint = "/health"

// Link is a typed relation to another path.
type Link struct {
	Href string
	Rel  string
}

// String formats the link as a Link header value.
func (l Link) String() string {
	return fmt.Sprintf(`<%s>; rel=%q`, l.Href, l.Rel)
}

// Links holds the relations derived from an API's OpenAPI document, keyed
// by operation path. Create it before the API so Transformer can go into
// the config, then Build once every route is registered.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]Link
}

// NewLinks returns an empty link set.
func NewLinks() *Links {
	return &Links{byPath: map[string][]Link{}}
}

func (l *Links) add(from, href, rel string) {
	lk := Link{Href: href, Rel: rel}
	if !slices.Contains(l.byPath[from], lk) {
		l.byPath[from] = append(l.byPath[from], lk)
	}
}

// For returns the Link header values for a path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byPath[p]))
	for _, lk := range l.byPath[p] {
		out = append(out, lk.String())
	}
	return out
}

type route struct {
	path string
	item *huma.PathItem
	tags []string
}

// Build derives the relations between the API's paths and records them on
// the OpenAPI responses too. Paths whose operations carry one of skipTags
// are left out.
func (l *Links) Build(api huma.API, skipTags ...string) {
	paths := api.OpenAPI().Paths

	var collections, items []route
	for _, p := range slices.Sorted(maps.Keys(paths)) {
		r := route{path: p, item: paths[p], tags: tagsOf(paths[p])}
		if slices.ContainsFunc(r.tags, func(t string) bool { return slices.Contains(skipTags, t) }) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, r)
		} else {
			collections = append(collections, r)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byPath = map[string][]Link{}

	for _, it := range items {
		parent := path.Dir(it.path)
		if _, ok := paths[parent]; ok {
			l.add(it.path, parent, "collection")
			l.add(it.path, parent, "up")
		}
		if it.item.Put != nil || it.item.Patch != nil {
			l.add(it.path, it.path, "edit")
		}
	}

	for _, c := range collections {
		for _, it := range items {
			if path.Dir(it.path) == c.path {
				l.add(c.path, it.path, "item")
			}
		}
		if c.path != EntryPoint {
			l.add(c.path, EntryPoint, "up")
		}
		if c.item.Post != nil {
			l.add(c.path, c.path, "create-form")
		}
		for _, o := range collections {
			if o.path != c.path && slices.ContainsFunc(o.tags, func(t string) bool { return slices.Contains(c.tags, t) }) {
				l.add(c.path, o.path, path.Base(o.path))
			}
		}
	}

	for _, c := range collections {
		if c.path != EntryPoint {
			l.add(EntryPoint, c.path, path.Base(c.path))
		}
	}
	l.add(EntryPoint, "/openapi.json", "describedby")
	l.add(EntryPoint, "/openapi.json", "service-desc")
	l.add(EntryPoint, "/docs", "service-doc")
	l.add(EntryPoint, "/metrics", "metrics")

	for _, r := range slices.Concat(collections, items) {
		if ref := schemaRef(r.item); ref != "" {
			l.add(r.path, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	for p, lks := range l.byPath {
		for _, op := range operationsOf(paths[p]) {
			documentLinks(op, lks)
		}
	}
}

// Transformer emits Link headers on every Huma response: the relations of
// the operation's path, a self link for items, pagination links for Pager
// bodies and the state-dependent actions of Actor bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, h := range l.For(op.Path) {
			ctx.AppendHeader("Link", h)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", Link{Href: ctx.URL().Path, Rel: "self"}.String())
		}
		if p, ok := v.(Pager); ok {
			for _, h := range p.PaginationLinks(pageBase(ctx.URL())) {
				ctx.AppendHeader("Link", h)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

// pageBase is the request URL without paging parameters, so page links keep
// the caller's filters.
func pageBase(u url.URL) string {
	q := u.Query()
	q.Del("offset")
	q.Del("limit")
	if len(q) == 0 {
		return u.Path
	}
	return u.Path + "?" + q.Encode()
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	if pi == nil {
		return nil
	}
	return slices.DeleteFunc(
		[]*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete},
		func(op *huma.Operation) bool { return op == nil },
	)
}

func tagsOf(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

// schemaRef names the component schema of a path's GET success body.
func schemaRef(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// documentLinks records the relations as OpenAPI links on the operation's
// success response.
func documentLinks(op *huma.Operation, lks []Link) {
	for code, resp := range op.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		if resp.Links == nil {
			resp.Links = map[string]*huma.Link{}
		}
		for _, lk := range lks {
			resp.Links[lk.Rel] = &huma.Link{OperationRef: lk.Href, Description: "Related " + lk.Rel}
		}
		return
	}
}
