// Package templates renders the map page and the HTML fragments patched into
// it over Datastar SSE.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	// dict builds a map from alternating keys and values, for passing
	// several values to a nested template.
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
			}
			m[k] = kv[i+1]
		}
		return m, nil
	},
}

// Renderer executes named templates. Reload swaps the set atomically, so it
// is safe to render while reloading.
type Renderer struct {
	mu  sync.RWMutex
	set *template.Template
}

// Default returns a renderer over the templates built into the binary.
func Default() (*Renderer, error) {
	sub, err := fs.Sub(embedded, "fragments")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// New parses every *.html file at the root of fsys.
func New(fsys fs.FS) (*Renderer, error) {
	set, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{set: set}, nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
}

// Execute writes the named template to w.
func (r *Renderer) Execute(w io.Writer, name string, data any) error {
	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()
	return set.ExecuteTemplate(w, name, data)
}

// Render renders the named template to a string. Nothing is returned on
// failure, so a half-rendered fragment never reaches the page.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.Execute(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Reload replaces the templates with the *.html files in dir, for editing
// templates without a rebuild. The current set stays when parsing fails.
func (r *Renderer) Reload(dir string) error {
	set, err := parse(os.DirFS(dir))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}
