package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/detail"
)

type panel struct {
	Base  string
	View  detail.View
	Price detail.PriceOption
}

func newPanel(t *testing.T, id string, showMore bool) panel {
	t.Helper()
	src, err := detail.SeedSource()
	require.NoError(t, err)
	r, ok := src.Lookup(id)
	require.True(t, ok)

	v := detail.View{ID: id, Record: &r, ShowMore: showMore}
	price, _ := v.Price()
	return panel{Base: "/api/v1/map/s1", View: v, Price: price}
}

func TestDetailPanel(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	p := newPanel(t, "samsung-lotte", false)
	html, err := r.Render("detail-panel", p)
	require.NoError(t, err)
	assert.Contains(t, html, p.View.Record.Title)
	assert.Contains(t, html, "data-on:click")
	assert.Contains(t, html, "더보기")
	assert.Contains(t, html, p.View.Record.RecentTransactions[0].Date)

	html, err = r.Render("detail-panel", newPanel(t, "samsung-lotte", true))
	require.NoError(t, err)
	assert.Contains(t, html, "접기")
}

func TestDetailPanelEmpty(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	html, err := r.Render("detail-panel", panel{View: detail.View{ID: "seoul", Missing: true}})
	require.NoError(t, err)
	assert.Contains(t, html, "정보 없음")

	html, err = r.Render("detail-panel", panel{})
	require.NoError(t, err)
	assert.NotContains(t, html, "<section")
	assert.NotContains(t, html, "정보 없음")
}

func TestMapPage(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	html, err := r.Render("map-page", map[string]any{
		"Title":     "지도",
		"Base":      "/api/v1/map/s1",
		"Container": "map",
		"KakaoKey":  "k",
		"Signals":   `{"unit":0}`,
		"Panel":     "",
	})
	require.NoError(t, err)
	assert.Contains(t, html, `data-init="@get('/api/v1/map/s1/stream')"`)
	assert.Contains(t, html, `<div id="map"></div>`)
	assert.Contains(t, html, "appkey=k")
}

func TestReload(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	// No templates in the directory: the old set stays.
	require.Error(t, r.Reload(t.TempDir()))
	_, err = r.Render("empty-state", map[string]string{"Title": "a", "Message": "b"})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.html"), []byte(`{{define "hello"}}hi {{.}}{{end}}`), 0o644))
	require.NoError(t, r.Reload(dir))
	html, err := r.Render("hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", html)

	_, err = r.Render("empty-state", nil)
	assert.Error(t, err)
}

func TestDictArguments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.html"),
		[]byte(`{{define "odd"}}{{template "kv" (dict "a")}}{{end}}{{define "kv"}}{{.a}}{{end}}`), 0o644))
	r, err := New(os.DirFS(dir))
	require.NoError(t, err)

	_, err = r.Render("odd", nil)
	assert.ErrorContains(t, err, "odd number")
}
