package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed web/templates/*.html web/static web/manifest.json web/sw.js
var webFS embed.FS

type pageData struct {
	Title       string
	Description string
	Path        string
}

// PageHandler renders the placeholder pages and serves the embedded static
// and PWA assets. Access control happens in the route guard in front of it.
type PageHandler struct {
	tmpl   *template.Template
	assets fs.FS
	static http.Handler
}

func NewPageHandler() (*PageHandler, error) {
	tmpl, err := template.ParseFS(webFS, "web/templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	assets, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, fmt.Errorf("open embedded assets: %w", err)
	}

	return &PageHandler{
		tmpl:   tmpl,
		assets: assets,
		static: http.FileServerFS(assets),
	}, nil
}

func (h *PageHandler) Page(title string, description string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = h.tmpl.Execute(w, pageData{Title: title, Description: description, Path: r.URL.Path})
	}
}

// Static serves /static/*. The request path maps directly onto the embedded
// web/ directory.
func (h *PageHandler) Static(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}

func (h *PageHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, h.assets, "manifest.json")
}

func (h *PageHandler) ServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFileFS(w, r, h.assets, "sw.js")
}
