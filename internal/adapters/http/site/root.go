// Package site serves the embedded stats dashboard.
package site

import (
	"context"
	"net/http"
)

// Register attaches the dashboard routes to mux:
//
//	GET /          -> dashboard page
//	GET /static/*  -> page assets
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.FileServer(FS())
	mux.Handle("GET /static/", http.StripPrefix("/static/", files))
	mux.HandleFunc("GET /{$}", NewRootHandler().HandleRoot)
}

// RootHandler serves the dashboard index page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
