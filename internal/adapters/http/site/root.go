// Package site serves the embedded dashboard.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
)

// Error constants
var (
	ErrServe = errors.New("dashboard serve failed")
)

// Register attaches the dashboard routes to mux.
//
//	GET /          -> dashboard page
//	GET /static/*  -> dashboard assets
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	root := NewRootHandler()
	mux.HandleFunc("GET /{$}", root.HandleRoot)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(FS())))
}

// RootHandler handles root path requests
type RootHandler struct {
	files fs.FS
}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{files: staticRoot()}
}

// HandleRoot serves the dashboard page.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(h.files, "index.html")
	if err != nil {
		http.Error(w, fmt.Errorf("%w: %w", ErrServe, err).Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}
