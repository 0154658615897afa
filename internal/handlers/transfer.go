package handlers

import (
	"context"
	"net/http"
	"path/filepath"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/logging"
)

type transferRequest struct {
	Path string `json:"path"`
}

func (h *Handlers) transferPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	if req.Path == "" || !filepath.IsAbs(req.Path) {
		writeJSONError(w, "an absolute path is required", http.StatusBadRequest)
		return "", false
	}
	return filepath.Clean(req.Path), true
}

// VerifyCatalog checks whether a file is a usable catalog
func (h *Handlers) VerifyCatalog(w http.ResponseWriter, r *http.Request) {
	path, ok := h.transferPath(w, r)
	if !ok {
		return
	}
	if err := catalog.Verify(r.Context(), path); err != nil {
		writeError(w, "verify "+path, err)
		return
	}
	writeJSONStatus(w, "valid")
}

// MergeCatalog adds the playlists of another catalog file
func (h *Handlers) MergeCatalog(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, "merge", h.catalog.Merge)
}

// ImportCatalog replaces the catalog with another file
func (h *Handlers) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, "import", h.catalog.Import)
}

// ExportCatalog copies the catalog to a file
func (h *Handlers) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, "export", h.catalog.Export)
}

func (h *Handlers) transfer(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) error) {
	path, ok := h.transferPath(w, r)
	if !ok {
		return
	}
	// No play timestamp or volume write may race the file swap.
	if err := h.engine.Stop(); err != nil {
		writeError(w, action+": stop playback", err)
		return
	}
	if err := fn(r.Context(), path); err != nil {
		writeError(w, action+" "+path, err)
		return
	}
	logging.Info("Catalog %s completed: %s", action, path)

	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, action, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}
