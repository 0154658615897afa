package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tubeplayer/internal/catalog"
)

func (h *Handlers) watcher(r *http.Request) *catalog.Watcher {
	switch mux.Vars(r)["kind"] {
	case "playlists":
		return h.catalog.PlaylistWatcher()
	case "videos":
		return h.catalog.VideoWatcher()
	}
	return nil
}

// RegisterWatcher creates a change watcher and returns its key
func (h *Handlers) RegisterWatcher(w http.ResponseWriter, r *http.Request) {
	wt := h.watcher(r)
	if wt == nil {
		writeJSONError(w, "unknown watcher kind", http.StatusNotFound)
		return
	}
	key := uuid.NewString()
	wt.Register(key)
	writeJSONResponse(w, http.StatusCreated, map[string]string{"key": key})
}

// PollWatcher reports whether the watched table changed since the key was
// registered or last reset. reset=true clears the flag after reading.
func (h *Handlers) PollWatcher(w http.ResponseWriter, r *http.Request) {
	wt := h.watcher(r)
	if wt == nil {
		writeJSONError(w, "unknown watcher kind", http.StatusNotFound)
		return
	}
	key := mux.Vars(r)["key"]
	if !wt.IsRegistered(key) {
		writeJSONError(w, "unknown watcher key", http.StatusNotFound)
		return
	}
	updated := wt.IsUpdated(key)
	if updated && r.URL.Query().Get("reset") == "true" {
		wt.Register(key)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"updated": updated})
}

// UnregisterWatcher drops a watcher key
func (h *Handlers) UnregisterWatcher(w http.ResponseWriter, r *http.Request) {
	wt := h.watcher(r)
	if wt == nil {
		writeJSONError(w, "unknown watcher kind", http.StatusNotFound)
		return
	}
	wt.Unregister(mux.Vars(r)["key"])
	writeJSONStatus(w, "unregistered")
}
