package handlers

import (
	"net/http"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/resolver"
)

type playRequest struct {
	PlaylistID int64   `json:"playlistId"`
	VideoIDs   []int64 `json:"videoIds"`
	Shuffle    bool    `json:"shuffle"`
}

// queueVideos loads the catalog videos named by a play or append request.
func (h *Handlers) queueVideos(r *http.Request, req playRequest) ([]playback.Video, error) {
	if req.PlaylistID > 0 {
		videos, err := h.catalog.PlaylistVideos(r.Context(), req.PlaylistID, catalog.VideoOrder{})
		if err != nil {
			return nil, err
		}
		if len(videos) == 0 {
			if _, err := h.catalog.Playlist(r.Context(), req.PlaylistID); err != nil {
				return nil, err
			}
		}
		return playback.FromCatalog(videos), nil
	}

	videos := make([]catalog.Video, 0, len(req.VideoIDs))
	for _, id := range req.VideoIDs {
		v, err := h.catalog.Video(r.Context(), id)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return playback.FromCatalog(videos), nil
}

// Play starts a new queue from a playlist or a list of videos
func (h *Handlers) Play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	videos, err := h.queueVideos(r, req)
	if err != nil {
		writeError(w, "play", err)
		return
	}
	if err := h.engine.Play(videos, req.Shuffle); err != nil {
		writeError(w, "play", err)
		return
	}
	h.writeStatus(w)
}

// Append adds videos to the running queue
func (h *Handlers) Append(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	videos, err := h.queueVideos(r, req)
	if err != nil {
		writeError(w, "append", err)
		return
	}
	if len(videos) == 0 {
		writeJSONError(w, "no videos to append", http.StatusBadRequest)
		return
	}
	if err := h.engine.Append(videos...); err != nil {
		writeError(w, "append", err)
		return
	}
	h.writeStatus(w)
}

// PlayerStatus returns the engine snapshot
func (h *Handlers) PlayerStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeStatus(w)
}

func (h *Handlers) writeStatus(w http.ResponseWriter) {
	st, err := h.engine.Status()
	if err != nil {
		writeError(w, "player status", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, st)
}

// playerAction adapts a no-argument engine call to a handler.
func (h *Handlers) playerAction(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := fn(); err != nil {
			writeError(w, name, err)
			return
		}
		h.writeStatus(w)
	}
}

func (h *Handlers) Stop() http.HandlerFunc   { return h.playerAction("stop", h.engine.Stop) }
func (h *Handlers) Next() http.HandlerFunc   { return h.playerAction("next", h.engine.Next) }
func (h *Handlers) Prev() http.HandlerFunc   { return h.playerAction("prev", h.engine.Prev) }
func (h *Handlers) Pause() http.HandlerFunc  { return h.playerAction("pause", h.engine.Pause) }
func (h *Handlers) Resume() http.HandlerFunc { return h.playerAction("resume", h.engine.Resume) }

type playerSettings struct {
	Volume  *int    `json:"volume"`
	Repeat  *bool   `json:"repeat"`
	Quality *string `json:"quality"`
}

// UpdatePlayer changes volume, repeat or quality
func (h *Handlers) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req playerSettings
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Quality != nil {
		q, err := resolver.ParseQuality(*req.Quality)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.engine.SetQuality(q); err != nil {
			writeError(w, "set quality", err)
			return
		}
	}
	if req.Repeat != nil {
		if err := h.engine.SetRepeat(*req.Repeat); err != nil {
			writeError(w, "set repeat", err)
			return
		}
	}
	if req.Volume != nil {
		if err := h.engine.SetVolume(*req.Volume); err != nil {
			writeError(w, "set volume", err)
			return
		}
	}
	h.writeStatus(w)
}

// Interrupt forwards a telephony state: ringing and offhook suspend
// playback, idle resumes it.
func (h *Handlers) Interrupt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	state, err := playback.ParsePhoneState(req.State)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.Interrupt(state); err != nil {
		writeError(w, "interrupt", err)
		return
	}
	h.writeStatus(w)
}
