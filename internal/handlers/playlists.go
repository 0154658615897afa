package handlers

import (
	"net/http"
	"strconv"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/resolver"
)

type playlistRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ListPlaylists returns all playlists ordered by title
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.catalog.Playlists(r.Context())
	if err != nil {
		writeError(w, "list playlists", err)
		return
	}
	if playlists == nil {
		playlists = []catalog.Playlist{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, playlists)
}

// CreatePlaylist creates a playlist with a unique title
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == nil || *req.Title == "" {
		writeJSONError(w, "title is required", http.StatusBadRequest)
		return
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	id, err := h.catalog.CreatePlaylist(r.Context(), *req.Title, description)
	if err != nil {
		writeError(w, "create playlist", err)
		return
	}
	p, err := h.catalog.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, "create playlist", err)
		return
	}
	logging.Info("Created playlist %d (%s)", id, p.Title)
	writeJSONResponse(w, http.StatusCreated, p)
}

// GetPlaylist returns one playlist
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.catalog.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, "get playlist", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, p)
}

// UpdatePlaylist changes the title or description of a playlist
func (h *Handlers) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var updates []catalog.PlaylistUpdate
	if req.Title != nil {
		if *req.Title == "" {
			writeJSONError(w, "title must not be empty", http.StatusBadRequest)
			return
		}
		updates = append(updates, catalog.SetPlaylistTitle(*req.Title))
	}
	if req.Description != nil {
		updates = append(updates, catalog.SetPlaylistDescription(*req.Description))
	}

	if _, err := h.catalog.UpdatePlaylist(r.Context(), id, updates...); err != nil {
		writeError(w, "update playlist", err)
		return
	}
	p, err := h.catalog.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, "update playlist", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, p)
}

// DeletePlaylist removes a playlist and releases its videos
func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := h.catalog.DeletePlaylist(r.Context(), id)
	if err != nil {
		writeError(w, "delete playlist", err)
		return
	}
	if n == 0 {
		writeJSONError(w, "playlist not found", http.StatusNotFound)
		return
	}
	logging.Info("Deleted playlist %d", id)
	writeJSONStatus(w, "deleted")
}

// ListPlaylistVideos returns the videos of a playlist. The optional sort
// and desc query parameters order the result.
func (h *Handlers) ListPlaylistVideos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, ok := parseOrder(r)
	if !ok {
		writeJSONError(w, "invalid sort key", http.StatusBadRequest)
		return
	}
	if _, err := h.catalog.Playlist(r.Context(), id); err != nil {
		writeError(w, "list playlist videos", err)
		return
	}

	videos, err := h.catalog.PlaylistVideos(r.Context(), id, order)
	if err != nil {
		writeError(w, "list playlist videos", err)
		return
	}
	if videos == nil {
		videos = []catalog.Video{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, videos)
}

type addVideoRequest struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Playtime     int    `json:"playtime"`
	Volume       *int   `json:"volume"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// AddPlaylistVideo adds a video to a playlist. videoId may be a link. A
// missing title is filled in from the remote metadata.
func (h *Handlers) AddPlaylistVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req addVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	videoID, err := resolver.ParseVideoID(req.VideoID)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	nv := catalog.NewVideo{
		VideoID:     videoID,
		Title:       req.Title,
		Description: req.Description,
		Playtime:    req.Playtime,
		Volume:      catalog.InvalidVolume,
	}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 100 {
			writeJSONError(w, "volume must be between 0 and 100", http.StatusBadRequest)
			return
		}
		nv.Volume = *req.Volume
	}

	thumbnailURL := req.ThumbnailURL
	if nv.Title == "" {
		if h.lookup == nil {
			writeJSONError(w, "title is required", http.StatusBadRequest)
			return
		}
		md, err := h.lookup.Lookup(r.Context(), videoID)
		if err != nil {
			writeError(w, "lookup "+videoID, err)
			return
		}
		nv.Title = md.Title
		if nv.Description == "" {
			nv.Description = md.Description
		}
		if nv.Playtime == 0 {
			nv.Playtime = int(md.Duration.Seconds())
		}
		if thumbnailURL == "" {
			thumbnailURL = md.ThumbnailURL
		}
	}
	if thumbnailURL != "" && h.thumbs != nil {
		thumb, err := h.thumbs.Fetch(r.Context(), thumbnailURL)
		if err != nil {
			logging.Warn("Thumbnail of %s unavailable: %v", videoID, err)
		} else {
			nv.Thumbnail = thumb
		}
	}

	if err := h.catalog.AddVideoToPlaylist(r.Context(), id, nv); err != nil {
		writeError(w, "add video", err)
		return
	}
	v, err := h.catalog.VideoByVideoID(r.Context(), videoID)
	if err != nil {
		writeError(w, "add video", err)
		return
	}
	logging.Info("Added %s to playlist %d", videoID, id)
	writeJSONResponse(w, http.StatusCreated, v)
}

// AddPlaylistVideoRef adds an existing catalog video to a playlist
func (h *Handlers) AddPlaylistVideoRef(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	videoRowID, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.catalog.AddVideoRefToPlaylist(r.Context(), id, videoRowID); err != nil {
		writeError(w, "add video reference", err)
		return
	}
	writeJSONStatus(w, "added")
}

// RemovePlaylistVideo removes a video from a playlist; the video is
// deleted once no playlist references it.
func (h *Handlers) RemovePlaylistVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	videoRowID, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := h.catalog.RemoveVideoFromPlaylist(r.Context(), id, videoRowID)
	if err != nil {
		writeError(w, "remove video", err)
		return
	}
	if n == 0 {
		writeJSONError(w, "video not in playlist", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, "removed")
}

// GetPlaylistThumbnail serves the stored playlist thumbnail
func (h *Handlers) GetPlaylistThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.catalog.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, "playlist thumbnail", err)
		return
	}
	writeThumbnail(w, p.Thumbnail)
}

func writeThumbnail(w http.ResponseWriter, thumb []byte) {
	if len(thumb) == 0 {
		writeJSONError(w, "no thumbnail", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(thumb); err != nil {
		logging.Debug("thumbnail write: %v", err)
	}
}

func parseOrder(r *http.Request) (catalog.VideoOrder, bool) {
	key, ok := catalog.ParseSortKey(r.URL.Query().Get("sort"))
	if !ok {
		return catalog.VideoOrder{}, false
	}
	desc, _ := strconv.ParseBool(r.URL.Query().Get("desc"))
	return catalog.VideoOrder{Key: key, Desc: desc}, true
}
