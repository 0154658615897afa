package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/resolver"
)

// ListVideos returns every catalog video, or those whose title contains all
// words of the q parameter.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	var (
		videos []catalog.Video
		err    error
	)
	if q := strings.Fields(r.URL.Query().Get("q")); len(q) > 0 {
		videos, err = h.catalog.SearchVideos(r.Context(), q...)
	} else {
		order, ok := parseOrder(r)
		if !ok {
			writeJSONError(w, "invalid sort key", http.StatusBadRequest)
			return
		}
		videos, err = h.catalog.Videos(r.Context(), order)
	}
	if err != nil {
		writeError(w, "list videos", err)
		return
	}
	if videos == nil {
		videos = []catalog.Video{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, videos)
}

// GetVideo returns one video by row id
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := h.catalog.Video(r.Context(), id)
	if err != nil {
		writeError(w, "get video", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v)
}

// GetVideoByVideoID returns one video by its external id
func (h *Handlers) GetVideoByVideoID(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.VideoByVideoID(r.Context(), mux.Vars(r)["videoId"])
	if err != nil {
		writeError(w, "get video", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v)
}

type videoUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Volume      *int    `json:"volume"`
	Rate        *int    `json:"rate"`
	Genre       *string `json:"genre"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
}

func (req videoUpdateRequest) updates() ([]catalog.VideoUpdate, string) {
	var updates []catalog.VideoUpdate
	if req.Title != nil {
		if *req.Title == "" {
			return nil, "title must not be empty"
		}
		updates = append(updates, catalog.SetVideoTitle(*req.Title))
	}
	if req.Description != nil {
		updates = append(updates, catalog.SetVideoDescription(*req.Description))
	}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 100 {
			return nil, "volume must be between 0 and 100"
		}
		updates = append(updates, catalog.SetVideoVolume(*req.Volume))
	}
	if req.Rate != nil {
		updates = append(updates, catalog.SetVideoRate(*req.Rate))
	}
	if req.Genre != nil {
		updates = append(updates, catalog.SetVideoGenre(*req.Genre))
	}
	if req.Artist != nil {
		updates = append(updates, catalog.SetVideoArtist(*req.Artist))
	}
	if req.Album != nil {
		updates = append(updates, catalog.SetVideoAlbum(*req.Album))
	}
	return updates, ""
}

// UpdateVideo changes stored video fields
func (h *Handlers) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req videoUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	updates, problem := req.updates()
	if problem != "" {
		writeJSONError(w, problem, http.StatusBadRequest)
		return
	}

	if _, err := h.catalog.UpdateVideo(r.Context(), id, updates...); err != nil {
		writeError(w, "update video", err)
		return
	}
	v, err := h.catalog.Video(r.Context(), id)
	if err != nil {
		writeError(w, "update video", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v)
}

// VideoPlaylists lists the playlists that contain a video
func (h *Handlers) VideoPlaylists(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	playlists, err := h.catalog.PlaylistsContainingVideo(r.Context(), id)
	if err != nil {
		writeError(w, "video playlists", err)
		return
	}
	if playlists == nil {
		playlists = []catalog.Playlist{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, playlists)
}

// RemoveVideo removes a video from every playlist, or from every playlist
// but the one named by the except parameter.
func (h *Handlers) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var n int64
	if except := r.URL.Query().Get("except"); except != "" {
		keep, perr := parsePositive(except)
		if perr != nil {
			writeJSONError(w, "invalid except playlist", http.StatusBadRequest)
			return
		}
		n, err = h.catalog.RemoveVideoExceptPlaylist(r.Context(), keep, id)
	} else {
		n, err = h.catalog.RemoveVideoFromAllPlaylists(r.Context(), id)
	}
	if err != nil {
		writeError(w, "remove video", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"removed": n})
}

// GetVideoThumbnail serves the stored video thumbnail
func (h *Handlers) GetVideoThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "video")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := h.catalog.Video(r.Context(), id)
	if err != nil {
		writeError(w, "video thumbnail", err)
		return
	}
	writeThumbnail(w, v.Thumbnail)
}

type lookupResponse struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	Playtime     int    `json:"playtime"`
	ThumbnailURL string `json:"thumbnailUrl"`
	InCatalog    bool   `json:"inCatalog"`
}

// LookupVideo returns remote metadata of a video id or link
func (h *Handlers) LookupVideo(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeJSONError(w, "lookup is not available", http.StatusServiceUnavailable)
		return
	}
	videoID, err := resolver.ParseVideoID(r.URL.Query().Get("id"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	md, err := h.lookup.Lookup(r.Context(), videoID)
	if err != nil {
		writeError(w, "lookup "+videoID, err)
		return
	}
	inCatalog, err := h.catalog.ContainsVideo(r.Context(), videoID)
	if err != nil {
		writeError(w, "lookup "+videoID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, lookupResponse{
		VideoID:      videoID,
		Title:        md.Title,
		Author:       md.Author,
		Description:  md.Description,
		Playtime:     int(md.Duration.Seconds()),
		ThumbnailURL: md.ThumbnailURL,
		InCatalog:    inCatalog,
	})
}
