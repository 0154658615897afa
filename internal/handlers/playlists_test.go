package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"testing"

	"tubeplayer/internal/catalog"
)

func TestCreateAndListPlaylists(t *testing.T) {
	env := newTestEnv(t)

	w := do(t, env.h.CreatePlaylist, http.MethodPost, "/api/playlists", nil,
		map[string]string{"title": "Rock", "description": "loud"})
	expectStatus(t, w, http.StatusCreated)
	var created catalog.Playlist
	decode(t, w, &created)
	if created.ID == 0 || created.Title != "Rock" || created.Description != "loud" {
		t.Errorf("created = %+v", created)
	}

	w = do(t, env.h.CreatePlaylist, http.MethodPost, "/api/playlists", nil,
		map[string]string{"title": "Rock"})
	expectStatus(t, w, http.StatusConflict)

	w = do(t, env.h.CreatePlaylist, http.MethodPost, "/api/playlists", nil, map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)

	do(t, env.h.CreatePlaylist, http.MethodPost, "/api/playlists", nil, map[string]string{"title": "Ambient"})

	w = do(t, env.h.ListPlaylists, http.MethodGet, "/api/playlists", nil, nil)
	expectStatus(t, w, http.StatusOK)
	var list []catalog.Playlist
	decode(t, w, &list)
	if len(list) != 2 || list[0].Title != "Ambient" || list[1].Title != "Rock" {
		t.Errorf("playlists = %+v", list)
	}
}

func TestListPlaylistsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	w := do(t, env.h.ListPlaylists, http.MethodGet, "/api/playlists", nil, nil)
	expectStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestCreatePlaylistRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	w := do(t, env.h.CreatePlaylist, http.MethodPost, "/api/playlists", nil,
		map[string]string{"title": "x", "colour": "red"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestGetUpdateDeletePlaylist(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedPlaylist(t, "Jazz", "aaaaaaaaaaa", "bbbbbbbbbbb")
	other := env.seedPlaylist(t, "Blues")
	vars := map[string]string{"id": strconv.FormatInt(id, 10)}

	w := do(t, env.h.GetPlaylist, http.MethodGet, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	var p catalog.Playlist
	decode(t, w, &p)
	if p.Size != 2 {
		t.Errorf("size = %d, want 2", p.Size)
	}

	w = do(t, env.h.UpdatePlaylist, http.MethodPatch, "/", vars, map[string]string{"title": "Blues"})
	expectStatus(t, w, http.StatusConflict)

	w = do(t, env.h.UpdatePlaylist, http.MethodPatch, "/", vars, map[string]string{"title": "Cool Jazz", "description": "late"})
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &p)
	if p.Title != "Cool Jazz" || p.Description != "late" {
		t.Errorf("updated = %+v", p)
	}

	w = do(t, env.h.DeletePlaylist, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	w = do(t, env.h.DeletePlaylist, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusNotFound)
	w = do(t, env.h.GetPlaylist, http.MethodGet, "/", vars, nil)
	expectStatus(t, w, http.StatusNotFound)

	st, err := env.store.Stats(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if st.Playlists != 1 || st.Videos != 0 {
		t.Errorf("stats after delete = %+v (kept playlist %d)", st, other)
	}
}

func TestPlaylistInvalidID(t *testing.T) {
	env := newTestEnv(t)
	for _, raw := range []string{"abc", "0", "-3"} {
		w := do(t, env.h.GetPlaylist, http.MethodGet, "/", map[string]string{"id": raw}, nil)
		expectStatus(t, w, http.StatusBadRequest)
	}
}

func TestListPlaylistVideosOrder(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedPlaylist(t, "Mix", "ccccccccccc", "aaaaaaaaaaa", "bbbbbbbbbbb")
	vars := map[string]string{"id": strconv.FormatInt(id, 10)}

	w := do(t, env.h.ListPlaylistVideos, http.MethodGet, "/?sort=title&desc=true", vars, nil)
	expectStatus(t, w, http.StatusOK)
	var videos []catalog.Video
	decode(t, w, &videos)
	want := []string{"ccccccccccc", "bbbbbbbbbbb", "aaaaaaaaaaa"}
	if len(videos) != len(want) {
		t.Fatalf("got %d videos", len(videos))
	}
	for i, v := range videos {
		if v.VideoID != want[i] {
			t.Errorf("videos[%d] = %s, want %s", i, v.VideoID, want[i])
		}
	}

	w = do(t, env.h.ListPlaylistVideos, http.MethodGet, "/?sort=colour", vars, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, env.h.ListPlaylistVideos, http.MethodGet, "/", map[string]string{"id": "999"}, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAddPlaylistVideoFillsMetadata(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedPlaylist(t, "New")
	vars := map[string]string{"id": strconv.FormatInt(id, 10)}

	w := do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars,
		map[string]string{"videoId": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	expectStatus(t, w, http.StatusCreated)
	var v catalog.Video
	decode(t, w, &v)
	if v.VideoID != "dQw4w9WgXcQ" || v.Title != "Looked up" || v.Playtime != 215 {
		t.Errorf("video = %+v", v)
	}
	if v.Volume != catalog.DefaultVideoVolume {
		t.Errorf("volume = %d, want default", v.Volume)
	}
	if len(v.Thumbnail) == 0 {
		t.Error("thumbnail was not stored")
	}
	if len(env.thumbs.urls) != 1 || env.thumbs.urls[0] != "https://img.example/x.jpg" {
		t.Errorf("thumbnail urls = %v", env.thumbs.urls)
	}

	w = do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars,
		map[string]string{"videoId": "dQw4w9WgXcQ", "title": "again"})
	expectStatus(t, w, http.StatusConflict)
}

func TestAddPlaylistVideoWithTitleSkipsLookup(t *testing.T) {
	env := newTestEnv(t)
	env.lookup.err = errors.New("offline")
	env.thumbs.err = errors.New("offline")
	id := env.seedPlaylist(t, "Manual")
	vars := map[string]string{"id": strconv.FormatInt(id, 10)}

	w := do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars, map[string]interface{}{
		"videoId":      "aaaaaaaaaaa",
		"title":        "Given",
		"volume":       80,
		"thumbnailUrl": "https://img.example/y.jpg",
	})
	expectStatus(t, w, http.StatusCreated)
	var v catalog.Video
	decode(t, w, &v)
	if v.Title != "Given" || v.Volume != 80 || len(v.Thumbnail) != 0 {
		t.Errorf("video = %+v", v)
	}

	w = do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars, map[string]string{"videoId": "bbbbbbbbbbb"})
	expectStatus(t, w, http.StatusInternalServerError)

	w = do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars,
		map[string]interface{}{"videoId": "ccccccccccc", "title": "x", "volume": 101})
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", vars, map[string]string{"videoId": "short"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAddPlaylistVideoUnknownPlaylist(t *testing.T) {
	env := newTestEnv(t)
	w := do(t, env.h.AddPlaylistVideo, http.MethodPost, "/", map[string]string{"id": "42"},
		map[string]string{"videoId": "aaaaaaaaaaa", "title": "t"})
	expectStatus(t, w, http.StatusNotFound)
}

func TestVideoRefAndRemove(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedPlaylist(t, "First", "aaaaaaaaaaa")
	second := env.seedPlaylist(t, "Second")
	row := env.videoRow(t, "aaaaaaaaaaa")
	vars := map[string]string{
		"id":    strconv.FormatInt(second, 10),
		"video": strconv.FormatInt(row, 10),
	}

	w := do(t, env.h.AddPlaylistVideoRef, http.MethodPut, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	w = do(t, env.h.AddPlaylistVideoRef, http.MethodPut, "/", vars, nil)
	expectStatus(t, w, http.StatusConflict)

	v, err := env.store.Video(t.Context(), row)
	if err != nil {
		t.Fatal(err)
	}
	if v.RefCount != 2 {
		t.Errorf("refcount = %d, want 2", v.RefCount)
	}

	w = do(t, env.h.RemovePlaylistVideo, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	w = do(t, env.h.RemovePlaylistVideo, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusNotFound)

	vars["id"] = strconv.FormatInt(first, 10)
	w = do(t, env.h.RemovePlaylistVideo, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	if _, err := env.store.Video(t.Context(), row); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("video should be gone once unreferenced, got %v", err)
	}
}

func TestPlaylistThumbnail(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedPlaylist(t, "Pics")
	vars := map[string]string{"id": strconv.FormatInt(id, 10)}

	w := do(t, env.h.GetPlaylistThumbnail, http.MethodGet, "/", vars, nil)
	expectStatus(t, w, http.StatusNotFound)

	if _, err := env.store.UpdatePlaylist(t.Context(), id, catalog.SetPlaylistThumbnail([]byte("jpeg"))); err != nil {
		t.Fatal(err)
	}
	w = do(t, env.h.GetPlaylistThumbnail, http.MethodGet, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "jpeg" {
		t.Errorf("body = %q", w.Body.String())
	}
}
