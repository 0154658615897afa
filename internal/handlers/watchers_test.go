package handlers

import (
	"net/http"
	"testing"
)

func TestWatcherLifecycle(t *testing.T) {
	env := newTestEnv(t)
	kind := map[string]string{"kind": "playlists"}

	w := do(t, env.h.RegisterWatcher, http.MethodPost, "/api/watchers/playlists", kind, nil)
	expectStatus(t, w, http.StatusCreated)
	var reg map[string]string
	decode(t, w, &reg)
	key := reg["key"]
	if key == "" {
		t.Fatal("no watcher key returned")
	}
	vars := map[string]string{"kind": "playlists", "key": key}

	poll := func(target string) bool {
		t.Helper()
		w := do(t, env.h.PollWatcher, http.MethodGet, target, vars, nil)
		expectStatus(t, w, http.StatusOK)
		var got map[string]bool
		decode(t, w, &got)
		return got["updated"]
	}

	if poll("/") {
		t.Error("fresh watcher reports an update")
	}
	env.seedPlaylist(t, "Changed")
	if !poll("/") {
		t.Error("playlist creation not reported")
	}
	if !poll("/?reset=true") {
		t.Error("reading must not clear the flag")
	}
	if poll("/") {
		t.Error("reset=true did not clear the flag")
	}

	w = do(t, env.h.UnregisterWatcher, http.MethodDelete, "/", vars, nil)
	expectStatus(t, w, http.StatusOK)
	w = do(t, env.h.PollWatcher, http.MethodGet, "/", vars, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestWatcherKindsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedPlaylist(t, "Base", "aaaaaaaaaaa")

	w := do(t, env.h.RegisterWatcher, http.MethodPost, "/", map[string]string{"kind": "videos"}, nil)
	expectStatus(t, w, http.StatusCreated)
	var reg map[string]string
	decode(t, w, &reg)

	if _, err := env.store.UpdatePlaylist(t.Context(), id); err != nil {
		t.Fatal(err)
	}
	w = do(t, env.h.PollWatcher, http.MethodGet, "/", map[string]string{"kind": "videos", "key": reg["key"]}, nil)
	expectStatus(t, w, http.StatusOK)
	var got map[string]bool
	decode(t, w, &got)
	if got["updated"] {
		t.Error("video watcher fired without a video change")
	}
}

func TestWatcherUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	for _, h := range []http.HandlerFunc{env.h.RegisterWatcher, env.h.PollWatcher, env.h.UnregisterWatcher} {
		w := do(t, h, http.MethodGet, "/", map[string]string{"kind": "tags", "key": "x"}, nil)
		expectStatus(t, w, http.StatusNotFound)
	}
}
