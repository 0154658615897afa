package handlers

import (
	"net/http"
	"runtime"
	"testing"

	"tubeplayer/internal/cache"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/startup"
)

type staticClients int

func (c staticClients) Clients() int { return int(c) }

func TestHealthCheckHealthy(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlaylist(t, "One", "aaaaaaaaaaa", "bbbbbbbbbbb")

	cm, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	env.h.cache = cm
	env.h.clients = staticClients(3)

	w := do(t, env.h.HealthCheck, http.MethodGet, "/health", nil, nil)
	expectStatus(t, w, http.StatusOK)
	var resp HealthResponse
	decode(t, w, &resp)

	if resp.Status != statusHealthy || resp.Error != "" {
		t.Errorf("status = %q (%s)", resp.Status, resp.Error)
	}
	if resp.Playlists != 1 || resp.Videos != 2 {
		t.Errorf("catalog counts = %d/%d", resp.Playlists, resp.Videos)
	}
	if resp.EventClients != 3 {
		t.Errorf("event clients = %d", resp.EventClients)
	}
	if resp.PlayerState != "Idle" {
		t.Errorf("player state = %q", resp.PlayerState)
	}
	if resp.Version != startup.Version || resp.GoVersion != runtime.Version() {
		t.Errorf("version info = %q %q", resp.Version, resp.GoVersion)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	t.Run("engine stopped", func(t *testing.T) {
		env := newTestEnv(t)
		env.engine.err = playback.ErrClosed

		w := do(t, env.h.HealthCheck, http.MethodGet, "/health", nil, nil)
		expectStatus(t, w, http.StatusServiceUnavailable)
		var resp HealthResponse
		decode(t, w, &resp)
		if resp.Status != statusDegraded || resp.Error == "" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("catalog closed", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.Close()

		w := do(t, env.h.HealthCheck, http.MethodGet, "/health", nil, nil)
		expectStatus(t, w, http.StatusServiceUnavailable)
	})
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t)

	w := do(t, env.h.LivenessCheck, http.MethodGet, "/livez", nil, nil)
	expectStatus(t, w, http.StatusOK)
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "alive" {
		t.Errorf("body = %v", body)
	}

	w = do(t, env.h.LivenessCheck, http.MethodHead, "/livez", nil, nil)
	expectStatus(t, w, http.StatusOK)
	if w.Body.Len() != 0 {
		t.Errorf("HEAD returned a body: %q", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t)
	w := do(t, env.h.GetVersion, http.MethodGet, "/api/version", nil, nil)
	expectStatus(t, w, http.StatusOK)

	var info startup.BuildInfo
	decode(t, w, &info)
	if info.Version != startup.Version {
		t.Errorf("version = %q, want %q", info.Version, startup.Version)
	}
}
