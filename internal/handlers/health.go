package handlers

import (
	"net/http"
	"runtime"
	"time"

	"tubeplayer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// Catalog and cache
	Playlists   int   `json:"playlists"`
	Videos      int   `json:"videos"`
	CachedFiles int   `json:"cachedFiles"`
	CacheBytes  int64 `json:"cacheBytes"`

	// Playback
	PlayerState  string `json:"playerState"`
	EventClients int    `json:"eventClients"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports catalog, cache and engine health. It returns 503 when
// the catalog or the engine cannot answer.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		response.Status = statusDegraded
		response.Error = "catalog: " + err.Error()
	}
	response.Playlists, response.Videos = stats.Playlists, stats.Videos

	if h.cache != nil {
		if files, bytes, err := h.cache.Usage(); err == nil {
			response.CachedFiles, response.CacheBytes = files, bytes
		}
	}
	if h.clients != nil {
		response.EventClients = h.clients.Clients()
	}

	st, err := h.engine.Status()
	if err != nil {
		response.Status = statusDegraded
		response.Error = "playback: " + err.Error()
	} else {
		response.PlayerState = st.State.String()
	}

	code := http.StatusOK
	if response.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
