// Package startup loads configuration and owns the startup and shutdown
// log output of the tubeplayer daemon.
//
// # Configuration
//
// [LoadConfig] reads an optional .env file from the working directory and
// then the process environment. Variables already set in the environment
// win over the .env file.
//
//   - DATABASE_DIR: directory holding tubeplayer.db (default: /data)
//   - CACHE_DIR: cache root; videos live in CACHE_DIR/videos (default: /cache)
//   - PORT: control API port (default: 59923)
//   - METRICS_PORT: Prometheus port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - QUALITY: low or normal (default: normal)
//   - REPEAT: restart the queue after the last video (default: false)
//   - AUTO_STOP: stop playback after this duration, 0 disables (default: 0)
//   - PLAYER_RETRY: recovery retries per session (default: 3)
//   - NETWORK_RETRY: prefetch retries per job (default: 3)
//   - CACHING_TRIGGER_POINT: buffering percent that starts the prefetch (default: 100)
//   - DEFAULT_VOLUME: volume stored for new videos (default: 50)
//   - RECOVERY_DELAY: backoff before a recovery retry (default: 500ms)
//   - OFFLINE_RETRY_DELAY: backoff when the network is down (default: 1s)
//   - FFPLAY_PATH, FFPROBE_PATH: player backend binaries
//   - NETWORK_PROBE_ADDR: host:port dialed to decide reachability
//   - WAKE_LOCK: none or systemd (default: none)
//   - RESOLVER_RATE: resolver requests per second (default: 2)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Logging helpers
//
// The Log* functions print the section banners seen at startup and
// shutdown so that every component initializes with the same layout.
package startup
