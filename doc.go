// Package main provides the entry point for the TubePlayer daemon.
//
// TubePlayer keeps a local catalog of music videos organised in playlists
// and plays them through ffplay, caching each video on disk while it plays
// so that the next session can start from the local copy.
//
// # Application Lifecycle
//
// The daemon follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads the environment (and an optional .env
//     file) and validates the database and cache directories
//  2. Catalog Initialization: Opens the SQLite catalog, creating the schema
//     on first start
//  3. Component Initialization:
//     - Video Cache: One file per video under CACHE_DIR/videos
//     - Resolver: Turns video ids into stream URLs, rate limited
//     - Prefetcher: Downloads the next video in the background
//     - Player: Checks for ffplay and ffprobe
//     - Playback Engine: Sequences the queue through the player
//     - Event Hub: Pushes engine events to WebSocket clients
//     - Metrics Collector: Samples catalog and cache totals
//  4. HTTP Server Setup: Configures routes and middleware
//  5. Graceful Shutdown: Handles SIGINT/SIGTERM and stops all components
//
// # HTTP Server
//
// The daemon runs two HTTP servers:
//
//  1. Main Server (default port 59923):
//     - Control API under /api (playlists, videos, watchers, catalog
//       files, player)
//     - Player events on /ws
//     - Health and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
//   - DATABASE_DIR: Directory holding the catalog (default: /data)
//   - CACHE_DIR: Directory for cached videos (default: /cache)
//   - PORT: Main HTTP server port (default: 59923)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - QUALITY: low or normal (default: normal)
//   - REPEAT: Restart the queue after the last video (default: false)
//   - AUTO_STOP: Stop playback after this duration (default: disabled)
//   - PLAYER_RETRY: Retries of a failing video (default: 3)
//   - NETWORK_RETRY: Retries of a failing download (default: 3)
//   - CACHING_TRIGGER_POINT: Buffering percentage that starts the next
//     download (default: 100)
//   - DEFAULT_VOLUME: Volume of newly added videos (default: 50)
//   - FFPLAY_PATH, FFPROBE_PATH: Player binaries
//   - NETWORK_PROBE_ADDR: host:port dialled to test connectivity
//   - WAKE_LOCK: none or systemd (default: none)
//   - RESOLVER_RATE: Resolver requests per second (default: 2)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the daemon stops accepting requests, shuts down the
// HTTP servers, stops the running session and flushes pending catalog
// writes before closing the catalog. All steps share a 30 second timeout.
//
// # Related Packages
//
//   - [tubeplayer/internal/catalog]: SQLite playlist and video catalog
//   - [tubeplayer/internal/playback]: Queue sequencing and recovery
//   - [tubeplayer/internal/player]: ffplay backend
//   - [tubeplayer/internal/handlers]: HTTP request handlers
//   - [tubeplayer/internal/realtime]: WebSocket event hub
//   - [tubeplayer/internal/startup]: Configuration and initialization
package main
