package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tubeplayer/internal/cache"
	"tubeplayer/internal/catalog"
	"tubeplayer/internal/filesystem"
	"tubeplayer/internal/handlers"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
	"tubeplayer/internal/middleware"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/player"
	"tubeplayer/internal/prefetch"
	"tubeplayer/internal/realtime"
	"tubeplayer/internal/resolver"
	"tubeplayer/internal/startup"
	"tubeplayer/internal/thumbnail"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	collectInterval = time.Minute
	// downloadIdle aborts a prefetch that receives no data for this long.
	downloadIdle = 30 * time.Second
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Initialize catalog
	dbStart := time.Now()
	store, err := catalog.Open(context.Background(), config.DatabasePath, &catalog.Options{
		DefaultVolume: config.DefaultVolume,
	})
	if err != nil {
		startup.LogFatal("Failed to open catalog: %v", err)
	}
	defer store.Close()
	stats, err := store.Stats(context.Background())
	if err != nil {
		startup.LogFatal("Failed to read catalog: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), stats.Playlists, stats.Videos)

	videoCache, err := cache.New(config.VideoCacheDir)
	if err != nil {
		startup.LogFatal("Failed to initialize video cache: %v", err)
	}

	yt := resolver.NewYouTube(nil, config.ResolverRate)
	network := playback.NewDialChecker(config.NetworkProbeAddr, 3*time.Second, 10*time.Second)
	network.Refresh(context.Background())
	thumbs := thumbnail.New(nil)

	prefetcher := prefetch.New(prefetch.NewYouTubeFetcher(yt, downloadIdle), prefetch.Options{
		Retries: config.NetworkRetry,
		Online:  network.Online,
		OnDone:  thumbnailBackfill(store, thumbs),
	})
	defer prefetcher.Close()

	// Initialize player and engine
	startup.LogPlayerInit(config.FFPlayPath, config.FFProbePath)
	engine, err := newEngine(config, store, videoCache, yt, prefetcher, network)
	if err != nil {
		startup.LogFatal("Failed to initialize playback engine: %v", err)
	}

	hub := realtime.NewHub()
	engine.AddListener(hub)

	// Initialize handlers
	h := handlers.New(handlers.Deps{
		Catalog:    store,
		Engine:     engine,
		Lookup:     yt,
		Thumbnails: thumbs,
		Cache:      videoCache,
		Clients:    hub,
	})

	// Setup router
	router := setupRouter(h, hub)
	startup.LogHTTPRoutes(router)

	// Apply logging middleware
	handler := middleware.Logger(middleware.DefaultLoggingConfig())(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	collector := metrics.NewCollector(statsProvider(store, videoCache), collectInterval)
	collector.Start()
	defer collector.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	startup.LogEngineStarted(config.Quality, config.Repeat)

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdown(ctx, srv, metricsSrv, engine)
		return nil
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := g.Wait(); err != nil {
		logging.Error("Server error: %v", err)
		stop()
		os.Exit(1)
	}
	startup.LogShutdownComplete()
}

// newEngine builds the playback engine from the configuration.
func newEngine(config *startup.Config, store *catalog.Store, videoCache *cache.Manager,
	yt *resolver.YouTube, prefetcher *prefetch.Prefetcher, network playback.NetworkChecker,
) (*playback.Engine, error) {
	quality, err := resolver.ParseQuality(config.Quality)
	if err != nil {
		return nil, err
	}

	var locks []playback.Lock
	if config.WakeLock == "systemd" {
		locks = append(locks, playback.NewSystemdInhibitLock())
	}

	return playback.New(playback.Deps{
		Catalog:    store,
		Cache:      videoCache,
		Resolver:   yt,
		Prefetcher: prefetcher,
		Players: player.NewFFPlay(player.FFPlayConfig{
			FFPlayPath:  config.FFPlayPath,
			FFProbePath: config.FFProbePath,
		}),
		Network: network,
		Locks:   locks,
	}, playback.Options{
		Quality:             quality,
		Repeat:              config.Repeat,
		PlayerRetry:         config.PlayerRetry,
		CachingTriggerPoint: config.CachingTriggerPoint,
		DefaultVolume:       config.DefaultVolume,
		RecoveryDelay:       config.RecoveryDelay,
		OfflineRetryDelay:   config.OfflineRetryDelay,
		AutoStop:            config.AutoStop,
	})
}

func setupRouter(h *handlers.Handlers, hub *realtime.Hub) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Player events
	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Playlists
	api.HandleFunc("/playlists", h.ListPlaylists).Methods("GET")
	api.HandleFunc("/playlists", h.CreatePlaylist).Methods("POST")
	api.HandleFunc("/playlists/{id:[0-9]+}", h.GetPlaylist).Methods("GET")
	api.HandleFunc("/playlists/{id:[0-9]+}", h.UpdatePlaylist).Methods("PATCH")
	api.HandleFunc("/playlists/{id:[0-9]+}", h.DeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlists/{id:[0-9]+}/thumbnail", h.GetPlaylistThumbnail).Methods("GET")
	api.HandleFunc("/playlists/{id:[0-9]+}/videos", h.ListPlaylistVideos).Methods("GET")
	api.HandleFunc("/playlists/{id:[0-9]+}/videos", h.AddPlaylistVideo).Methods("POST")
	api.HandleFunc("/playlists/{id:[0-9]+}/videos/{video:[0-9]+}", h.AddPlaylistVideoRef).Methods("PUT")
	api.HandleFunc("/playlists/{id:[0-9]+}/videos/{video:[0-9]+}", h.RemovePlaylistVideo).Methods("DELETE")

	// Videos
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos/by-id/{videoId}", h.GetVideoByVideoID).Methods("GET")
	api.HandleFunc("/videos/{video:[0-9]+}", h.GetVideo).Methods("GET")
	api.HandleFunc("/videos/{video:[0-9]+}", h.UpdateVideo).Methods("PATCH")
	api.HandleFunc("/videos/{video:[0-9]+}", h.RemoveVideo).Methods("DELETE")
	api.HandleFunc("/videos/{video:[0-9]+}/playlists", h.VideoPlaylists).Methods("GET")
	api.HandleFunc("/videos/{video:[0-9]+}/thumbnail", h.GetVideoThumbnail).Methods("GET")
	api.HandleFunc("/lookup", h.LookupVideo).Methods("GET")

	// Change watchers
	api.HandleFunc("/watchers/{kind}", h.RegisterWatcher).Methods("POST")
	api.HandleFunc("/watchers/{kind}/{key}", h.PollWatcher).Methods("GET")
	api.HandleFunc("/watchers/{kind}/{key}", h.UnregisterWatcher).Methods("DELETE")

	// Catalog files
	api.HandleFunc("/catalog/verify", h.VerifyCatalog).Methods("POST")
	api.HandleFunc("/catalog/merge", h.MergeCatalog).Methods("POST")
	api.HandleFunc("/catalog/import", h.ImportCatalog).Methods("POST")
	api.HandleFunc("/catalog/export", h.ExportCatalog).Methods("POST")

	// Player
	api.HandleFunc("/player/status", h.PlayerStatus).Methods("GET")
	api.HandleFunc("/player", h.UpdatePlayer).Methods("PATCH")
	api.HandleFunc("/player/play", h.Play).Methods("POST")
	api.HandleFunc("/player/append", h.Append).Methods("POST")
	api.HandleFunc("/player/stop", h.Stop()).Methods("POST")
	api.HandleFunc("/player/next", h.Next()).Methods("POST")
	api.HandleFunc("/player/prev", h.Prev()).Methods("POST")
	api.HandleFunc("/player/pause", h.Pause()).Methods("POST")
	api.HandleFunc("/player/resume", h.Resume()).Methods("POST")
	api.HandleFunc("/player/interrupt", h.Interrupt).Methods("POST")

	return r
}

func metricsRouter() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// statsProvider feeds the metrics collector from the catalog and the cache.
func statsProvider(store *catalog.Store, videoCache *cache.Manager) metrics.StatsProvider {
	return metrics.StatsFunc(func(ctx context.Context) (metrics.Stats, error) {
		st, err := store.Stats(ctx)
		if err != nil {
			return metrics.Stats{}, err
		}
		files, bytes, err := videoCache.Usage()
		if err != nil {
			return metrics.Stats{}, err
		}
		return metrics.Stats{
			Playlists:  st.Playlists,
			Videos:     st.Videos,
			CacheFiles: files,
			CacheBytes: bytes,
		}, nil
	})
}

// frameGrabber extracts a thumbnail from a local video file.
type frameGrabber interface {
	FromVideo(ctx context.Context, path string) ([]byte, error)
}

// thumbnailStore is the catalog access needed by thumbnailBackfill.
type thumbnailStore interface {
	VideoByVideoID(ctx context.Context, videoID string) (*catalog.Video, error)
	UpdateVideoByVideoID(ctx context.Context, videoID string, updates ...catalog.VideoUpdate) (int64, error)
}

// thumbnailBackfill returns a prefetch completion hook that stores a frame
// of a freshly cached video as its thumbnail when the catalog has none.
func thumbnailBackfill(store thumbnailStore, grabber frameGrabber) func(prefetch.Result) {
	return func(res prefetch.Result) {
		if res.Err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		v, err := store.VideoByVideoID(ctx, res.VideoID)
		if err != nil || len(v.Thumbnail) > 0 {
			return
		}
		thumb, err := grabber.FromVideo(ctx, res.Dest)
		if err != nil {
			logging.Debug("No thumbnail from %s: %v", res.Dest, err)
			return
		}
		if _, err := store.UpdateVideoByVideoID(ctx, res.VideoID, catalog.SetVideoThumbnail(thumb)); err != nil {
			logging.Warn("Storing thumbnail of %s failed: %v", res.VideoID, err)
		}
	}
}

func shutdown(parent context.Context, srv, metricsSrv *http.Server, engine *playback.Engine) {
	reason := "server error"
	if parent.Err() != nil {
		reason = "signal received"
	}
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping playback engine")
	select {
	case <-engine.Done():
		startup.LogShutdownStepComplete("Playback engine stopped")
	case <-ctx.Done():
		logging.Warn("Playback engine did not stop in time")
	}
}
