package playback

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
	"tubeplayer/internal/player"
	"tubeplayer/internal/resolver"
)

var log = logging.For("playback")

var (
	// ErrClosed is returned once the control loop has exited or before it
	// was started.
	ErrClosed     = errors.New("playback engine is not running")
	ErrEmptyQueue = errors.New("queue is empty")
	ErrNotPlaying = errors.New("nothing is playing")
	ErrSuspended  = errors.New("playback is suspended")
	ErrNoPrevious = errors.New("already at the first video")
	ErrVolume     = errors.New("volume must be between 0 and 100")
)

// Catalog receives the data the engine persists.
type Catalog interface {
	TouchVideo(ctx context.Context, videoID string, t time.Time) error
	UpdateVideoByVideoID(ctx context.Context, videoID string, updates ...catalog.VideoUpdate) (int64, error)
}

// Cache is the video cache seen by the engine.
type Cache interface {
	IsCached(videoID string) bool
	Path(videoID string) string
	EvictExcept(keepIDs ...string) int
	Clear() int
}

// Prefetcher downloads a video into the cache in the background.
type Prefetcher interface {
	Prefetch(videoID, dest string, q resolver.Quality)
	Cancel()
}

// Deps are the collaborators of an Engine. Cache, Resolver and Players are
// required.
type Deps struct {
	Catalog    Catalog
	Cache      Cache
	Resolver   resolver.Resolver
	Prefetcher Prefetcher
	Players    player.Factory
	Network    NetworkChecker
	Locks      []Lock
}

// Options tune the engine.
type Options struct {
	Quality resolver.Quality
	Repeat  bool
	// PlayerRetry is the number of retries of a failing video.
	PlayerRetry int
	// CachingTriggerPoint is the buffering percentage at which the next
	// video starts prefetching.
	CachingTriggerPoint int
	DefaultVolume       int
	RecoveryDelay       time.Duration
	OfflineRetryDelay   time.Duration
	// AutoStop stops a session after the given time. Zero disables it.
	AutoStop     time.Duration
	PersistQueue int
	Rand         *rand.Rand
	Now          func() time.Time
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Quality:             resolver.QualityNormal,
		PlayerRetry:         3,
		CachingTriggerPoint: 100,
		DefaultVolume:       catalog.DefaultVideoVolume,
		RecoveryDelay:       500 * time.Millisecond,
		OfflineRetryDelay:   time.Second,
		PersistQueue:        32,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PlayerRetry < 0 {
		o.PlayerRetry = 0
	}
	if o.CachingTriggerPoint <= 0 || o.CachingTriggerPoint > 100 {
		o.CachingTriggerPoint = d.CachingTriggerPoint
	}
	if o.DefaultVolume < 0 || o.DefaultVolume > 100 {
		o.DefaultVolume = d.DefaultVolume
	}
	if o.RecoveryDelay < 0 {
		o.RecoveryDelay = 0
	}
	if o.OfflineRetryDelay <= 0 {
		o.OfflineRetryDelay = d.OfflineRetryDelay
	}
	if o.PersistQueue <= 0 {
		o.PersistQueue = d.PersistQueue
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type nopPrefetcher struct{}

func (nopPrefetcher) Prefetch(string, string, resolver.Quality) {}
func (nopPrefetcher) Cancel()                                  {}

// Engine sequences the videos of a queue through a player. All of its state
// is owned by the goroutine executing Run; public methods and background
// results are marshalled onto it.
type Engine struct {
	deps    Deps
	opts    Options
	cmds    chan func()
	done    chan struct{}
	running atomic.Bool
	persist *persister

	mu        sync.Mutex
	listeners []Listener

	// Owned by the control goroutine.
	ctx            context.Context
	queue          *Queue
	state          player.State
	suspended      bool
	resumePlayback bool
	pendingStart   bool
	player         player.Player
	gen            uint64
	retries        int
	lastBuffering  int
	prefetched     bool
	fromCache      bool
	volume         int
	session        string
	resolveCancel  context.CancelFunc
	recovery       *time.Timer
	recoveryGen    uint64
	autoStop       *time.Timer
	autoStopGen    uint64
	locks          lockSet
}

// New returns an Engine. Call Run to start processing.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Cache == nil || deps.Resolver == nil || deps.Players == nil {
		return nil, errors.New("playback: cache, resolver and player factory are required")
	}
	if deps.Prefetcher == nil {
		deps.Prefetcher = nopPrefetcher{}
	}
	if deps.Network == nil {
		deps.Network = NetworkFunc(func() bool { return true })
	}
	opts = opts.withDefaults()
	return &Engine{
		deps:          deps,
		opts:          opts,
		cmds:          make(chan func(), 64),
		done:          make(chan struct{}),
		persist:       newPersister(opts.PersistQueue),
		queue:         NewQueue(),
		state:         player.Invalid,
		retries:       opts.PlayerRetry,
		lastBuffering: -1,
		volume:        opts.DefaultVolume,
		locks:         lockSet{locks: deps.Locks},
	}, nil
}

// AddListener registers l for engine events.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) notify(fn func(Listener)) {
	e.mu.Lock()
	ls := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, l := range ls {
		fn(l)
	}
}

// Run executes the control loop until ctx is cancelled. A running session
// is stopped with StopForceStopped and pending catalog writes are flushed
// before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("playback engine already running")
	}
	e.ctx = ctx
	log.Info("Playback engine started (quality=%s, repeat=%v)", e.opts.Quality, e.opts.Repeat)

	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-ctx.Done():
			if e.queue.HasActive() || e.state != player.Invalid {
				e.stop(StopForceStopped)
			}
			e.persist.close()
			close(e.done)
			log.Info("Playback engine stopped")
			return nil
		}
	}
}

// Done is closed when Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// do runs fn on the control goroutine and waits for its result. It fails
// with ErrClosed when Run has not been called or has returned.
func (e *Engine) do(fn func() error) error {
	if !e.running.Load() {
		return ErrClosed
	}
	errc := make(chan error, 1)
	select {
	case e.cmds <- func() { errc <- fn() }:
	case <-e.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-e.done:
		return ErrClosed
	}
}

// post queues fn on the control goroutine without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.done:
	}
}

// Play replaces the queue with vs and starts its first video.
func (e *Engine) Play(vs []Video, shuffle bool) error {
	if len(vs) == 0 {
		return ErrEmptyQueue
	}
	return e.do(func() error {
		e.setAutoStop()
		e.queue.Load(vs, shuffle, e.opts.Rand)
		e.session = uuid.NewString()
		e.notify(func(l Listener) { l.OnQueueChanged() })
		if e.queue.MoveToFirst() {
			metrics.PlaybackSessionsActive.Set(1)
			log.Info("Playback session %s started with %d videos", e.session, e.queue.Len())
			e.notify(func(l Listener) { l.OnQueueStarted() })
			active, _ := e.queue.Active()
			e.startVideo(active, false)
		}
		return nil
	})
}

// Append adds videos to the tail of the running queue.
func (e *Engine) Append(vs ...Video) error {
	return e.do(func() error {
		if !e.queue.HasActive() {
			return ErrNotPlaying
		}
		hadNext := e.queue.HasNext()
		e.queue.Append(vs...)
		e.notify(func(l Listener) { l.OnQueueChanged() })
		// The trigger already fired for the active video with nothing to fetch.
		if !hadNext && e.prefetched {
			e.prefetchNext()
		}
		return nil
	})
}

// Stop ends the session with StopForceStopped.
func (e *Engine) Stop() error {
	return e.do(func() error {
		if !e.queue.HasActive() && e.state == player.Invalid {
			return nil
		}
		e.stop(StopForceStopped)
		return nil
	})
}

// Next skips to the following video, ending the session after the last.
func (e *Engine) Next() error {
	return e.do(func() error {
		if !e.queue.HasActive() {
			return ErrNotPlaying
		}
		e.startNext()
		return nil
	})
}

// Prev goes back one video.
func (e *Engine) Prev() error {
	return e.do(func() error {
		if !e.queue.HasActive() {
			return ErrNotPlaying
		}
		if !e.queue.MoveToPrev() {
			return ErrNoPrevious
		}
		active, _ := e.queue.Active()
		e.startVideo(active, false)
		return nil
	})
}

// Pause pauses the active video.
func (e *Engine) Pause() error {
	return e.do(func() error {
		if !e.isPlaying() {
			return ErrNotPlaying
		}
		e.pauseVideo()
		return nil
	})
}

// Resume continues a paused video.
func (e *Engine) Resume() error {
	return e.do(func() error {
		if !e.isPlaying() {
			return ErrNotPlaying
		}
		if e.suspended {
			return ErrSuspended
		}
		e.startPlayback()
		return nil
	})
}

// SetVolume changes the volume of the active video and stores it as that
// video's volume.
func (e *Engine) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return ErrVolume
	}
	return e.do(func() error {
		if !e.isPlaying() || e.player == nil {
			return ErrNotPlaying
		}
		e.player.SetVolume(volume)
		e.volume = volume
		e.queue.SetActiveVolume(volume)
		active, _ := e.queue.Active()
		if e.deps.Catalog != nil {
			e.persist.submit(func(ctx context.Context) error {
				_, err := e.deps.Catalog.UpdateVideoByVideoID(ctx, active.VideoID, catalog.SetVideoVolume(volume))
				return err
			})
		}
		return nil
	})
}

// SetRepeat toggles restarting the queue after its last video.
func (e *Engine) SetRepeat(repeat bool) error {
	return e.do(func() error {
		e.opts.Repeat = repeat
		return nil
	})
}

// SetQuality changes the quality used for the next resolution.
func (e *Engine) SetQuality(q resolver.Quality) error {
	return e.do(func() error {
		e.opts.Quality = q
		return nil
	})
}

// Interrupt applies a telephony signal: ringing or an ongoing call suspends
// playback, idle lifts the suspension.
func (e *Engine) Interrupt(s PhoneState) error {
	return e.do(func() error {
		switch s {
		case PhoneRinging, PhoneOffhook:
			e.suspend()
		case PhoneIdle:
			e.resumeFromSuspend()
		}
		return nil
	})
}

// Suspend is Interrupt(PhoneRinging).
func (e *Engine) Suspend() error { return e.Interrupt(PhoneRinging) }

// ResumeFromSuspend is Interrupt(PhoneIdle).
func (e *Engine) ResumeFromSuspend() error { return e.Interrupt(PhoneIdle) }

// Status returns a snapshot of the engine.
func (e *Engine) Status() (Status, error) {
	var st Status
	err := e.do(func() error {
		st = Status{
			Session:   e.session,
			State:     e.state,
			Suspended: e.suspended,
			Index:     e.queue.Index(),
			Queue:     e.queue.Videos(),
			Volume:    catalog.InvalidVolume,
			Buffering: max(e.lastBuffering, 0),
			Quality:   e.opts.Quality.String(),
			Repeat:    e.opts.Repeat,
		}
		if v, ok := e.queue.Active(); ok {
			st.Active = &v
		}
		if e.isPlaying() {
			st.Volume = e.volume
		}
		if e.player != nil {
			switch e.state {
			case player.Prepared, player.Started, player.Paused, player.PlaybackCompleted:
				st.PositionMs = e.player.Position().Milliseconds()
				st.DurationMs = e.player.Duration().Milliseconds()
			}
		}
		return nil
	})
	return st, err
}

func (e *Engine) isPlaying() bool {
	return e.queue.HasActive() && e.state != player.Error && e.state != player.End
}

func (e *Engine) setState(to player.State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	metrics.PlaybackStateTransitions.WithLabelValues(to.String()).Inc()
	switch to {
	case player.Started:
		e.locks.acquire()
	case player.Paused, player.Invalid:
		e.locks.release()
	}
	log.Debug("State %s -> %s", from, to)
	e.notify(func(l Listener) { l.OnStateChanged(from, to) })
}

// startVideo runs one attempt at playing v. Recovery attempts consume the
// retry budget; once it is exhausted the engine moves on or stops.
func (e *Engine) startVideo(v Video, recovery bool) {
	e.cancelRecovery()
	e.cancelResolve()
	e.evictCache()

	if recovery {
		if e.retries <= 0 {
			e.giveUp(v)
			return
		}
		e.retries--
		metrics.PlaybackRetriesTotal.Inc()
		log.Info("Retrying %s (%d retries left)", v.VideoID, e.retries)
	} else {
		e.retries = e.opts.PlayerRetry
	}
	e.pendingStart = false

	e.releasePlayer()
	e.gen++
	e.player = e.deps.Players(e.callbacks(e.gen))
	e.setState(player.Idle)
	e.lastBuffering = -1
	e.prefetched = false
	e.fromCache = false

	volume := v.Volume
	if volume < 0 || volume > 100 {
		volume = e.opts.DefaultVolume
	}
	e.player.SetVolume(volume)
	e.volume = volume

	switch {
	case e.deps.Cache.IsCached(v.VideoID):
		e.prepareCached(v)
	case !e.deps.Network.Online():
		log.Info("Network unavailable, retrying %s in %s", v.VideoID, e.opts.OfflineRetryDelay)
		e.scheduleRecovery(v, e.opts.OfflineRetryDelay)
	default:
		e.prepareStreaming(v)
	}
}

func (e *Engine) giveUp(v Video) {
	switch {
	case !e.deps.Network.Online():
		e.stop(StopNetworkUnavailable)
	case e.queue.HasNext():
		log.Warn("Giving up on %s (%s), skipping to next video", v.VideoID, v.Title)
		e.startNext()
	default:
		e.stop(StopUnknownError)
	}
}

func (e *Engine) startNext() {
	if !e.queue.HasActive() {
		return
	}
	if !e.queue.MoveToNext() {
		e.stop(StopDone)
		return
	}
	active, _ := e.queue.Active()
	e.startVideo(active, false)
}

func (e *Engine) prepareCached(v Video) {
	path := e.deps.Cache.Path(v.VideoID)
	if err := e.player.SetDataSource(e.ctx, path); err != nil {
		log.Warn("Cached copy of %s unusable, clearing cache: %v", v.VideoID, err)
		e.deps.Cache.Clear()
		e.scheduleRecovery(v, 0)
		return
	}
	metrics.PlaybackSourcesTotal.WithLabelValues("cache").Inc()
	e.fromCache = true
	e.prepare()
	// No buffering to wait for.
	e.prefetched = true
	e.prefetchNext()
}

func (e *Engine) prepareStreaming(v Video) {
	ctx, cancel := context.WithCancel(e.ctx)
	e.resolveCancel = cancel
	g := e.gen
	q := e.opts.Quality

	go func() {
		url, err := e.deps.Resolver.Resolve(ctx, v.VideoID, q)
		e.post(func() {
			if g != e.gen || ctx.Err() != nil {
				log.Debug("Dropping superseded resolution of %s", v.VideoID)
				return
			}
			e.resolveCancel = nil
			cancel()
			if err != nil {
				log.Warn("Resolving %s failed: %v", v.VideoID, err)
				e.scheduleRecovery(v, e.opts.RecoveryDelay)
				return
			}
			if err := e.player.SetDataSource(e.ctx, url); err != nil {
				log.Warn("Setting stream of %s failed: %v", v.VideoID, err)
				e.scheduleRecovery(v, e.opts.RecoveryDelay)
				return
			}
			metrics.PlaybackSourcesTotal.WithLabelValues("network").Inc()
			e.prepare()
		})
	}()
}

func (e *Engine) prepare() {
	e.setState(player.Initialized)
	e.setState(player.Preparing)
	e.player.PrepareAsync()
}

func (e *Engine) prefetchNext() {
	next, ok := e.queue.Next()
	if !ok || e.deps.Cache.IsCached(next.VideoID) {
		return
	}
	e.deps.Prefetcher.Prefetch(next.VideoID, e.deps.Cache.Path(next.VideoID), e.opts.Quality)
}

func (e *Engine) evictCache() {
	var keep []string
	if v, ok := e.queue.Active(); ok {
		keep = append(keep, v.VideoID)
	}
	if v, ok := e.queue.Next(); ok {
		keep = append(keep, v.VideoID)
	}
	e.deps.Cache.EvictExcept(keep...)
}

// callbacks tags player events with the generation of the player they
// belong to; events of a superseded player are dropped.
func (e *Engine) callbacks(g uint64) player.Callbacks {
	guard := func(name string, fn func()) {
		e.post(func() {
			if g != e.gen {
				log.Debug("Ignoring %s from superseded player", name)
				return
			}
			fn()
		})
	}
	return player.Callbacks{
		OnPrepared:   func() { guard("prepared", e.onPrepared) },
		OnCompletion: func() { guard("completion", e.onCompletion) },
		OnError: func(code player.ErrorCode) {
			guard("error", func() { e.onError(code) })
		},
		OnBuffering: func(percent int) {
			guard("buffering", func() { e.onBuffering(percent) })
		},
	}
}

func (e *Engine) onPrepared() {
	e.setState(player.Prepared)
	if active, ok := e.queue.Active(); ok && e.deps.Catalog != nil {
		playedAt := e.opts.Now()
		e.persist.submit(func(ctx context.Context) error {
			return e.deps.Catalog.TouchVideo(ctx, active.VideoID, playedAt)
		})
	}
	if e.suspended {
		log.Debug("Prepared while suspended, holding playback")
		return
	}
	e.startPlayback()
}

func (e *Engine) startPlayback() {
	switch e.state {
	case player.Prepared, player.Paused:
	default:
		return
	}
	if err := e.player.Start(); err != nil {
		log.Warn("Starting player failed: %v", err)
		e.onError(player.ErrServerDied)
		return
	}
	e.setState(player.Started)
}

func (e *Engine) pauseVideo() {
	switch e.state {
	case player.Started, player.Prepared:
	default:
		return
	}
	if err := e.player.Pause(); err != nil {
		log.Warn("Pausing player failed: %v", err)
	}
	e.setState(player.Paused)
}

func (e *Engine) onBuffering(percent int) {
	if !e.prefetched && percent >= e.opts.CachingTriggerPoint {
		e.prefetched = true
		e.prefetchNext()
	}
	e.lastBuffering = percent
	e.notify(func(l Listener) { l.OnBufferingChanged(percent) })
}

func (e *Engine) onCompletion() {
	e.setState(player.PlaybackCompleted)
	e.startNext()
}

func (e *Engine) onError(code player.ErrorCode) {
	e.setState(player.Error)
	active, ok := e.queue.Active()
	switch {
	case !ok:
		e.stop(StopUnknownError)
		return
	case e.fromCache:
		// The local copy is suspect whatever the code; stream it instead.
		log.Warn("Cached copy of %s failed (%s), clearing cache", active.VideoID, code)
		e.deps.Cache.Clear()
		e.fromCache = false
		e.scheduleRecovery(active, 0)
		return
	case !code.Retryable():
		log.Warn("Player error %s is not recoverable", code)
		e.stop(StopUnknownError)
		return
	}
	log.Info("Player error %s on %s, recovering", code, active.VideoID)
	e.scheduleRecovery(active, e.opts.RecoveryDelay)
}

func (e *Engine) suspend() {
	if e.suspended {
		return
	}
	e.pendingStart = e.resolveCancel != nil || e.recovery != nil
	e.resumePlayback = e.state == player.Started || e.state == player.Prepared
	e.cancelResolve()
	e.cancelRecovery()
	e.pauseVideo()
	e.suspended = true
	log.Info("Playback suspended")
}

func (e *Engine) resumeFromSuspend() {
	if !e.suspended {
		return
	}
	e.suspended = false
	log.Info("Playback resumed from suspension")
	pending, resume := e.pendingStart, e.resumePlayback
	e.pendingStart, e.resumePlayback = false, false

	switch {
	case pending && e.queue.HasActive():
		active, _ := e.queue.Active()
		e.startVideo(active, false)
	case resume || e.state == player.Prepared:
		e.startPlayback()
	}
}

func (e *Engine) scheduleRecovery(v Video, delay time.Duration) {
	e.cancelRecovery()
	rg := e.recoveryGen
	e.recovery = time.AfterFunc(delay, func() {
		e.post(func() {
			if rg != e.recoveryGen {
				return
			}
			e.recovery = nil
			e.startVideo(v, true)
		})
	})
}

func (e *Engine) cancelRecovery() {
	if e.recovery != nil {
		e.recovery.Stop()
		e.recovery = nil
	}
	e.recoveryGen++
}

func (e *Engine) cancelResolve() {
	if e.resolveCancel != nil {
		e.resolveCancel()
		e.resolveCancel = nil
	}
}

func (e *Engine) setAutoStop() {
	e.cancelAutoStop()
	if e.opts.AutoStop <= 0 {
		return
	}
	ag := e.autoStopGen
	e.autoStop = time.AfterFunc(e.opts.AutoStop, func() {
		e.post(func() {
			if ag != e.autoStopGen {
				return
			}
			e.autoStop = nil
			log.Info("Auto-stop after %s", e.opts.AutoStop)
			e.stop(StopForceStopped)
		})
	})
}

func (e *Engine) cancelAutoStop() {
	if e.autoStop != nil {
		e.autoStop.Stop()
		e.autoStop = nil
	}
	e.autoStopGen++
}

func (e *Engine) releasePlayer() {
	if e.player == nil {
		return
	}
	p := e.player
	e.player = nil
	switch e.state {
	case player.Prepared, player.Started, player.Paused, player.PlaybackCompleted:
		if err := p.Stop(); err != nil {
			log.Warn("Stopping player failed: %v", err)
		}
		e.setState(player.Stopped)
	}
	p.Release()
	e.setState(player.End)
}

// stop ends the session. StopDone restarts the queue instead when repeat
// is on.
func (e *Engine) stop(reason StopReason) {
	if reason == StopDone && e.opts.Repeat && e.queue.MoveToFirst() {
		active, _ := e.queue.Active()
		log.Info("Repeating queue")
		e.startVideo(active, false)
		return
	}

	e.cancelResolve()
	e.cancelRecovery()
	e.cancelAutoStop()
	e.releasePlayer()
	e.locks.release()
	e.queue.Reset()
	e.deps.Prefetcher.Cancel()
	e.retries = e.opts.PlayerRetry
	e.gen++
	e.pendingStart, e.resumePlayback = false, false
	e.lastBuffering = -1
	e.prefetched = false
	session := e.session
	e.session = ""
	e.setState(player.Invalid)

	metrics.PlaybackStopsTotal.WithLabelValues(reason.String()).Inc()
	metrics.PlaybackSessionsActive.Set(0)
	log.Info("Playback session %s stopped: %s", session, reason)
	e.notify(func(l Listener) { l.OnQueueChanged() })
	e.notify(func(l Listener) { l.OnQueueStopped(reason) })
}
