// Package prefetch downloads the next queued video into the cache while the
// current one plays. Prefetching is best effort: failures are logged and
// counted, never reported to the caller.
package prefetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
	"tubeplayer/internal/resolver"
)

var log = logging.For("prefetch")

// Defaults for Options.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Options configures a Prefetcher.
type Options struct {
	// Retries is the number of extra attempts after a failed fetch.
	Retries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// Online reports network reachability. Retries stop once it returns
	// false. Nil means always online.
	Online func() bool
	// OnDone, if set, is called from the job goroutine after the job ends
	// for good.
	OnDone func(Result)
}

// Job is one prefetch request. Retries is the remaining retry budget and
// is decremented each time the job is retried.
type Job struct {
	VideoID string
	Dest    string
	Quality resolver.Quality
	Retries int
}

// Result reports how a job ended.
type Result struct {
	Job
	Err error
}

// Prefetcher runs at most one Job at a time.
type Prefetcher struct {
	fetcher Fetcher
	opts    Options

	mu      sync.Mutex
	current *running
	closed  bool
	wg      sync.WaitGroup
}

type running struct {
	job    Job
	cancel context.CancelFunc
}

// New returns a Prefetcher using f.
func New(f Fetcher, opts Options) *Prefetcher {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Online == nil {
		opts.Online = func() bool { return true }
	}
	return &Prefetcher{fetcher: f, opts: opts}
}

// Prefetch starts downloading videoID to dest, cancelling any other running
// job. A request for the destination already being fetched is ignored.
func (p *Prefetcher) Prefetch(videoID, dest string, q resolver.Quality) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.current != nil {
		if p.current.job.Dest == dest {
			return
		}
		p.current.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		job:    Job{VideoID: videoID, Dest: dest, Quality: q, Retries: p.opts.Retries},
		cancel: cancel,
	}
	p.current = r
	p.wg.Add(1)
	go p.run(ctx, r)
}

// Active returns the video id being fetched, if any.
func (p *Prefetcher) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", false
	}
	return p.current.job.VideoID, true
}

// Cancel stops the running job, if any.
func (p *Prefetcher) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.cancel()
		p.current = nil
	}
}

// Close cancels the running job and waits for it to return. The Prefetcher
// ignores further requests.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	p.closed = true
	if p.current != nil {
		p.current.cancel()
		p.current = nil
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Prefetcher) run(ctx context.Context, r *running) {
	defer p.wg.Done()
	job := r.job
	for {
		err := p.fetcher.Fetch(ctx, job.VideoID, job.Dest, job.Quality)
		next, retry := p.complete(ctx, job, err)
		if !retry {
			p.finish(r, Result{Job: job, Err: err})
			return
		}
		job = next
		select {
		case <-ctx.Done():
			metrics.PrefetchTotal.WithLabelValues("canceled").Inc()
			p.finish(r, Result{Job: job, Err: ctx.Err()})
			return
		case <-time.After(p.opts.RetryDelay):
		}
	}
}

// complete inspects a finished attempt and its retry tag, and returns the
// job to run next when another attempt is due.
func (p *Prefetcher) complete(ctx context.Context, job Job, err error) (Job, bool) {
	switch {
	case err == nil:
		metrics.PrefetchTotal.WithLabelValues("success").Inc()
		log.Debug("Prefetched %s", job.VideoID)
		return job, false
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		metrics.PrefetchTotal.WithLabelValues("canceled").Inc()
		return job, false
	case errors.Is(err, resolver.ErrRestricted), errors.Is(err, resolver.ErrNoFormat):
		metrics.PrefetchTotal.WithLabelValues("failure").Inc()
		log.Debug("Prefetch of %s not possible: %v", job.VideoID, err)
		return job, false
	case job.Retries > 0 && p.opts.Online():
		metrics.PrefetchTotal.WithLabelValues("retry").Inc()
		log.Debug("Prefetch of %s failed, %d retries left: %v", job.VideoID, job.Retries, err)
		job.Retries--
		return job, true
	}
	metrics.PrefetchTotal.WithLabelValues("failure").Inc()
	log.Info("Giving up prefetch of %s: %v", job.VideoID, err)
	return job, false
}

func (p *Prefetcher) finish(r *running, res Result) {
	r.cancel()
	p.mu.Lock()
	if p.current == r {
		p.current = nil
	}
	p.mu.Unlock()
	if p.opts.OnDone != nil {
		p.opts.OnDone(res)
	}
}
