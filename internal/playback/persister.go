package playback

import (
	"context"
	"sync"
	"time"
)

// persistTimeout bounds a single write.
const persistTimeout = 10 * time.Second

// persister runs catalog writes on one worker goroutine. Submissions beyond
// the queue capacity are dropped.
type persister struct {
	jobs chan func(context.Context) error

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newPersister(capacity int) *persister {
	p := &persister{jobs: make(chan func(context.Context) error, capacity)}
	p.wg.Add(1)
	go p.work()
	return p
}

func (p *persister) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := job(ctx); err != nil {
			log.Warn("Persisting playback data failed: %v", err)
		}
		cancel()
	}
}

// submit queues job and reports whether it was accepted.
func (p *persister) submit(job func(context.Context) error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		log.Warn("Persist queue full, dropping write")
		return false
	}
}

// close stops accepting jobs, runs the queued ones and waits for the
// worker to exit.
func (p *persister) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
