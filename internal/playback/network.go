package playback

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// NetworkChecker reports whether the network is reachable. Online is called
// from the engine's control goroutine and must not block.
type NetworkChecker interface {
	Online() bool
}

// NetworkFunc adapts a function to NetworkChecker.
type NetworkFunc func() bool

// Online implements NetworkChecker.
func (f NetworkFunc) Online() bool { return f() }

// DialChecker probes reachability with a TCP dial and caches the answer.
// Dials run in the background; Online only reads the cached result.
type DialChecker struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	now     func() time.Time

	online     atomic.Bool
	checked    atomic.Int64 // unix nanos of the last finished dial, 0 if none
	refreshing atomic.Bool
}

// NewDialChecker probes addr ("host:port"), trusting each answer for ttl.
// The network counts as reachable until the first dial says otherwise.
func NewDialChecker(addr string, timeout, ttl time.Duration) *DialChecker {
	var d net.Dialer
	c := &DialChecker{
		addr:    addr,
		timeout: timeout,
		ttl:     ttl,
		dial:    d.DialContext,
		now:     time.Now,
	}
	c.online.Store(true)
	return c
}

// Online implements NetworkChecker. It returns the last known answer and
// starts a background dial when that answer is older than the ttl.
func (c *DialChecker) Online() bool {
	if c.stale() && c.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer c.refreshing.Store(false)
			c.Refresh(context.Background())
		}()
	}
	return c.online.Load()
}

// Refresh dials now and stores the answer. It blocks for at most the dial
// timeout and is meant for startup and for callers off the control path.
func (c *DialChecker) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dial(ctx, "tcp", c.addr)
	online := err == nil
	if online {
		conn.Close()
	}
	first := c.checked.Load() == 0
	if prev := c.online.Swap(online); prev != online || first {
		log.Info("Network reachable: %v (%s)", online, c.addr)
	}
	c.checked.Store(c.now().UnixNano())
	return online
}

func (c *DialChecker) stale() bool {
	checked := c.checked.Load()
	return checked == 0 || c.now().Sub(time.Unix(0, checked)) >= c.ttl
}
