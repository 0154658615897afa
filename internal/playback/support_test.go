package playback

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"
)

type countingLock struct {
	acquired atomic.Int32
	released atomic.Int32
}

func (l *countingLock) Name() string   { return "counting" }
func (l *countingLock) Acquire() error { l.acquired.Add(1); return nil }
func (l *countingLock) Release() error { l.released.Add(1); return nil }

func TestLockSetIdempotent(t *testing.T) {
	t.Parallel()

	l := &countingLock{}
	s := lockSet{locks: []Lock{l, NopLock("network")}}
	s.release()
	s.acquire()
	s.acquire()
	s.release()
	s.release()
	if a, r := l.acquired.Load(), l.released.Load(); a != 1 || r != 1 {
		t.Errorf("acquired %d released %d, want 1 and 1", a, r)
	}
}

func TestInhibitLock(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not found")
	}

	l := NewInhibitLock("test", "sleep", "60")
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if !l.Held() {
		t.Error("lock not held after acquire")
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if l.Held() {
		t.Error("lock held after release")
	}

	bad := NewInhibitLock("bad", "/nonexistent/inhibit")
	if err := bad.Acquire(); err == nil {
		t.Error("acquire with missing binary succeeded")
	}
}

func TestDialCheckerCaches(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	var offline atomic.Bool
	var now atomic.Int64
	now.Store(time.Unix(1000, 0).UnixNano())
	c := NewDialChecker("example.com:443", time.Second, time.Minute)
	c.now = func() time.Time { return time.Unix(0, now.Load()) }
	c.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		if offline.Load() {
			return nil, errors.New("unreachable")
		}
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}

	if !c.Refresh(context.Background()) || !c.Online() || !c.Online() {
		t.Fatal("expected online")
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d, want 1 within ttl", got)
	}

	offline.Store(true)
	now.Add(int64(2 * time.Minute))
	if !c.Online() {
		t.Error("stale answer should be served while the refresh runs")
	}
	waitUntil(t, "background refresh", func() bool { return !c.Online() })
	if got := dials.Load(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestDialCheckerRealListener(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if !NewDialChecker(addr, time.Second, time.Minute).Refresh(context.Background()) {
		t.Error("listener not reachable")
	}
	ln.Close()
	if NewDialChecker(addr, 200*time.Millisecond, time.Minute).Refresh(context.Background()) {
		t.Error("closed listener reported reachable")
	}
}

func TestDialCheckerOnlineNeverBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		primed bool
		want   bool
	}{
		{"before first dial", false, true},
		{"after offline answer", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			release := make(chan struct{})
			defer close(release)

			c := NewDialChecker("example.com:443", time.Hour, 0)
			if tt.primed {
				c.dial = func(context.Context, string, string) (net.Conn, error) {
					return nil, errors.New("unreachable")
				}
				c.Refresh(context.Background())
			}
			c.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
				select {
				case <-ctx.Done():
				case <-release:
				}
				return nil, errors.New("hung")
			}

			start := time.Now()
			for range 10 {
				if got := c.Online(); got != tt.want {
					t.Fatalf("Online() = %v, want %v", got, tt.want)
				}
			}
			if d := time.Since(start); d > 100*time.Millisecond {
				t.Errorf("Online took %v with a hung dial", d)
			}
		})
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPersisterDrainsOnClose(t *testing.T) {
	t.Parallel()

	p := newPersister(8)
	var ran atomic.Int32
	release := make(chan struct{})
	p.submit(func(ctx context.Context) error {
		<-release
		ran.Add(1)
		return nil
	})
	for i := 0; i < 3; i++ {
		if !p.submit(func(ctx context.Context) error { ran.Add(1); return errors.New("ignored") }) {
			t.Fatal("submit rejected below capacity")
		}
	}
	close(release)
	p.close()
	if got := ran.Load(); got != 4 {
		t.Errorf("ran %d jobs, want 4", got)
	}
	if p.submit(func(ctx context.Context) error { return nil }) {
		t.Error("submit accepted after close")
	}
	p.close()
}

func TestPersisterDropsWhenFull(t *testing.T) {
	t.Parallel()

	p := newPersister(1)
	block := make(chan struct{})
	started := make(chan struct{})
	p.submit(func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started
	if !p.submit(func(ctx context.Context) error { return nil }) {
		t.Fatal("queue slot rejected")
	}
	if p.submit(func(ctx context.Context) error { return nil }) {
		t.Error("submit accepted beyond capacity")
	}
	close(block)
	p.close()
}

func TestStopReasonAndPhoneState(t *testing.T) {
	t.Parallel()

	if StopNetworkUnavailable.String() != "network_unavailable" {
		t.Errorf("got %q", StopNetworkUnavailable)
	}
	for in, want := range map[string]PhoneState{"idle": PhoneIdle, "RINGING": PhoneRinging, "offhook": PhoneOffhook} {
		got, err := ParsePhoneState(in)
		if err != nil || got != want {
			t.Errorf("ParsePhoneState(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePhoneState("busy"); err == nil {
		t.Error("expected error")
	}
}
