package prefetch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tubeplayer/internal/resolver"
)

type fetchFunc func(ctx context.Context, videoID, dest string, q resolver.Quality) error

func (f fetchFunc) Fetch(ctx context.Context, videoID, dest string, q resolver.Quality) error {
	return f(ctx, videoID, dest, q)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for prefetch result")
	}
	return Result{}
}

func TestPrefetchSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	done := make(chan Result, 1)
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		return WriteFile(ctx, dest, strings.NewReader("video:"+videoID))
	}), Options{OnDone: func(r Result) { done <- r }})
	defer p.Close()

	dest := filepath.Join(dir, "abc.mp4")
	p.Prefetch("abc", dest, resolver.QualityLow)
	res := waitResult(t, done)
	if res.Err != nil {
		t.Fatalf("prefetch failed: %v", res.Err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video:abc" {
		t.Errorf("content = %q", data)
	}
	if _, ok := p.Active(); ok {
		t.Error("job still active after completion")
	}
}

func TestPrefetchRetriesWhileOnline(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan Result, 1)
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		calls.Add(1)
		return errors.New("connection reset")
	}), Options{Retries: 2, RetryDelay: time.Millisecond, OnDone: func(r Result) { done <- r }})
	defer p.Close()

	p.Prefetch("abc", filepath.Join(t.TempDir(), "abc.mp4"), resolver.QualityLow)
	res := waitResult(t, done)
	if res.Err == nil {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
	if res.Retries != 0 {
		t.Errorf("retry tag = %d, want 0", res.Retries)
	}
}

func TestPrefetchGivesUpOffline(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan Result, 1)
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		calls.Add(1)
		return errors.New("no route to host")
	}), Options{
		Retries:    5,
		RetryDelay: time.Millisecond,
		Online:     func() bool { return false },
		OnDone:     func(r Result) { done <- r },
	})
	defer p.Close()

	p.Prefetch("abc", filepath.Join(t.TempDir(), "abc.mp4"), resolver.QualityNormal)
	res := waitResult(t, done)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if res.Retries != 5 {
		t.Errorf("retry tag = %d, want 5", res.Retries)
	}
}

func TestPrefetchNoRetryOnRestricted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan Result, 1)
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		calls.Add(1)
		return resolver.ErrRestricted
	}), Options{Retries: 3, RetryDelay: time.Millisecond, OnDone: func(r Result) { done <- r }})
	defer p.Close()

	p.Prefetch("abc", filepath.Join(t.TempDir(), "abc.mp4"), resolver.QualityLow)
	waitResult(t, done)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestPrefetchReplacesRunningJob(t *testing.T) {
	t.Parallel()

	started := make(chan string, 2)
	var mu sync.Mutex
	results := map[string]error{}
	done := make(chan struct{}, 2)
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		started <- videoID
		if videoID == "first" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}), Options{OnDone: func(r Result) {
		mu.Lock()
		results[r.VideoID] = r.Err
		mu.Unlock()
		done <- struct{}{}
	}})
	defer p.Close()

	dir := t.TempDir()
	p.Prefetch("first", filepath.Join(dir, "first.mp4"), resolver.QualityLow)
	if id := <-started; id != "first" {
		t.Fatalf("started %q", id)
	}
	// Same destination is a no-op.
	p.Prefetch("first", filepath.Join(dir, "first.mp4"), resolver.QualityLow)
	p.Prefetch("second", filepath.Join(dir, "second.mp4"), resolver.QualityLow)
	if id := <-started; id != "second" {
		t.Fatalf("started %q", id)
	}
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(results["first"], context.Canceled) {
		t.Errorf("first job err = %v, want canceled", results["first"])
	}
	if results["second"] != nil {
		t.Errorf("second job err = %v", results["second"])
	}
}

func TestCloseCancelsAndIgnoresRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	entered := make(chan struct{})
	p := New(fetchFunc(func(ctx context.Context, videoID, dest string, q resolver.Quality) error {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-ctx.Done()
		return ctx.Err()
	}), Options{})

	p.Prefetch("abc", filepath.Join(t.TempDir(), "abc.mp4"), resolver.QualityLow)
	<-entered
	p.Close()

	p.Prefetch("def", filepath.Join(t.TempDir(), "def.mp4"), resolver.QualityLow)
	if _, ok := p.Active(); ok {
		t.Error("closed prefetcher accepted a job")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

type stallReader struct {
	ctx  context.Context
	sent bool
}

func (s *stallReader) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		return copy(p, "head"), nil
	}
	<-s.ctx.Done()
	return 0, s.ctx.Err()
}

func TestWriteFileIdleTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	dest := filepath.Join(t.TempDir(), "stall.mp4")

	err := WriteFile(ctx, dest, newIdleReader(&stallReader{ctx: ctx}, 20*time.Millisecond, cancel))
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("err = %v, want ErrIdleTimeout", err)
	}
	for _, p := range []string{dest, dest + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s left behind", filepath.Base(p))
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestWriteFileRemovesPartial(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "x.mp4")
	if err := WriteFile(context.Background(), dest, failingReader{}); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}
