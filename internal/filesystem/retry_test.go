package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type countingObserver struct {
	mu     sync.Mutex
	events map[Event]int
	areas  []string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{events: make(map[Event]int)}
}

func (o *countingObserver) Observe(_, area string, ev Event) {
	o.mu.Lock()
	o.events[ev]++
	o.areas = append(o.areas, area)
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDuration(string, string, float64) {}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsStaleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"not exist", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(file, fastConfig())
	if err != nil || info.Size() != 4 {
		t.Fatalf("StatWithRetry() = %v, %v", info, err)
	}

	f, err := OpenWithRetry(file, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	_, err = StatWithRetry(filepath.Join(dir, "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
	if _, err := OpenWithRetry(filepath.Join(dir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestRemoveAllAndReadDirWithRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadDirWithRetry(dir, fastConfig())
	if err != nil || len(entries) != 2 {
		t.Fatalf("ReadDirWithRetry() = %d entries, %v", len(entries), err)
	}
	if err := RemoveAllWithRetry(filepath.Join(dir, "a.mp4"), fastConfig()); err != nil {
		t.Fatalf("RemoveAllWithRetry() error = %v", err)
	}
	entries, _ = ReadDirWithRetry(dir, fastConfig())
	if len(entries) != 1 || entries[0].Name() != "b.mp4" {
		t.Errorf("unexpected entries after remove: %v", entries)
	}
}

// Not parallel: swaps the package observer.
func TestRetry_StaleThenSuccess(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	got, err := retry("stat", "/cache/x", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("retry() = %d, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := map[Event]int{EventStale: 2, EventRetry: 2, EventRecovered: 1}
	for ev, n := range want {
		if obs.events[ev] != n {
			t.Errorf("event %d observed %d times, want %d", ev, obs.events[ev], n)
		}
	}
	if obs.events[EventGaveUp] != 0 {
		t.Error("gave up on a recovered operation")
	}
}

func TestRetry_Exhausted(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	_, err := retry("open", "/cache/x", fastConfig(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("retry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if obs.events[EventGaveUp] != 1 || obs.events[EventRetry] != 3 || obs.events[EventStale] != 4 {
		t.Errorf("events = %v", obs.events)
	}
}

func TestRetry_OtherErrorsAreNotRetried(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	_, err := retry("readdir", "/cache", RetryConfig{MaxRetries: 3}, func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) || calls != 1 {
		t.Errorf("retry() = %v after %d calls", err, calls)
	}
	if len(obs.events) != 0 {
		t.Errorf("events = %v, want none", obs.events)
	}
}

func TestRetryConfigArea(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	for _, cfg := range []RetryConfig{{Area: "data"}, {}} {
		_, _ = retry("stat", "/x", cfg, func() (int, error) { return 0, syscall.ESTALE })
	}
	if len(obs.areas) < 2 || obs.areas[0] != "data" || obs.areas[len(obs.areas)-1] != "unknown" {
		t.Errorf("areas = %v", obs.areas)
	}
}
