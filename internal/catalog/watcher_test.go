package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestWatcherPollSemantics(t *testing.T) {
	t.Parallel()
	w := newWatcher()

	if w.IsUpdated("ui") {
		t.Error("unregistered key reported updated")
	}
	w.Register("ui")
	if !w.IsRegistered("ui") || w.IsUpdated("ui") {
		t.Fatal("fresh registration must be registered and clean")
	}

	w.MarkChanged()
	if !w.IsUpdated("ui") {
		t.Fatal("flag not set by MarkChanged")
	}
	// Reading does not clear the flag.
	if !w.IsUpdated("ui") {
		t.Error("flag cleared by reading it")
	}

	w.Unregister("ui")
	if w.IsRegistered("ui") || w.IsUpdated("ui") {
		t.Error("unregistered key still tracked")
	}
	w.Register("ui")
	if w.IsUpdated("ui") {
		t.Error("re-registration did not clear the flag")
	}
}

func TestStoreMarksWatchersAfterCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := setupTestStore(t)

	pw, vw := s.PlaylistWatcher(), s.VideoWatcher()
	pw.Register(1)
	vw.Register(1)

	pl := mustCreatePlaylist(t, s, "a")
	if !pw.IsUpdated(1) {
		t.Error("playlist watcher not marked by CreatePlaylist")
	}
	if vw.IsUpdated(1) {
		t.Error("video watcher marked by CreatePlaylist")
	}

	pw.Register(1)
	if err := s.AddVideoToPlaylist(ctx, pl, newVideo("v1")); err != nil {
		t.Fatal(err)
	}
	if !pw.IsUpdated(1) || !vw.IsUpdated(1) {
		t.Error("watchers not marked by AddVideoToPlaylist")
	}

	// A rolled back transaction marks nothing.
	pw.Register(1)
	vw.Register(1)
	if err := s.AddVideoToPlaylist(ctx, pl, newVideo("v1")); !errors.Is(err, ErrDuplicated) {
		t.Fatalf("expected ErrDuplicated, got %v", err)
	}
	if _, err := s.CreatePlaylist(ctx, "a", ""); !errors.Is(err, ErrDuplicated) {
		t.Fatalf("expected ErrDuplicated, got %v", err)
	}
	if pw.IsUpdated(1) || vw.IsUpdated(1) {
		t.Error("watchers marked by a failed operation")
	}

	if _, err := s.UpdateVideoByVideoID(ctx, "v1", SetVideoVolume(10)); err != nil {
		t.Fatal(err)
	}
	if !vw.IsUpdated(1) || pw.IsUpdated(1) {
		t.Errorf("after video update: video=%v playlist=%v", vw.IsUpdated(1), pw.IsUpdated(1))
	}
}
