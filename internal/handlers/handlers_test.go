package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/player"
	"tubeplayer/internal/resolver"
)

// fakeEngine records control calls and reports a canned status.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	queue   []playback.Video
	shuffle bool
	volume  int
	repeat  bool
	quality resolver.Quality
	phone   playback.PhoneState
	err     error
}

func (e *fakeEngine) record(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, name)
	return e.err
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Play(vs []playback.Video, shuffle bool) error {
	if err := e.record("play"); err != nil {
		return err
	}
	if len(vs) == 0 {
		return playback.ErrEmptyQueue
	}
	e.mu.Lock()
	e.queue, e.shuffle = vs, shuffle
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Append(vs ...playback.Video) error {
	if err := e.record("append"); err != nil {
		return err
	}
	e.mu.Lock()
	e.queue = append(e.queue, vs...)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Stop() error   { return e.record("stop") }
func (e *fakeEngine) Next() error   { return e.record("next") }
func (e *fakeEngine) Prev() error   { return e.record("prev") }
func (e *fakeEngine) Pause() error  { return e.record("pause") }
func (e *fakeEngine) Resume() error { return e.record("resume") }

func (e *fakeEngine) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return playback.ErrVolume
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	return e.record("volume")
}

func (e *fakeEngine) SetRepeat(r bool) error {
	e.mu.Lock()
	e.repeat = r
	e.mu.Unlock()
	return e.record("repeat")
}

func (e *fakeEngine) SetQuality(q resolver.Quality) error {
	e.mu.Lock()
	e.quality = q
	e.mu.Unlock()
	return e.record("quality")
}

func (e *fakeEngine) Interrupt(s playback.PhoneState) error {
	e.mu.Lock()
	e.phone = s
	e.mu.Unlock()
	return e.record("interrupt")
}

func (e *fakeEngine) Status() (playback.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := playback.Status{
		State:  player.Idle,
		Index:  -1,
		Queue:  append([]playback.Video(nil), e.queue...),
		Volume: e.volume,
		Repeat: e.repeat,
	}
	if len(e.queue) > 0 {
		st.State = player.Started
		st.Index = 0
		st.Active = &st.Queue[0]
	}
	if errors.Is(e.err, playback.ErrClosed) {
		return playback.Status{}, e.err
	}
	return st, nil
}

type fakeLookup struct {
	md  resolver.Metadata
	err error
}

func (l *fakeLookup) Lookup(_ context.Context, videoID string) (*resolver.Metadata, error) {
	if l.err != nil {
		return nil, l.err
	}
	md := l.md
	md.VideoID = videoID
	return &md, nil
}

type fakeThumbs struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeThumbs) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

type testEnv struct {
	h      *Handlers
	store  *catalog.Store
	engine *fakeEngine
	lookup *fakeLookup
	thumbs *fakeThumbs
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(context.Background(), filepath.Join(dir, "catalog.db"), nil)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:  store,
		engine: &fakeEngine{},
		lookup: &fakeLookup{md: resolver.Metadata{
			Title:        "Looked up",
			Author:       "Somebody",
			Description:  "from the network",
			Duration:     215 * time.Second,
			ThumbnailURL: "https://img.example/x.jpg",
		}},
		thumbs: &fakeThumbs{data: []byte{0xff, 0xd8, 0xff}},
		dir:    dir,
	}
	env.h = New(Deps{
		Catalog:    store,
		Engine:     env.engine,
		Lookup:     env.lookup,
		Thumbnails: env.thumbs,
	})
	return env
}

// do runs handler with the given mux variables and JSON body.
func do(t *testing.T, handler http.HandlerFunc, method, target string, vars map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, code, w.Body.String())
	}
}

// seedPlaylist creates a playlist holding the given video ids.
func (env *testEnv) seedPlaylist(t *testing.T, title string, videoIDs ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := env.store.CreatePlaylist(ctx, title, "")
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	for _, vid := range videoIDs {
		err := env.store.AddVideoToPlaylist(ctx, id, catalog.NewVideo{
			VideoID:  vid,
			Title:    "Video " + vid,
			Playtime: 60,
			Volume:   catalog.InvalidVolume,
		})
		if err != nil {
			t.Fatalf("add %s: %v", vid, err)
		}
	}
	return id
}

func (env *testEnv) videoRow(t *testing.T, videoID string) int64 {
	t.Helper()
	v, err := env.store.VideoByVideoID(context.Background(), videoID)
	if err != nil {
		t.Fatalf("video %s: %v", videoID, err)
	}
	return v.ID
}
