package handlers

import (
	"context"
	"time"

	"tubeplayer/internal/cache"
	"tubeplayer/internal/catalog"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/resolver"
)

// Engine is the playback control surface used by the API.
type Engine interface {
	Play(vs []playback.Video, shuffle bool) error
	Append(vs ...playback.Video) error
	Stop() error
	Next() error
	Prev() error
	Pause() error
	Resume() error
	SetVolume(volume int) error
	SetRepeat(repeat bool) error
	SetQuality(q resolver.Quality) error
	Interrupt(s playback.PhoneState) error
	Status() (playback.Status, error)
}

// Lookup fetches metadata of a remote video.
type Lookup interface {
	Lookup(ctx context.Context, videoID string) (*resolver.Metadata, error)
}

// Thumbnails downloads and scales a thumbnail image.
type Thumbnails interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ClientCounter reports connected event clients.
type ClientCounter interface {
	Clients() int
}

type Handlers struct {
	catalog   *catalog.Store
	engine    Engine
	lookup    Lookup
	thumbs    Thumbnails
	cache     *cache.Manager
	clients   ClientCounter
	startTime time.Time
}

// Deps are the collaborators of Handlers. Catalog and Engine are required;
// without Lookup, videos must be added with a title.
type Deps struct {
	Catalog    *catalog.Store
	Engine     Engine
	Lookup     Lookup
	Thumbnails Thumbnails
	Cache      *cache.Manager
	Clients    ClientCounter
}

func New(deps Deps) *Handlers {
	return &Handlers{
		catalog:   deps.Catalog,
		engine:    deps.Engine,
		lookup:    deps.Lookup,
		thumbs:    deps.Thumbnails,
		cache:     deps.Cache,
		clients:   deps.Clients,
		startTime: time.Now(),
	}
}
