// Package resolver turns external video ids into playable stream URLs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/time/rate"

	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
)

var (
	// ErrNoFormat means the video has no progressive mp4 rendition.
	ErrNoFormat = errors.New("no playable format")
	// ErrRestricted covers private, login-only and embed-disabled videos.
	ErrRestricted = errors.New("video is restricted")
)

var log = logging.For("resolver")

// Resolver resolves a video id to a stream URL. Cancelling ctx abandons
// the request.
type Resolver interface {
	Resolve(ctx context.Context, videoID string, q Quality) (string, error)
}

// Metadata describes a remote video.
type Metadata struct {
	VideoID      string
	Title        string
	Author       string
	Description  string
	Duration     time.Duration
	ThumbnailURL string
}

// YouTube resolves ids against YouTube. Requests are throttled by a
// shared token bucket.
type YouTube struct {
	client  *youtube.Client
	limiter *rate.Limiter
}

// NewYouTube builds a resolver allowing perSecond requests per second.
// A non-positive rate disables throttling.
func NewYouTube(httpClient *http.Client, perSecond float64) *YouTube {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &YouTube{
		client:  &youtube.Client{HTTPClient: httpClient},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Client returns the underlying YouTube client.
func (y *YouTube) Client() *youtube.Client {
	return y.client
}

// Video fetches the video description including its formats.
func (y *YouTube) Video(ctx context.Context, videoID string) (*youtube.Video, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classify(videoID, err)
	}
	return video, nil
}

// Resolve implements Resolver.
func (y *YouTube) Resolve(ctx context.Context, videoID string, q Quality) (string, error) {
	start := time.Now()
	url, err := y.resolve(ctx, videoID, q)
	metrics.ResolverDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.ResolverRequestsTotal.WithLabelValues("success").Inc()
	case ctx.Err() != nil:
		metrics.ResolverRequestsTotal.WithLabelValues("canceled").Inc()
	default:
		metrics.ResolverRequestsTotal.WithLabelValues("error").Inc()
		log.Warn("Resolve %s failed: %v", videoID, err)
	}
	return url, err
}

func (y *YouTube) resolve(ctx context.Context, videoID string, q Quality) (string, error) {
	video, err := y.Video(ctx, videoID)
	if err != nil {
		return "", err
	}
	format, err := SelectFormat(video.Formats, q.Score())
	if err != nil {
		return "", fmt.Errorf("%s: %w", videoID, err)
	}
	log.Debug("Resolved %s to itag %d (%s)", videoID, format.ItagNo, format.QualityLabel)
	url, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", classify(videoID, err)
	}
	return url, nil
}

// Lookup returns metadata for a video id.
func (y *YouTube) Lookup(ctx context.Context, videoID string) (*Metadata, error) {
	video, err := y.Video(ctx, videoID)
	if err != nil {
		return nil, err
	}
	md := &Metadata{
		VideoID:     video.ID,
		Title:       video.Title,
		Author:      video.Author,
		Description: video.Description,
		Duration:    video.Duration,
	}
	var bestWidth uint
	for _, t := range video.Thumbnails {
		if md.ThumbnailURL == "" || t.Width > bestWidth {
			md.ThumbnailURL = t.URL
			bestWidth = t.Width
		}
	}
	return md, nil
}

func classify(videoID string, err error) error {
	var statusErr *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &statusErr):
		return fmt.Errorf("%s: %w: %w", videoID, ErrRestricted, err)
	}
	return fmt.Errorf("%s: %w", videoID, err)
}

// ParseVideoID accepts a bare video id or a watch, embed, shorts or short
// link and returns the id.
func ParseVideoID(s string) (string, error) {
	id, err := youtube.ExtractVideoID(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid video id %q: %w", s, err)
	}
	return id, nil
}
