package prefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tubeplayer/internal/cache"
	"tubeplayer/internal/metrics"
	"tubeplayer/internal/resolver"
)

// ErrIdleTimeout is returned when a download stalls.
var ErrIdleTimeout = errors.New("download stalled")

// DefaultIdleTimeout bounds the time between two successful reads.
const DefaultIdleTimeout = 30 * time.Second

// Fetcher downloads one video to dest.
type Fetcher interface {
	Fetch(ctx context.Context, videoID, dest string, q resolver.Quality) error
}

// YouTubeFetcher downloads the rendition the resolver would pick for the
// same quality.
type YouTubeFetcher struct {
	yt   *resolver.YouTube
	idle time.Duration
}

// NewYouTubeFetcher returns a fetcher sharing yt's client and rate limit.
func NewYouTubeFetcher(yt *resolver.YouTube, idle time.Duration) *YouTubeFetcher {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &YouTubeFetcher{yt: yt, idle: idle}
}

// Fetch implements Fetcher.
func (f *YouTubeFetcher) Fetch(ctx context.Context, videoID, dest string, q resolver.Quality) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	video, err := f.yt.Video(ctx, videoID)
	if err != nil {
		return err
	}
	format, err := resolver.SelectFormat(video.Formats, q.Score())
	if err != nil {
		return fmt.Errorf("%s: %w", videoID, err)
	}
	stream, _, err := f.yt.Client().GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", videoID, err)
	}
	defer stream.Close()

	return WriteFile(ctx, dest, newIdleReader(stream, f.idle, cancel))
}

// WriteFile copies r into dest through a temporary ".part" file which is
// renamed into place only once the copy completed.
func WriteFile(ctx context.Context, dest string, r io.Reader) error {
	part := dest + cache.PartialExt
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}

	n, copyErr := io.Copy(out, r)
	metrics.PrefetchBytes.Add(float64(n))
	if copyErr == nil {
		copyErr = out.Sync()
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && ctx.Err() != nil {
		copyErr = context.Cause(ctx)
	}
	if copyErr != nil {
		os.Remove(part)
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return fmt.Errorf("write %s: %w", part, copyErr)
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("rename %s: %w", part, err)
	}
	return nil
}

// idleReader cancels its context when no read completes for idle.
type idleReader struct {
	r     io.Reader
	idle  time.Duration
	once  sync.Once
	timer *time.Timer
}

func newIdleReader(r io.Reader, idle time.Duration, cancel context.CancelCauseFunc) *idleReader {
	ir := &idleReader{r: r, idle: idle}
	ir.timer = time.AfterFunc(idle, func() { cancel(ErrIdleTimeout) })
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	if err != nil {
		ir.once.Do(func() { ir.timer.Stop() })
	}
	return n, err
}
