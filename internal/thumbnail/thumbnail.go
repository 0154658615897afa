// Package thumbnail produces the small JPEG previews stored with each video
// in the catalog.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os/exec"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"tubeplayer/internal/logging"
)

// Bounds of a generated thumbnail.
const (
	Width  = 320
	Height = 180
)

// MaxSourceBytes caps the size of a downloaded source image.
const MaxSourceBytes = 8 << 20

var log = logging.For("thumbnail")

// Generator fetches and scales thumbnails.
type Generator struct {
	client *http.Client
}

// New returns a Generator. A nil client gets a 15 second timeout.
func New(client *http.Client) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Generator{client: client}
}

// Fetch downloads the image at url and returns it as a JPEG thumbnail.
func (g *Generator) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thumbnail: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("thumbnail larger than %d bytes", MaxSourceBytes)
	}
	return Encode(bytes.NewReader(data))
}

// FromVideo extracts a frame one second into the video at path using
// ffmpeg, falling back to the first frame for very short clips.
func (g *Generator) FromVideo(ctx context.Context, path string) ([]byte, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	frame, err := extractFrame(ctx, path, "-ss", "00:00:01")
	if err != nil {
		log.Debug("Frame at 1s failed for %s: %v, using first frame", path, err)
		frame, err = extractFrame(ctx, path)
		if err != nil {
			return nil, err
		}
	}
	return Encode(bytes.NewReader(frame))
}

func extractFrame(ctx context.Context, path string, seek ...string) ([]byte, error) {
	args := append([]string{"-v", "error"}, seek...)
	args = append(args, "-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}
	return stdout.Bytes(), nil
}

// Encode decodes a jpeg, png, gif or webp image, fits it into
// Width x Height and re-encodes it as JPEG.
func Encode(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}
	return encodeImage(img)
}

func encodeImage(img image.Image) ([]byte, error) {
	thumb := imaging.Fit(img, Width, Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
