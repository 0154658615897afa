package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/kkdai/youtube/v2"
)

func TestParseQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{"low", QualityLow, false},
		{"LOW", QualityLow, false},
		{" normal ", QualityNormal, false},
		{"", QualityNormal, false},
		{"high", QualityNormal, true},
	}
	for _, tt := range tests {
		got, err := ParseQuality(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseQuality(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseQuality(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSelectFormat(t *testing.T) {
	t.Parallel()

	formats := youtube.FormatList{
		{ItagNo: 1, MimeType: "video/mp4", URL: "u1", AudioChannels: 2, Height: 144, Bitrate: 100},
		{ItagNo: 2, MimeType: "video/mp4", URL: "u2", AudioChannels: 2, Height: 240, Bitrate: 200},
		{ItagNo: 3, MimeType: "video/mp4", URL: "u3", AudioChannels: 2, Height: 480, Bitrate: 400},
		{ItagNo: 4, MimeType: "video/mp4", URL: "u4", AudioChannels: 2, Height: 720, Bitrate: 800},
		{ItagNo: 5, MimeType: "video/webm", URL: "u5", AudioChannels: 2, Height: 360},
		{ItagNo: 6, MimeType: "video/mp4", URL: "u6", Height: 360},
		{ItagNo: 7, MimeType: "audio/mp4", URL: "u7", AudioChannels: 2},
	}

	tests := []struct {
		name  string
		score Score
		want  int
	}{
		{"low picks smallest", QualityLow.Score(), 1},
		{"normal rounds up on tie", QualityNormal.Score(), 3},
		{"normal rounds down when asked", Score{Height: 360, PreferHigh: false}, 2},
		{"exact", Score{Height: 720}, 4},
	}
	for _, tt := range tests {
		got, err := SelectFormat(formats, tt.score)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got.ItagNo != tt.want {
			t.Errorf("%s: itag = %d, want %d", tt.name, got.ItagNo, tt.want)
		}
	}
}

func TestSelectFormatBitrateTieBreak(t *testing.T) {
	t.Parallel()

	formats := youtube.FormatList{
		{ItagNo: 1, MimeType: "video/mp4", URL: "a", AudioChannels: 2, Height: 360, Bitrate: 100},
		{ItagNo: 2, MimeType: "video/mp4", URL: "b", AudioChannels: 2, Height: 360, Bitrate: 300},
	}
	got, err := SelectFormat(formats, QualityNormal.Score())
	if err != nil {
		t.Fatal(err)
	}
	if got.ItagNo != 2 {
		t.Errorf("itag = %d, want 2", got.ItagNo)
	}
}

func TestSelectFormatNone(t *testing.T) {
	t.Parallel()

	formats := youtube.FormatList{
		{ItagNo: 1, MimeType: "audio/mp4", URL: "a", AudioChannels: 2},
		{ItagNo: 2, MimeType: "video/mp4", AudioChannels: 2, Height: 360},
	}
	if _, err := SelectFormat(formats, QualityLow.Score()); !errors.Is(err, ErrNoFormat) {
		t.Errorf("err = %v, want ErrNoFormat", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if err := classify("x", youtube.ErrVideoPrivate); !errors.Is(err, ErrRestricted) {
		t.Errorf("private video: %v is not restricted", err)
	}
	if err := classify("x", youtube.ErrLoginRequired); !errors.Is(err, youtube.ErrLoginRequired) {
		t.Errorf("cause lost: %v", err)
	}
	if err := classify("x", context.DeadlineExceeded); errors.Is(err, ErrRestricted) {
		t.Errorf("timeout classified as restricted: %v", err)
	}
}

func TestResolveCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	y := NewYouTube(nil, 1)
	// Consume the single burst token so Wait has to block.
	y.limiter.Allow()
	if _, err := y.Resolve(ctx, "dQw4w9WgXcQ", QualityLow); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestParseVideoID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: " dQw4w9WgXcQ\n", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", want: "dQw4w9WgXcQ"},
		{in: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "short", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseVideoID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseVideoID(%q) = %q, %v", tt.in, got, err)
		}
	}
}
