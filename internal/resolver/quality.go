package resolver

import (
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Quality is the user's stream quality preference.
type Quality int

const (
	// QualityLow prefers the smallest rendition available.
	QualityLow Quality = iota
	// QualityNormal prefers a mid-low rendition, rounding upwards.
	QualityNormal
)

// ParseQuality parses "low" or "normal" (case-insensitive).
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow, nil
	case "normal", "":
		return QualityNormal, nil
	}
	return QualityNormal, fmt.Errorf("unknown quality %q", s)
}

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityNormal:
		return "normal"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Score is the numeric form of a Quality: a target video height and the
// direction to round in when no rendition matches it exactly.
type Score struct {
	Height     int
	PreferHigh bool
}

// Score maps the preference to its selection policy.
func (q Quality) Score() Score {
	if q == QualityNormal {
		return Score{Height: 360, PreferHigh: true}
	}
	return Score{Height: 144, PreferHigh: false}
}

// SelectFormat picks the progressive mp4 rendition closest to the score.
// Ties in height are broken by bitrate.
func SelectFormat(formats youtube.FormatList, s Score) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 || (f.URL == "" && f.Cipher == "") {
			continue
		}
		if !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if best == nil || better(f, best, s) {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoFormat
	}
	return best, nil
}

func better(a, b *youtube.Format, s Score) bool {
	da, db := distance(a.Height, s), distance(b.Height, s)
	if da != db {
		return da < db
	}
	if a.Height != b.Height {
		return (a.Height > b.Height) == s.PreferHigh
	}
	return a.Bitrate > b.Bitrate
}

func distance(height int, s Score) int {
	d := height - s.Height
	if d < 0 {
		d = -d
	}
	return d
}
