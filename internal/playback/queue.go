package playback

import (
	"math/rand/v2"
	"sort"
	"strings"

	"tubeplayer/internal/catalog"
)

// Video is one queue entry.
type Video struct {
	VideoID  string `json:"videoId"`
	Title    string `json:"title"`
	Volume   int    `json:"volume"`
	Playtime int    `json:"playtime"`
}

// FromCatalog converts catalog videos to queue entries.
func FromCatalog(vs []catalog.Video) []Video {
	out := make([]Video, 0, len(vs))
	for _, v := range vs {
		out = append(out, Video{VideoID: v.VideoID, Title: v.Title, Volume: v.Volume, Playtime: v.Playtime})
	}
	return out
}

// Queue is the ordered list of videos of a playback session and the
// position in it. It is owned by the engine's control goroutine.
type Queue struct {
	videos []Video
	index  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: -1}
}

// Load replaces the content with vs, shuffled when shuffle is set and
// sorted by title otherwise. The position is reset.
func (q *Queue) Load(vs []Video, shuffle bool, rnd *rand.Rand) {
	q.videos = append([]Video(nil), vs...)
	q.index = -1
	if shuffle {
		shuffleFn := rand.Shuffle
		if rnd != nil {
			shuffleFn = rnd.Shuffle
		}
		shuffleFn(len(q.videos), func(i, j int) {
			q.videos[i], q.videos[j] = q.videos[j], q.videos[i]
		})
		return
	}
	sort.SliceStable(q.videos, func(i, j int) bool {
		return strings.ToLower(q.videos[i].Title) < strings.ToLower(q.videos[j].Title)
	})
}

// Reset empties the queue. Resetting an empty queue is a no-op.
func (q *Queue) Reset() {
	q.videos = nil
	q.index = -1
}

// Append adds videos at the tail without moving the position.
func (q *Queue) Append(vs ...Video) {
	q.videos = append(q.videos, vs...)
}

// Len returns the number of queued videos.
func (q *Queue) Len() int { return len(q.videos) }

// Index returns the position, or -1 when nothing is active.
func (q *Queue) Index() int { return q.index }

// Videos returns a copy of the queued videos.
func (q *Queue) Videos() []Video {
	return append([]Video(nil), q.videos...)
}

// HasActive reports whether the position points at a video.
func (q *Queue) HasActive() bool {
	return q.index >= 0 && q.index < len(q.videos)
}

// Active returns the video at the position.
func (q *Queue) Active() (Video, bool) {
	if !q.HasActive() {
		return Video{}, false
	}
	return q.videos[q.index], true
}

// SetActiveVolume updates the volume of the active entry.
func (q *Queue) SetActiveVolume(volume int) {
	if q.HasActive() {
		q.videos[q.index].Volume = volume
	}
}

// HasNext reports whether a video follows the active one.
func (q *Queue) HasNext() bool {
	return q.HasActive() && q.index+1 < len(q.videos)
}

// Next returns the video following the active one.
func (q *Queue) Next() (Video, bool) {
	if !q.HasNext() {
		return Video{}, false
	}
	return q.videos[q.index+1], true
}

// MoveToFirst moves to the first video. It fails on an empty queue.
func (q *Queue) MoveToFirst() bool {
	if len(q.videos) == 0 {
		return false
	}
	q.index = 0
	return true
}

// MoveToNext advances the position. It fails at the last video.
func (q *Queue) MoveToNext() bool {
	if !q.HasNext() {
		return false
	}
	q.index++
	return true
}

// MoveToPrev moves the position back. It fails at the first video.
func (q *Queue) MoveToPrev() bool {
	if !q.HasActive() || q.index == 0 {
		return false
	}
	q.index--
	return true
}
