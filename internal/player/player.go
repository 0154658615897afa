package player

import (
	"context"
	"fmt"
	"time"
)

// State is the lifecycle state of a player instance.
type State int

const (
	Invalid State = iota
	Idle
	Initialized
	Preparing
	Prepared
	Started
	Paused
	Stopped
	PlaybackCompleted
	Error
	End
)

var stateNames = [...]string{
	Invalid:           "Invalid",
	Idle:              "Idle",
	Initialized:       "Initialized",
	Preparing:         "Preparing",
	Prepared:          "Prepared",
	Started:           "Started",
	Paused:            "Paused",
	Stopped:           "Stopped",
	PlaybackCompleted: "PlaybackCompleted",
	Error:             "Error",
	End:               "End",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown player state %q", b)
}

// ErrorCode classifies asynchronous playback failures.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota + 1
	// ErrServerDied means the playback process died unexpectedly.
	ErrServerDied
	// ErrIO covers network and file read failures.
	ErrIO
	// ErrMalformed means the media could not be parsed.
	ErrMalformed
	// ErrUnsupported means no decoder is available for the media.
	ErrUnsupported
	// ErrNotValidForProgressive means the media cannot be played while it
	// downloads.
	ErrNotValidForProgressive
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:                "unknown",
	ErrServerDied:             "server died",
	ErrIO:                     "io",
	ErrMalformed:              "malformed",
	ErrUnsupported:            "unsupported",
	ErrNotValidForProgressive: "not valid for progressive playback",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Retryable reports whether playing the same source again may succeed.
func (c ErrorCode) Retryable() bool {
	return c != ErrNotValidForProgressive
}

// Callbacks receive asynchronous player events. They are invoked from
// player goroutines and must not block.
type Callbacks struct {
	OnPrepared   func()
	OnCompletion func()
	OnError      func(ErrorCode)
	// OnBuffering reports how much of the source is buffered, 0 to 100.
	OnBuffering func(percent int)
}

// Player plays one source. A new Player is created for every video.
type Player interface {
	// SetDataSource sets a local path or a URL. It fails when a local
	// file cannot be read.
	SetDataSource(ctx context.Context, source string) error
	// PrepareAsync inspects the source in the background and reports the
	// outcome through OnPrepared or OnError.
	PrepareAsync()
	Start() error
	Pause() error
	Stop() error
	// SetVolume takes a volume between 0 and 100.
	SetVolume(volume int)
	Position() time.Duration
	Duration() time.Duration
	// Release frees the player. It does not wait for teardown and no
	// callback fires afterwards.
	Release()
}

// Factory creates a fresh Player reporting to cb.
type Factory func(cb Callbacks) Player
