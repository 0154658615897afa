package playback

import (
	"fmt"
	"strings"

	"tubeplayer/internal/player"
)

// StopReason tells why a playback session ended.
type StopReason int

const (
	// StopDone means the queue played to its end.
	StopDone StopReason = iota
	// StopForceStopped means playback was stopped on request.
	StopForceStopped
	// StopNetworkUnavailable means retries ran out while offline.
	StopNetworkUnavailable
	// StopUnknownError means retries ran out while online, or the player
	// reported a non-retryable error.
	StopUnknownError
)

var stopReasonNames = [...]string{
	StopDone:               "done",
	StopForceStopped:       "force_stopped",
	StopNetworkUnavailable: "network_unavailable",
	StopUnknownError:       "unknown_error",
}

func (r StopReason) String() string {
	if r >= 0 && int(r) < len(stopReasonNames) {
		return stopReasonNames[r]
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// MarshalText encodes the reason by name.
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// PhoneState is the telephony signal driving suspension.
type PhoneState int

const (
	PhoneIdle PhoneState = iota
	PhoneRinging
	PhoneOffhook
)

// ParsePhoneState parses "idle", "ringing" or "offhook".
func ParsePhoneState(s string) (PhoneState, error) {
	switch strings.ToLower(s) {
	case "idle":
		return PhoneIdle, nil
	case "ringing":
		return PhoneRinging, nil
	case "offhook":
		return PhoneOffhook, nil
	}
	return PhoneIdle, fmt.Errorf("unknown phone state %q", s)
}

// Listener receives engine events on the control goroutine. Implementations
// must return quickly and must not call back into the Engine.
type Listener interface {
	OnStateChanged(from, to player.State)
	OnBufferingChanged(percent int)
	OnQueueStarted()
	OnQueueStopped(reason StopReason)
	OnQueueChanged()
}

// NopListener implements Listener with empty methods.
type NopListener struct{}

func (NopListener) OnStateChanged(from, to player.State) {}
func (NopListener) OnBufferingChanged(percent int)       {}
func (NopListener) OnQueueStarted()                      {}
func (NopListener) OnQueueStopped(reason StopReason)     {}
func (NopListener) OnQueueChanged()                      {}

// Status is a snapshot of the engine.
type Status struct {
	Session    string       `json:"session,omitempty"`
	State      player.State `json:"state"`
	Suspended  bool         `json:"suspended"`
	Index      int          `json:"index"`
	Queue      []Video      `json:"queue"`
	Active     *Video       `json:"active,omitempty"`
	PositionMs int64        `json:"positionMs"`
	DurationMs int64        `json:"durationMs"`
	Volume     int          `json:"volume"`
	Buffering  int          `json:"buffering"`
	Quality    string       `json:"quality"`
	Repeat     bool         `json:"repeat"`
}
