/*
Package playback plays a queue of catalog videos, one after the other.

The Engine owns a Queue and at most one player.Player. Everything it does
happens on a single control goroutine started with Run: public methods are
sent to it and wait for the answer, while resolutions, player callbacks and
timers post their results back to it before touching any state.

# Sequencing

Starting a video evicts the cache down to the active and next videos,
replaces the player and then takes one of three paths:

  - the video is cached: the file is played directly and the next video is
    prefetched right away;
  - the network is down: the start is retried after a delay;
  - otherwise the stream URL is resolved in the background and played once
    known.

Failures are retried with a per-video budget. When the budget runs out the
engine skips to the next video if the network is up, or stops with
StopNetworkUnavailable or StopUnknownError. Completing the last video stops
with StopDone, or restarts the queue in repeat mode.

Every player instance and every resolution carries the generation number
current when it was created. Results from an older generation are dropped.

# Suspension

Interrupt(PhoneRinging) pauses playback and holds any video that becomes
ready; Interrupt(PhoneIdle) lifts the hold and resumes what the suspension
interrupted.

# Persistence

Play timestamps and volume changes are written to the catalog by a single
worker fed through a bounded queue. Run flushes the queue before returning.
*/
package playback
