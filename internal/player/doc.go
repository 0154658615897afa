/*
Package player defines the media player abstraction driven by the playback
engine and provides an implementation on top of ffplay.

# Lifecycle

A Player is single use. The engine creates one per video with a Factory,
sets its data source, prepares it asynchronously, starts it once prepared
and releases it when moving on:

	Idle -> Initialized -> Preparing -> Prepared -> Started <-> Paused

Completion, errors and buffering progress arrive through Callbacks.

# FFPlay

The FFPlay backend probes the source with ffprobe while preparing and plays
it with "ffplay -nodisp -autoexit". Pausing stops the process with SIGSTOP
and resuming continues it with SIGCONT. Volume changes during playback
restart ffplay at the current position. The position is tracked from the
statistics ffplay prints on stderr.
*/
package player
