// Package logging provides the leveled logger used throughout tubeplayer.
//
// Levels, from most to least verbose:
//   - DEBUG: state transitions, resolver and prefetch chatter
//   - INFO: playback sessions, catalog maintenance
//   - WARN: recoverable failures (retries, skipped prefetches)
//   - ERROR: invariant violations and failed operations
//
// The level comes from LOG_LEVEL, or DEBUG=1 as a shortcut. Components
// that log often take a scoped Logger from For so their lines carry a
// "[component]" tag.
package logging
