// Package catalog is the persistent store of playlists and videos.
//
// The catalog is a single SQLite file with three kinds of tables:
//
//   - playlist: one row per playlist, with a unique title and a size
//   - video: one row per video, keyed internally by _id and externally by
//     its video id, carrying a reference count
//   - videoref_<playlist id>: one table per playlist listing the _id of
//     every member video
//
// A video exists only while at least one playlist references it. Every
// mutation that touches more than one row runs in a single transaction,
// so Playlist.Size always equals the number of rows in its reference
// table and Video.RefCount always equals the number of reference rows
// pointing at the video across all playlists.
//
// The Store uses exactly one connection. Readers and writers serialize on
// it; there is no read concurrency to exploit in a catalog this size.
//
// # Watchers
//
// Callers that cache query results register a key with PlaylistWatcher or
// VideoWatcher and poll IsUpdated. The flag is set by every committed
// mutation of the watched table and is only cleared by registering again.
//
// # Moving catalogs between files
//
// Merge copies another catalog file into the live one. Import replaces
// the live file and Export copies it out. Import and Export close the
// connection while they work; callers must make sure nothing else uses
// the Store in the meantime.
package catalog
