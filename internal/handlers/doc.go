// Package handlers provides the HTTP control API of the player.
//
// It includes handlers for:
//   - Playlist and video catalog management
//   - Change watchers that clients poll instead of re-reading the catalog
//   - Catalog merge, import and export
//   - Playback control and status
//   - Health checks, version and metrics
package handlers
