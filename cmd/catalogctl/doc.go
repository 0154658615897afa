// Command catalogctl inspects and maintains a TubePlayer catalog file
// without the daemon.
//
// Usage:
//
//	catalogctl [-y] <command> [argument]
//
// Commands:
//
//	stats              Print playlist and video totals.
//
//	list [playlist]    List playlists, or the videos of one playlist id.
//
//	verify <file>      Check that a file is a catalog with the current
//	                   schema.
//
//	export <file>      Copy the catalog to file.
//
//	merge <file>       Add the playlists of another catalog. Playlists
//	                   whose title is taken are renamed.
//
//	import <file>      Replace the catalog with another file. The current
//	                   catalog is kept next to it with a .backup suffix.
//
// merge and import ask for confirmation on a terminal. Pass -y to skip the
// prompt; without a terminal -y is required.
//
// Environment:
//
//	DATABASE_DIR - Directory holding the catalog (default: /data)
//
// The daemon must not be running while merge or import rewrite the file.
package main
