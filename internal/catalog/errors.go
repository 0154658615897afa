package catalog

import "errors"

var (
	// ErrDuplicated means the playlist title or the playlist membership
	// already exists.
	ErrDuplicated = errors.New("catalog: duplicated")
	// ErrNotFound means the playlist or video does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrSchemaMismatch means a catalog file does not have the expected
	// tables, columns or schema version.
	ErrSchemaMismatch = errors.New("catalog: schema mismatch")
	// ErrIO means copying a catalog file failed.
	ErrIO = errors.New("catalog: file operation failed")
	// ErrInvariant means the stored counts disagree with the reference
	// tables. It indicates a bug or a corrupted file, not a caller error.
	ErrInvariant = errors.New("catalog: invariant violated")
	// ErrClosed means the Store has been closed.
	ErrClosed = errors.New("catalog: store is closed")
)
