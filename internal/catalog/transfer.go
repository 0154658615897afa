package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"tubeplayer/internal/logging"
)

// BackupSuffix is appended to the live file name while Import runs. The
// backup is left in place after a successful import.
const BackupSuffix = ".backup"

// Verify checks that the file at path is a catalog with the expected
// schema. It returns ErrSchemaMismatch otherwise, and ErrIO when the file
// cannot be read.
func Verify(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { recordQuery("verify", start, err) }()

	db, err := openExternal(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	return verifySchema(ctx, db)
}

// openExternal opens another catalog file read-only.
func openExternal(ctx context.Context, path string) (*sql.DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	f.Close()

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return db, nil
}

type externalPlaylist struct {
	Playlist
	videos []Video
}

// readExternal loads every non-empty playlist of an external catalog, in
// title order, with its videos in membership order.
func readExternal(ctx context.Context, db *sql.DB) ([]externalPlaylist, error) {
	playlists, err := queryPlaylists(ctx, db,
		"SELECT "+columnList("", playlistColumns)+" FROM playlist ORDER BY title ASC")
	if err != nil {
		return nil, err
	}

	var out []externalPlaylist
	for _, p := range playlists {
		ref := videoRefTable(p.ID)
		videos, err := queryVideos(ctx, db,
			"SELECT "+columnList(tableVideo, videoColumns)+" FROM "+ref+
				" JOIN video ON "+ref+".videoid = video._id ORDER BY "+ref+"._id ASC")
		if err != nil {
			return nil, err
		}
		if len(videos) == 0 {
			continue
		}
		out = append(out, externalPlaylist{Playlist: p, videos: videos})
	}
	return out, nil
}

// Merge adds the playlists of the catalog at path to this one in a single
// transaction. A playlist whose title already exists is renamed to
// "<title>_<n>_" with the smallest free n. Videos are matched by VideoID
// and reused when present. Empty playlists are skipped.
func (s *Store) Merge(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { recordQuery("merge", start, err) }()

	ext, err := openExternal(ctx, path)
	if err != nil {
		return err
	}
	defer ext.Close()

	if err := verifySchema(ctx, ext); err != nil {
		return err
	}
	playlists, err := readExternal(ctx, ext)
	if err != nil {
		return fmt.Errorf("read external catalog: %w", err)
	}
	if len(playlists) == 0 {
		logging.Info("Merge of %s: nothing to merge", path)
		return nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		for _, p := range playlists {
			title, err := freeTitle(ctx, tx, p.Title)
			if err != nil {
				return err
			}
			id, err := insertPlaylist(ctx, tx, title, p.Description, p.Thumbnail)
			if err != nil {
				return err
			}

			for _, v := range p.videos {
				rowID, found, err := videoRowID(ctx, tx, v.VideoID)
				if err != nil {
					return err
				}
				if !found {
					if rowID, err = insertVideo(ctx, tx, v); err != nil {
						return err
					}
				}
				if err := insertVideoRef(ctx, tx, id, rowID); err != nil {
					return err
				}
			}
			logging.Debug("Merged playlist %q as %q (%d videos)", p.Title, title, len(p.videos))
		}
		c.playlists, c.videos = true, true
		return nil
	})
	if err == nil {
		logging.Info("Merged %d playlists from %s", len(playlists), path)
	}
	return err
}

func freeTitle(ctx context.Context, q querier, title string) (string, error) {
	candidate := title
	for i := 1; ; i++ {
		taken, err := playlistTitleExists(ctx, q, candidate)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = title + "_" + strconv.Itoa(i) + "_"
	}
}

// Import replaces the live catalog with the file at path. The current
// file is kept as <path>.backup and restored if the copy fails. Nothing
// else may use the Store while Import runs.
func (s *Store) Import(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { recordQuery("import", start, err) }()

	if err := Verify(ctx, path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	if err := s.closeLocked(); err != nil {
		logging.Warn("Closing catalog before import: %v", err)
	}
	removeSidecars(s.path)

	backup := s.path + BackupSuffix
	if err := os.Rename(s.path, backup); err != nil {
		return errors.Join(fmt.Errorf("%w: backup: %v", ErrIO, err), s.open(ctx))
	}

	if err := s.copyFile(path, s.path); err != nil {
		logging.Error("Import of %s failed, restoring backup: %v", path, err)
		os.Remove(s.path)
		restoreErr := os.Rename(backup, s.path)
		return errors.Join(fmt.Errorf("%w: %v", ErrIO, err), restoreErr, s.open(ctx))
	}

	if err := s.open(ctx); err != nil {
		logging.Error("Imported catalog failed to open, restoring backup: %v", err)
		os.Remove(s.path)
		restoreErr := os.Rename(backup, s.path)
		return errors.Join(err, restoreErr, s.open(ctx))
	}

	s.playlists.MarkChanged()
	s.videos.MarkChanged()
	logging.Info("Imported catalog from %s (backup at %s)", path, backup)
	return nil
}

// Export copies the live catalog to dest. A partial dest is removed on
// failure. Nothing else may use the Store while Export runs.
func (s *Store) Export(ctx context.Context, dest string) (err error) {
	start := time.Now()
	defer func() { recordQuery("export", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	if err := s.closeLocked(); err != nil {
		logging.Warn("Closing catalog before export: %v", err)
	}

	var copyErr error
	if err := s.copyFile(s.path, dest); err != nil {
		os.Remove(dest)
		copyErr = fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := s.open(ctx); err != nil {
		return errors.Join(copyErr, err)
	}
	if copyErr == nil {
		logging.Info("Exported catalog to %s", dest)
	}
	return copyErr
}

// removeSidecars deletes WAL files left next to a closed database so they
// are not applied to a different file at the same path.
func removeSidecars(path string) {
	for _, p := range []string{path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove %s: %v", p, err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
