package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// DefaultVideoVolume is stored for videos added with InvalidVolume.
const DefaultVideoVolume = 50

// Options tunes a Store. The zero value is usable.
type Options struct {
	// DefaultVolume replaces InvalidVolume on insert. Zero selects
	// DefaultVideoVolume.
	DefaultVolume int
	// Now is the clock used for time_add. Defaults to time.Now.
	Now func() time.Time
}

// Store is the catalog. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	opts Options

	playlists *Watcher
	videos    *Watcher

	// copyFile moves whole catalog files for Import and Export.
	copyFile func(src, dst string) error
}

// Open opens (creating if needed) the catalog at path. The parent
// directory must exist.
func Open(ctx context.Context, path string, opts *Options) (*Store, error) {
	logging.Info("Catalog path: %s", path)

	if err := diagnosePermissions(path); err != nil {
		logging.Warn("Catalog permission diagnostics: %v", err)
	}

	s := &Store{
		path:      path,
		playlists: newWatcher(),
		videos:    newWatcher(),
		copyFile:  copyFile,
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.DefaultVolume == 0 {
		s.opts.DefaultVolume = DefaultVideoVolume
	}
	if s.opts.Now == nil {
		s.opts.Now = time.Now
	}

	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
}

// open connects and prepares the schema. Caller holds s.mu or owns s.
func (s *Store) open(ctx context.Context) error {
	db, err := sql.Open("sqlite3", dsn(s.path))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return fmt.Errorf("failed to connect to catalog: %w", err)
	}

	if err := initialize(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return err
	}

	s.db = db
	return nil
}

// initialize creates the schema of a new file and verifies an existing one.
func initialize(ctx context.Context, db *sql.DB) error {
	defs, err := tableDefinitions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read catalog schema: %w", err)
	}
	_, hasPlaylist := defs[tablePlaylist]
	_, hasVideo := defs[tableVideo]
	if !hasPlaylist && !hasVideo {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := createSchema(ctx, tx); err != nil {
			return errors.Join(err, tx.Rollback())
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit catalog schema: %w", err)
		}
		logging.Info("Created catalog schema version %d", SchemaVersion)
		return nil
	}
	return verifySchema(ctx, db)
}

// closeLocked checkpoints the WAL into the main file and closes the
// connection. Caller holds s.mu.
func (s *Store) closeLocked() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn("WAL checkpoint failed: %v", err)
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Close closes the catalog.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// PlaylistWatcher returns the watch group of the playlist table.
func (s *Store) PlaylistWatcher() *Watcher {
	return s.playlists
}

// VideoWatcher returns the watch group of the video table.
func (s *Store) VideoWatcher() *Watcher {
	return s.videos
}

// changes records which watch groups a transaction touched.
type changes struct {
	playlists bool
	videos    bool
}

func (s *Store) mark(c changes) {
	if c.playlists {
		s.playlists.MarkChanged()
	}
	if c.videos {
		s.videos.MarkChanged()
	}
}

// withTx runs fn in one transaction. Watchers are marked only after a
// successful commit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx, c *changes) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var c changes
	if err := fn(tx, &c); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		if errors.Is(err, ErrInvariant) {
			logging.Error("%v", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())

	s.mark(c)
	return nil
}

// read runs fn against the connection without a transaction.
func (s *Store) read(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	return fn(s.db)
}

// recordQuery records catalog query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Stats returns catalog totals.
func (s *Store) Stats(ctx context.Context) (st Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	err = s.read(ctx, func(q querier) error {
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlist").Scan(&st.Playlists); err != nil {
			return err
		}
		return q.QueryRowContext(ctx, "SELECT COUNT(*) FROM video").Scan(&st.Videos)
	})
	return st, err
}

// diagnosePermissions logs the state of the catalog file and its WAL
// sidecars and repairs read-only sidecars.
func diagnosePermissions(path string) error {
	dir := filepath.Dir(path)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat catalog directory: %w", err)
	}
	logging.Debug("Catalog directory: %s (mode: %v)", dir, dirInfo.Mode())

	if info, err := os.Stat(path); err == nil {
		logging.Debug("Catalog file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Catalog file is read-only! Mode: %v", info.Mode())
		}
	}

	for _, sidecar := range []string{path + "-wal", path + "-shm"} {
		info, err := os.Stat(sidecar)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", sidecar, info.Mode())
		if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", sidecar, chmodErr)
		} else {
			logging.Info("Fixed %s permissions", sidecar)
		}
	}
	return nil
}
