package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreatePlaylist creates an empty playlist and its reference table.
// It returns ErrDuplicated if the title is taken.
func (s *Store) CreatePlaylist(ctx context.Context, title, description string) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("create_playlist", start, err) }()

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		var err error
		id, err = insertPlaylist(ctx, tx, title, description, nil)
		c.playlists = err == nil
		return err
	})
	return id, err
}

// DeletePlaylist removes a playlist, releases every video it referenced
// and drops its reference table. It returns the number of playlists
// removed, which is 0 when id does not exist.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_playlist", start, err) }()

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		ok, err := playlistExists(ctx, tx, id)
		if err != nil || !ok {
			return err
		}

		refs, err := refVideoIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, vid := range refs {
			if err := releaseVideo(ctx, tx, vid); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+videoRefTable(id)); err != nil {
			return fmt.Errorf("drop reference table: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM playlist WHERE _id = ?", id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		c.playlists = true
		c.videos = len(refs) > 0
		return err
	})
	return n, err
}

// UpdatePlaylist applies updates to one playlist and returns the number of
// rows changed. Renaming to a title already in use returns ErrDuplicated.
func (s *Store) UpdatePlaylist(ctx context.Context, id int64, updates ...PlaylistUpdate) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("update_playlist", start, err) }()

	if len(updates) == 0 {
		return 0, nil
	}
	cols := make([]column, len(updates))
	vals := make([]value, len(updates))
	for i, u := range updates {
		cols[i], vals[i] = u.col, u.val
	}

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		for i, col := range cols {
			if col != colPlTitle {
				continue
			}
			var other int64
			err := tx.QueryRowContext(ctx,
				"SELECT _id FROM playlist WHERE title = ? AND _id != ?", vals[i].text, id).Scan(&other)
			if err == nil {
				return fmt.Errorf("%w: playlist %q", ErrDuplicated, vals[i].text)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		query, args := updateSQL(tablePlaylist, "_id", cols, vals, id)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		c.playlists = n > 0
		return err
	})
	return n, err
}

// Playlists lists every playlist ordered by title.
func (s *Store) Playlists(ctx context.Context) (list []Playlist, err error) {
	start := time.Now()
	defer func() { recordQuery("list_playlists", start, err) }()

	err = s.read(ctx, func(q querier) error {
		var err error
		list, err = queryPlaylists(ctx, q, "SELECT "+columnList("", playlistColumns)+" FROM playlist ORDER BY title ASC")
		return err
	})
	return list, err
}

// Playlist returns one playlist or ErrNotFound.
func (s *Store) Playlist(ctx context.Context, id int64) (p *Playlist, err error) {
	start := time.Now()
	defer func() { recordQuery("get_playlist", start, err) }()

	err = s.read(ctx, func(q querier) error {
		list, err := queryPlaylists(ctx, q,
			"SELECT "+columnList("", playlistColumns)+" FROM playlist WHERE _id = ?", id)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("%w: playlist %d", ErrNotFound, id)
		}
		p = &list[0]
		return nil
	})
	return p, err
}

// ContainsPlaylist reports whether a playlist with exactly this title exists.
func (s *Store) ContainsPlaylist(ctx context.Context, title string) (ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("contains", start, err) }()

	err = s.read(ctx, func(q querier) error {
		var err error
		ok, err = playlistTitleExists(ctx, q, title)
		return err
	})
	return ok, err
}

// PlaylistsContainingVideo returns the playlists that reference the video
// with row id videoRowID, ordered by title. It checks every playlist.
func (s *Store) PlaylistsContainingVideo(ctx context.Context, videoRowID int64) (list []Playlist, err error) {
	start := time.Now()
	defer func() { recordQuery("containing_playlists", start, err) }()

	err = s.read(ctx, func(q querier) error {
		all, err := queryPlaylists(ctx, q, "SELECT "+columnList("", playlistColumns)+" FROM playlist ORDER BY title ASC")
		if err != nil {
			return err
		}
		for _, p := range all {
			ok, err := refExists(ctx, q, p.ID, videoRowID)
			if err != nil {
				return err
			}
			if ok {
				list = append(list, p)
			}
		}
		return nil
	})
	return list, err
}

func insertPlaylist(ctx context.Context, q querier, title, description string, thumbnail []byte) (int64, error) {
	taken, err := playlistTitleExists(ctx, q, title)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, fmt.Errorf("%w: playlist %q", ErrDuplicated, title)
	}
	if thumbnail == nil {
		thumbnail = []byte{}
	}

	res, err := q.ExecContext(ctx,
		"INSERT INTO playlist (title, description, thumbnail, size) VALUES (?, ?, ?, 0)",
		title, description, thumbnail)
	if err != nil {
		return 0, fmt.Errorf("insert playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := q.ExecContext(ctx, tableSQL(videoRefTable(id), videoRefColumns)); err != nil {
		return 0, fmt.Errorf("create reference table: %w", err)
	}
	return id, nil
}

func playlistExists(ctx context.Context, q querier, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM playlist WHERE _id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func playlistTitleExists(ctx context.Context, q querier, title string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM playlist WHERE title = ? LIMIT 1", title).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func queryPlaylists(ctx context.Context, q querier, query string, args ...any) ([]Playlist, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.Title, &p.Description, &p.Thumbnail, &p.Size, &p.ID); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
