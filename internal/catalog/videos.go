package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var videoSelect = "SELECT " + columnList(tableVideo, videoColumns) + " FROM video"

// AddVideoToPlaylist adds a video to a playlist. An existing video row
// with the same VideoID is reused; otherwise a new row is inserted. The
// reference, the video's refcount and the playlist's size change together.
// It returns ErrNotFound for an unknown playlist and ErrDuplicated when the
// video is already a member, leaving the catalog unchanged.
func (s *Store) AddVideoToPlaylist(ctx context.Context, playlistID int64, v NewVideo) (err error) {
	start := time.Now()
	defer func() { recordQuery("add_video", start, err) }()

	if v.VideoID == "" {
		return fmt.Errorf("catalog: empty video id")
	}

	return s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		ok, err := playlistExists(ctx, tx, playlistID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: playlist %d", ErrNotFound, playlistID)
		}

		rowID, found, err := videoRowID(ctx, tx, v.VideoID)
		if err != nil {
			return err
		}
		if !found {
			volume := v.Volume
			if volume == InvalidVolume {
				volume = s.opts.DefaultVolume
			}
			rowID, err = insertVideo(ctx, tx, Video{
				VideoID:     v.VideoID,
				Title:       v.Title,
				Description: v.Description,
				Playtime:    v.Playtime,
				Thumbnail:   v.Thumbnail,
				Volume:      volume,
				TimeAdded:   s.opts.Now(),
			})
			if err != nil {
				return err
			}
		}

		if err := insertVideoRef(ctx, tx, playlistID, rowID); err != nil {
			return err
		}
		c.playlists, c.videos = true, true
		return nil
	})
}

// AddVideoRefToPlaylist adds an existing video, by row id, to a playlist.
func (s *Store) AddVideoRefToPlaylist(ctx context.Context, playlistID, videoRowID int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("add_video_ref", start, err) }()

	return s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		ok, err := playlistExists(ctx, tx, playlistID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: playlist %d", ErrNotFound, playlistID)
		}
		if _, err := videoByRowID(ctx, tx, videoRowID); err != nil {
			return err
		}
		if err := insertVideoRef(ctx, tx, playlistID, videoRowID); err != nil {
			return err
		}
		c.playlists, c.videos = true, true
		return nil
	})
}

// RemoveVideoFromPlaylist removes one membership and returns the number of
// references removed (0 or 1). The video row is deleted when no playlist
// references it any more.
func (s *Store) RemoveVideoFromPlaylist(ctx context.Context, playlistID, videoRowID int64) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("remove_video", start, err) }()

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		var err error
		n, err = deleteVideoRef(ctx, tx, playlistID, videoRowID)
		c.playlists, c.videos = n > 0, n > 0
		return err
	})
	return n, err
}

// RemoveVideoFromAllPlaylists removes the video from every playlist. It
// scans all playlists.
func (s *Store) RemoveVideoFromAllPlaylists(ctx context.Context, videoRowID int64) (int64, error) {
	return s.removeVideoExcept(ctx, -1, videoRowID)
}

// RemoveVideoExceptPlaylist removes the video from every playlist other
// than keepPlaylistID. It scans all playlists.
func (s *Store) RemoveVideoExceptPlaylist(ctx context.Context, keepPlaylistID, videoRowID int64) (int64, error) {
	return s.removeVideoExcept(ctx, keepPlaylistID, videoRowID)
}

func (s *Store) removeVideoExcept(ctx context.Context, keep, videoRowID int64) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("remove_video", start, err) }()

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		ids, err := playlistIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == keep {
				continue
			}
			removed, err := deleteVideoRef(ctx, tx, id, videoRowID)
			if err != nil {
				return err
			}
			n += removed
		}
		c.playlists, c.videos = n > 0, n > 0
		return nil
	})
	return n, err
}

// UpdateVideo applies updates to the video with row id rowID.
func (s *Store) UpdateVideo(ctx context.Context, rowID int64, updates ...VideoUpdate) (int64, error) {
	return s.updateVideo(ctx, "_id", rowID, updates)
}

// UpdateVideoByVideoID applies updates to the video with external id videoID.
func (s *Store) UpdateVideoByVideoID(ctx context.Context, videoID string, updates ...VideoUpdate) (int64, error) {
	return s.updateVideo(ctx, "videoid", videoID, updates)
}

// TouchVideo records that the video was played at t.
func (s *Store) TouchVideo(ctx context.Context, videoID string, t time.Time) error {
	_, err := s.updateVideo(ctx, "videoid", videoID, []VideoUpdate{SetVideoTimePlayed(t)})
	return err
}

func (s *Store) updateVideo(ctx context.Context, key string, keyArg any, updates []VideoUpdate) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("update_video", start, err) }()

	if len(updates) == 0 {
		return 0, nil
	}
	cols := make([]column, len(updates))
	vals := make([]value, len(updates))
	for i, u := range updates {
		cols[i], vals[i] = u.col, u.val
	}

	err = s.withTx(ctx, func(tx *sql.Tx, c *changes) error {
		query, args := updateSQL(tableVideo, key, cols, vals, keyArg)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		c.videos = n > 0
		return err
	})
	return n, err
}

// PlaylistVideos lists the videos of a playlist. SortNone keeps the order
// in which they were added.
func (s *Store) PlaylistVideos(ctx context.Context, playlistID int64, order VideoOrder) (list []Video, err error) {
	start := time.Now()
	defer func() { recordQuery("playlist_videos", start, err) }()

	err = s.read(ctx, func(q querier) error {
		ok, err := playlistExists(ctx, q, playlistID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: playlist %d", ErrNotFound, playlistID)
		}
		ref := videoRefTable(playlistID)
		query := "SELECT " + columnList(tableVideo, videoColumns) +
			" FROM video, " + ref +
			" WHERE " + ref + ".videoid = video._id" +
			order.orderBy(tableVideo, ref+"._id ASC")
		list, err = queryVideos(ctx, q, query)
		return err
	})
	return list, err
}

// Videos lists every video in the catalog.
func (s *Store) Videos(ctx context.Context, order VideoOrder) (list []Video, err error) {
	start := time.Now()
	defer func() { recordQuery("list_videos", start, err) }()

	err = s.read(ctx, func(q querier) error {
		var err error
		list, err = queryVideos(ctx, q, videoSelect+order.orderBy(tableVideo, "video._id ASC"))
		return err
	})
	return list, err
}

// SearchVideos returns videos whose title contains every one of terms,
// ordered by title. Matching follows SQLite LIKE: case-insensitive for
// ASCII letters. With no terms every video is returned.
func (s *Store) SearchVideos(ctx context.Context, terms ...string) (list []Video, err error) {
	start := time.Now()
	defer func() { recordQuery("search_videos", start, err) }()

	var where []string
	var args []any
	for _, t := range terms {
		if t == "" {
			continue
		}
		where = append(where, `video.title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	query := videoSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY video.title ASC"

	err = s.read(ctx, func(q querier) error {
		var err error
		list, err = queryVideos(ctx, q, query, args...)
		return err
	})
	return list, err
}

// Video returns the video with row id rowID or ErrNotFound.
func (s *Store) Video(ctx context.Context, rowID int64) (v *Video, err error) {
	start := time.Now()
	defer func() { recordQuery("get_video", start, err) }()

	err = s.read(ctx, func(q querier) error {
		var err error
		v, err = videoByRowID(ctx, q, rowID)
		return err
	})
	return v, err
}

// VideoByVideoID returns the video with external id videoID or ErrNotFound.
func (s *Store) VideoByVideoID(ctx context.Context, videoID string) (v *Video, err error) {
	start := time.Now()
	defer func() { recordQuery("get_video", start, err) }()

	err = s.read(ctx, func(q querier) error {
		list, err := queryVideos(ctx, q, videoSelect+" WHERE video.videoid = ?", videoID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("%w: video %s", ErrNotFound, videoID)
		}
		v = &list[0]
		return nil
	})
	return v, err
}

// ContainsVideo reports whether a video with external id videoID exists.
func (s *Store) ContainsVideo(ctx context.Context, videoID string) (ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("contains", start, err) }()

	err = s.read(ctx, func(q querier) error {
		var err error
		_, ok, err = videoRowID(ctx, q, videoID)
		return err
	})
	return ok, err
}

// PlaylistContainsVideo reports whether the playlist references the video
// with external id videoID.
func (s *Store) PlaylistContainsVideo(ctx context.Context, playlistID int64, videoID string) (ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("contains", start, err) }()

	err = s.read(ctx, func(q querier) error {
		exists, err := playlistExists(ctx, q, playlistID)
		if err != nil || !exists {
			return err
		}
		rowID, found, err := videoRowID(ctx, q, videoID)
		if err != nil || !found {
			return err
		}
		ok, err = refExists(ctx, q, playlistID, rowID)
		return err
	})
	return ok, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func insertVideo(ctx context.Context, q querier, v Video) (int64, error) {
	thumb := v.Thumbnail
	if thumb == nil {
		thumb = []byte{}
	}
	cols := videoColumns[:len(videoColumns)-1] // all but _id
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := q.ExecContext(ctx,
		"INSERT INTO video ("+columnList("", cols)+") VALUES ("+placeholders+")",
		v.Title, v.Description, v.VideoID, v.Playtime, thumb,
		v.Volume, v.Rate, toMillis(v.TimeAdded), toMillis(v.TimePlayed),
		v.Genre, v.Artist, v.Album, 0)
	if err != nil {
		return 0, fmt.Errorf("insert video: %w", err)
	}
	return res.LastInsertId()
}

func videoRowID(ctx context.Context, q querier, videoID string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT _id FROM video WHERE videoid = ?", videoID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func videoByRowID(ctx context.Context, q querier, rowID int64) (*Video, error) {
	list, err := queryVideos(ctx, q, videoSelect+" WHERE video._id = ?", rowID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: video row %d", ErrNotFound, rowID)
	}
	return &list[0], nil
}

func refExists(ctx context.Context, q querier, playlistID, videoRowID int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM "+videoRefTable(playlistID)+" WHERE videoid = ? LIMIT 1", videoRowID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func refVideoIDs(ctx context.Context, q querier, playlistID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT videoid FROM "+videoRefTable(playlistID)+" ORDER BY _id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// insertVideoRef adds a membership and bumps both counters.
func insertVideoRef(ctx context.Context, q querier, playlistID, videoRowID int64) error {
	dup, err := refExists(ctx, q, playlistID, videoRowID)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: video row %d in playlist %d", ErrDuplicated, videoRowID, playlistID)
	}

	if _, err := q.ExecContext(ctx,
		"INSERT INTO "+videoRefTable(playlistID)+" (videoid) VALUES (?)", videoRowID); err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	if err := execOne(ctx, q, "UPDATE video SET refcount = refcount + 1 WHERE _id = ?", videoRowID); err != nil {
		return err
	}
	return execOne(ctx, q, "UPDATE playlist SET size = size + 1 WHERE _id = ?", playlistID)
}

// deleteVideoRef removes a membership and drops both counters. A missing
// playlist or membership removes nothing.
func deleteVideoRef(ctx context.Context, q querier, playlistID, videoRowID int64) (int64, error) {
	ok, err := playlistExists(ctx, q, playlistID)
	if err != nil || !ok {
		return 0, err
	}

	res, err := q.ExecContext(ctx,
		"DELETE FROM "+videoRefTable(playlistID)+" WHERE videoid = ?", videoRowID)
	if err != nil {
		return 0, fmt.Errorf("delete reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	if n > 1 {
		return 0, fmt.Errorf("%w: %d references to video row %d in playlist %d",
			ErrInvariant, n, videoRowID, playlistID)
	}

	if err := releaseVideo(ctx, q, videoRowID); err != nil {
		return 0, err
	}
	if err := execOne(ctx, q,
		"UPDATE playlist SET size = size - 1 WHERE _id = ? AND size > 0", playlistID); err != nil {
		return 0, err
	}
	return n, nil
}

// releaseVideo drops one reference to the video, deleting the row when
// the count reaches zero.
func releaseVideo(ctx context.Context, q querier, videoRowID int64) error {
	var refcount int64
	err := q.QueryRowContext(ctx, "SELECT refcount FROM video WHERE _id = ?", videoRowID).Scan(&refcount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: reference to missing video row %d", ErrInvariant, videoRowID)
	}
	if err != nil {
		return err
	}

	switch {
	case refcount <= 0:
		return fmt.Errorf("%w: video row %d has refcount %d", ErrInvariant, videoRowID, refcount)
	case refcount == 1:
		_, err = q.ExecContext(ctx, "DELETE FROM video WHERE _id = ?", videoRowID)
	default:
		_, err = q.ExecContext(ctx, "UPDATE video SET refcount = refcount - 1 WHERE _id = ?", videoRowID)
	}
	return err
}

// execOne runs a statement that must change exactly one row.
func execOne(ctx context.Context, q querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %q changed %d rows", ErrInvariant, query, n)
	}
	return nil
}

func queryVideos(ctx context.Context, q querier, query string, args ...any) ([]Video, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Video
	for rows.Next() {
		var v Video
		var added, played int64
		if err := rows.Scan(
			&v.Title, &v.Description, &v.VideoID, &v.Playtime, &v.Thumbnail,
			&v.Volume, &v.Rate, &added, &played,
			&v.Genre, &v.Artist, &v.Album, &v.RefCount, &v.ID,
		); err != nil {
			return nil, err
		}
		v.TimeAdded = fromMillis(added)
		v.TimePlayed = fromMillis(played)
		list = append(list, v)
	}
	return list, rows.Err()
}
