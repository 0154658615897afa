package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

const (
	tablePlaylist  = "playlist"
	tableVideo     = "video"
	videoRefPrefix = "videoref_"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInteger
	kindBlob
)

type column struct {
	name       string
	kind       columnKind
	constraint string
}

func (c column) sqlType() string {
	switch c.kind {
	case kindText:
		return "text"
	case kindInteger:
		return "integer"
	default:
		return "blob"
	}
}

// Column order is part of the on-disk format.
var (
	colPlTitle       = column{"title", kindText, "not null"}
	colPlDescription = column{"description", kindText, "not null"}
	colPlThumbnail   = column{"thumbnail", kindBlob, "not null"}
	colPlSize        = column{"size", kindInteger, "not null"}
	colID            = column{"_id", kindInteger, "primary key autoincrement"}

	playlistColumns = []column{colPlTitle, colPlDescription, colPlThumbnail, colPlSize, colID}

	colVTitle       = column{"title", kindText, "not null"}
	colVDescription = column{"description", kindText, "not null"}
	colVVideoID     = column{"videoid", kindText, "not null"}
	colVPlaytime    = column{"playtime", kindInteger, "not null"}
	colVThumbnail   = column{"thumbnail", kindBlob, "not null"}
	colVVolume      = column{"volume", kindInteger, "not null"}
	colVRate        = column{"rate", kindInteger, "not null"}
	colVTimeAdd     = column{"time_add", kindInteger, "not null"}
	colVTimePlayed  = column{"time_played", kindInteger, "not null"}
	colVGenre       = column{"genre", kindText, "not null"}
	colVArtist      = column{"artist", kindText, "not null"}
	colVAlbum       = column{"album", kindText, "not null"}
	colVRefCount    = column{"refcount", kindInteger, "not null"}

	videoColumns = []column{
		colVTitle, colVDescription, colVVideoID, colVPlaytime, colVThumbnail,
		colVVolume, colVRate, colVTimeAdd, colVTimePlayed,
		colVGenre, colVArtist, colVAlbum, colVRefCount, colID,
	}

	colRefVideoID = column{"videoid", kindInteger, ""}
	colRefID      = column{"_id", kindInteger,
		"primary key autoincrement, FOREIGN KEY(videoid) REFERENCES video(_id)"}

	videoRefColumns = []column{colRefVideoID, colRefID}
)

// tableSQL renders the CREATE TABLE statement exactly as SQLite stores it
// in sqlite_master.
func tableSQL(table string, cols []column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		def := c.name + " " + c.sqlType()
		if c.constraint != "" {
			def += " " + c.constraint
		}
		parts[i] = def
	}
	return "CREATE TABLE " + table + " (" + strings.Join(parts, ", ") + ")"
}

func videoRefTable(playlistID int64) string {
	return videoRefPrefix + strconv.FormatInt(playlistID, 10)
}

// columnList renders "t.a, t.b, ..." for the given columns.
func columnList(table string, cols []column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		if table != "" {
			names[i] = table + "." + c.name
		} else {
			names[i] = c.name
		}
	}
	return strings.Join(names, ", ")
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// createSchema creates the fixed tables of an empty catalog.
func createSchema(ctx context.Context, q querier) error {
	for _, stmt := range []string{
		tableSQL(tablePlaylist, playlistColumns),
		tableSQL(tableVideo, videoColumns),
		fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion),
	} {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// tableDefinitions returns name to CREATE statement for every table.
func tableDefinitions(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make(map[string]string)
	for rows.Next() {
		var name string
		var def sql.NullString
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		defs[name] = def.String
	}
	return defs, rows.Err()
}

func userVersion(ctx context.Context, q querier) (int, error) {
	var v int
	err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// verifySchema checks the version and the exact definition of every
// catalog table, including one reference table per playlist.
func verifySchema(ctx context.Context, q querier) error {
	v, err := userVersion(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: read version: %v", ErrSchemaMismatch, err)
	}
	if v != SchemaVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, v, SchemaVersion)
	}

	defs, err := tableDefinitions(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: read tables: %v", ErrSchemaMismatch, err)
	}
	for table, cols := range map[string][]column{
		tablePlaylist: playlistColumns,
		tableVideo:    videoColumns,
	} {
		if !strings.EqualFold(defs[table], tableSQL(table, cols)) {
			return fmt.Errorf("%w: table %s", ErrSchemaMismatch, table)
		}
	}

	ids, err := playlistIDs(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: read playlists: %v", ErrSchemaMismatch, err)
	}
	for _, id := range ids {
		name := videoRefTable(id)
		if !strings.EqualFold(defs[name], tableSQL(name, videoRefColumns)) {
			return fmt.Errorf("%w: table %s", ErrSchemaMismatch, name)
		}
	}
	return nil
}

func playlistIDs(ctx context.Context, q querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT _id FROM playlist ORDER BY _id")
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
