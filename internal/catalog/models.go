package catalog

import (
	"strings"
	"time"
)

// InvalidVolume asks AddVideoToPlaylist to store the default volume.
const InvalidVolume = -1

// Playlist is a named, ordered set of videos.
type Playlist struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   []byte `json:"thumbnail,omitempty"`
	Size        int64  `json:"size"`
}

// Video is one catalog entry. ID is the internal row id; VideoID is the
// external identifier used to resolve and cache the stream.
type Video struct {
	ID          int64     `json:"id"`
	VideoID     string    `json:"videoId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Playtime    int       `json:"playtime"`
	Thumbnail   []byte    `json:"thumbnail,omitempty"`
	Volume      int       `json:"volume"`
	Rate        int       `json:"rate"`
	TimeAdded   time.Time `json:"timeAdded"`
	TimePlayed  time.Time `json:"timePlayed"`
	Genre       string    `json:"genre"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	RefCount    int64     `json:"refCount"`
}

// NewVideo holds the fields supplied when a video is first added.
type NewVideo struct {
	VideoID     string
	Title       string
	Description string
	Playtime    int
	Thumbnail   []byte
	// Volume of InvalidVolume selects the store default.
	Volume int
}

// Stats holds catalog totals.
type Stats struct {
	Playlists int `json:"playlists"`
	Videos    int `json:"videos"`
}

// SortKey selects the video column used to order query results.
type SortKey int

const (
	// SortNone keeps membership order.
	SortNone SortKey = iota
	SortTitle
	SortTimeAdded
	SortTimePlayed
	SortPlaytime
	SortVolume
)

// VideoOrder describes the ordering of a video query.
type VideoOrder struct {
	Key  SortKey
	Desc bool
}

// ParseSortKey maps the query-string names used by the API.
func ParseSortKey(s string) (SortKey, bool) {
	switch s {
	case "", "none":
		return SortNone, true
	case "title":
		return SortTitle, true
	case "time_add", "added":
		return SortTimeAdded, true
	case "time_played", "played":
		return SortTimePlayed, true
	case "playtime":
		return SortPlaytime, true
	case "volume":
		return SortVolume, true
	}
	return SortNone, false
}

func (o VideoOrder) column() (column, bool) {
	switch o.Key {
	case SortTitle:
		return colVTitle, true
	case SortTimeAdded:
		return colVTimeAdd, true
	case SortTimePlayed:
		return colVTimePlayed, true
	case SortPlaytime:
		return colVPlaytime, true
	case SortVolume:
		return colVVolume, true
	}
	return column{}, false
}

// orderBy renders the ORDER BY clause, falling back to fallback when no
// key is set.
func (o VideoOrder) orderBy(table, fallback string) string {
	c, ok := o.column()
	if !ok {
		return " ORDER BY " + fallback
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + table + "." + c.name + " " + dir
}

// value is a column value tagged with its storage kind.
type value struct {
	kind    columnKind
	text    string
	integer int64
	blob    []byte
}

func (v value) arg() any {
	switch v.kind {
	case kindText:
		return v.text
	case kindInteger:
		return v.integer
	default:
		if v.blob == nil {
			return []byte{}
		}
		return v.blob
	}
}

func textValue(s string) value { return value{kind: kindText, text: s} }

func intValue(i int64) value { return value{kind: kindInteger, integer: i} }

func blobValue(b []byte) value { return value{kind: kindBlob, blob: b} }

func timeValue(t time.Time) value { return intValue(toMillis(t)) }

// VideoUpdate sets one video column. Build it with the SetVideo* functions.
type VideoUpdate struct {
	col column
	val value
}

// SetVideoTitle updates the title.
func SetVideoTitle(s string) VideoUpdate { return VideoUpdate{colVTitle, textValue(s)} }

// SetVideoDescription updates the description.
func SetVideoDescription(s string) VideoUpdate {
	return VideoUpdate{colVDescription, textValue(s)}
}

// SetVideoPlaytime updates the playtime in seconds.
func SetVideoPlaytime(sec int) VideoUpdate {
	return VideoUpdate{colVPlaytime, intValue(int64(sec))}
}

// SetVideoThumbnail updates the thumbnail image.
func SetVideoThumbnail(b []byte) VideoUpdate { return VideoUpdate{colVThumbnail, blobValue(b)} }

// SetVideoVolume updates the per-video volume.
func SetVideoVolume(v int) VideoUpdate { return VideoUpdate{colVVolume, intValue(int64(v))} }

// SetVideoRate updates the rating.
func SetVideoRate(r int) VideoUpdate { return VideoUpdate{colVRate, intValue(int64(r))} }

// SetVideoTimePlayed updates the last-played time.
func SetVideoTimePlayed(t time.Time) VideoUpdate {
	return VideoUpdate{colVTimePlayed, timeValue(t)}
}

// SetVideoGenre updates the genre.
func SetVideoGenre(s string) VideoUpdate { return VideoUpdate{colVGenre, textValue(s)} }

// SetVideoArtist updates the artist.
func SetVideoArtist(s string) VideoUpdate { return VideoUpdate{colVArtist, textValue(s)} }

// SetVideoAlbum updates the album.
func SetVideoAlbum(s string) VideoUpdate { return VideoUpdate{colVAlbum, textValue(s)} }

// PlaylistUpdate sets one playlist column. Build it with the SetPlaylist*
// functions.
type PlaylistUpdate struct {
	col column
	val value
}

// SetPlaylistTitle renames the playlist.
func SetPlaylistTitle(s string) PlaylistUpdate {
	return PlaylistUpdate{colPlTitle, textValue(s)}
}

// SetPlaylistDescription updates the description.
func SetPlaylistDescription(s string) PlaylistUpdate {
	return PlaylistUpdate{colPlDescription, textValue(s)}
}

// SetPlaylistThumbnail updates the thumbnail image.
func SetPlaylistThumbnail(b []byte) PlaylistUpdate {
	return PlaylistUpdate{colPlThumbnail, blobValue(b)}
}

// updateSQL renders "UPDATE table SET a = ?, b = ? WHERE key = ?".
func updateSQL(table, key string, cols []column, vals []value, keyArg any) (string, []any) {
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c.name + " = ?"
		args = append(args, vals[i].arg())
	}
	args = append(args, keyArg)
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + key + " = ?", args
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
