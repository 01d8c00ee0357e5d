package media

import (
	"fmt"
	"time"
)

type Kind int

const (
	KindPartial Kind = iota
	KindTrack
	KindPlaylist
)

func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Descriptor is implemented by PartialTrack, Track and Playlist only.
type Descriptor interface {
	Kind() Kind
	Name() string
	sealed()
}

// Entry is a descriptor that can sit in a playback queue: a PartialTrack
// or a Track. Playlists are expanded into their entries instead.
type Entry interface {
	Descriptor
	Base() PartialTrack
}

type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// PartialTrack is produced by cheap listing and search calls. It has no
// stream URL and must be materialized before playback.
type PartialTrack struct {
	ID          string
	Title       string
	Uploader    string
	Description string
	Thumbnails  []Thumbnail

	// Query is handed to the extractor instead of ID when set, e.g.
	// `ytsearch1:"title" "artist"` for items expanded from Spotify.
	Query string

	RequestedBy string
}

func (p PartialTrack) Kind() Kind         { return KindPartial }
func (p PartialTrack) Name() string       { return p.Title }
func (p PartialTrack) Base() PartialTrack { return p }
func (PartialTrack) sealed()              {}

// Source is what the extractor should be asked for.
func (p PartialTrack) Source() string {
	if p.Query != "" {
		return p.Query
	}
	return p.ID
}

// Thumbnail returns the last, usually largest, thumbnail URL.
func (p PartialTrack) Thumbnail() string {
	if len(p.Thumbnails) == 0 {
		return ""
	}
	return p.Thumbnails[len(p.Thumbnails)-1].URL
}

// Track is fully resolved and directly playable.
type Track struct {
	PartialTrack

	StreamURL string
	// Headers are sent when opening StreamURL.
	Headers  map[string]string
	Duration float64 // seconds
	IsLive   bool

	// Offset is where playback starts, in seconds.
	Offset float64
	// End stops playback early when non-zero.
	End float64

	ResolvedAt time.Time
}

func (t Track) Kind() Kind         { return KindTrack }
func (t Track) Name() string       { return t.Title }
func (t Track) Base() PartialTrack { return t.PartialTrack }
func (Track) sealed()              {}

// Fresh reports whether the stream URL was resolved within ttl.
func (t Track) Fresh(ttl time.Duration, now time.Time) bool {
	if t.StreamURL == "" || t.ResolvedAt.IsZero() {
		return false
	}
	return now.Sub(t.ResolvedAt) < ttl
}

// Stop is where playback ends, in seconds.
func (t Track) Stop() float64 {
	if t.End > 0 && t.End < t.Duration {
		return t.End
	}
	return t.Duration
}

// Remaining is the playable length after Offset.
func (t Track) Remaining() float64 {
	if t.Stop() <= t.Offset {
		return 0
	}
	return t.Stop() - t.Offset
}

func (t Track) WatchURL() string {
	if t.ID == "" {
		return ""
	}
	u := "https://www.youtube.com/watch?v=" + t.ID
	if t.Offset >= 1 {
		u += fmt.Sprintf("&t=%d", int(t.Offset))
	}
	return u
}

const UnknownUploader = "Unknown Uploader"

// Playlist is never played directly; it expands into Entries.
type Playlist struct {
	ID         string
	Title      string
	Uploader   string
	Thumbnails []Thumbnail
	Entries    []PartialTrack
}

func NewPlaylist(id, title, uploader string, thumbs []Thumbnail, entries []PartialTrack) Playlist {
	if uploader == "" {
		uploader = UnknownUploader
	}
	return Playlist{ID: id, Title: title, Uploader: uploader, Thumbnails: thumbs, Entries: entries}
}

func (p Playlist) Kind() Kind   { return KindPlaylist }
func (p Playlist) Name() string { return p.Title }
func (Playlist) sealed()        {}

// Limit returns a copy of p holding at most n entries; n <= 0 keeps all.
func (p Playlist) Limit(n int) Playlist {
	if n <= 0 || len(p.Entries) <= n {
		return p
	}
	p.Entries = append([]PartialTrack(nil), p.Entries[:n]...)
	return p
}

// Expand flattens descriptors into queue entries, preserving order.
func Expand(items ...Descriptor) []Entry {
	var out []Entry
	for _, it := range items {
		switch v := it.(type) {
		case Playlist:
			for _, e := range v.Entries {
				out = append(out, e)
			}
		case Entry:
			out = append(out, v)
		}
	}
	return out
}
