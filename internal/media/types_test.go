package media

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_PreservesPlaylistOrder(t *testing.T) {
	pl := NewPlaylist("PL1", "mix", "", nil, []PartialTrack{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	single := Track{PartialTrack: PartialTrack{ID: "d"}, StreamURL: "https://x"}

	out := Expand(pl, single, PartialTrack{ID: "e"})
	require.Len(t, out, 5)

	ids := make([]string, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.Base().ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
	assert.Equal(t, KindTrack, out[3].Kind())
	assert.Equal(t, UnknownUploader, pl.Uploader)
}

func TestPlaylist_Limit(t *testing.T) {
	pl := NewPlaylist("PL1", "mix", "me", nil, []PartialTrack{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	assert.Len(t, pl.Limit(2).Entries, 2)
	assert.Len(t, pl.Limit(0).Entries, 3)
	assert.Len(t, pl.Limit(10).Entries, 3)
	assert.Len(t, pl.Entries, 3, "limit must not mutate the original")
}

func TestPartialTrack_SourceAndThumbnail(t *testing.T) {
	p := PartialTrack{ID: "abc", Thumbnails: []Thumbnail{{URL: "small"}, {URL: "big"}}}
	assert.Equal(t, "abc", p.Source())
	assert.Equal(t, "big", p.Thumbnail())

	p.Query = `ytsearch1:"song" "artist"`
	assert.Equal(t, p.Query, p.Source())
	assert.Empty(t, PartialTrack{}.Thumbnail())
}

func TestTrack_Fresh(t *testing.T) {
	now := time.Now()
	tr := Track{StreamURL: "https://x", ResolvedAt: now.Add(-time.Hour)}

	assert.True(t, tr.Fresh(5*time.Hour, now))
	assert.False(t, tr.Fresh(30*time.Minute, now))
	assert.False(t, Track{}.Fresh(time.Hour, now))
}

func TestTrack_WatchURLAndRemaining(t *testing.T) {
	tr := Track{PartialTrack: PartialTrack{ID: "dQw4w9WgXcQ"}, Duration: 120, Offset: 30}
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=30", tr.WatchURL())
	assert.Equal(t, 90.0, tr.Remaining())

	tr.End = 100
	assert.Equal(t, 70.0, tr.Remaining())
}

func TestError_Wrapping(t *testing.T) {
	err := fmt.Errorf("materialize x: %w", ErrUnknownTrack)
	assert.True(t, errors.Is(err, ErrUnknownTrack))

	var me Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Could not find that song!", me.Error())
}
