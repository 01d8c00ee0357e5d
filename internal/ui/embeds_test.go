package ui

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
)

func song(id string, dur float64) media.Track {
	return media.Track{
		PartialTrack: media.PartialTrack{ID: id, Title: "Song " + id, Uploader: "Band", RequestedBy: "42"},
		Duration:     dur,
	}
}

func TestNowPlaying(t *testing.T) {
	e := NowPlaying(player.Notice{Track: song("dQw4w9WgXcQ", 200), Position: 50, Pending: 3})
	assert.Equal(t, "Now Playing", e.Title)
	assert.Contains(t, e.Description, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.Contains(t, e.Description, "<@42>")
	assert.Contains(t, e.Description, "0:50/3:20")
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "2:30", e.Fields[0].Value)
	assert.Equal(t, "25%", e.Fields[1].Value)
	assert.Equal(t, "3 songs", e.Fields[2].Value)
	assert.Equal(t, "Source: Band", e.Footer.Text)

	paused := NowPlaying(player.Notice{Track: song("x", 10), Paused: true, Looping: true})
	assert.Equal(t, "Paused", paused.Title)
	assert.Contains(t, paused.Description, "🔁")
	assert.Contains(t, paused.Description, "**Song x**", "non-video ids are not linked")
}

func TestNowPlayingLive(t *testing.T) {
	live := song("live0000000", 0)
	live.IsLive = true
	e := NowPlaying(player.Notice{Track: live, Position: 99})
	assert.Contains(t, e.Description, "`[ live ]`")
	assert.Equal(t, "live", e.Fields[0].Value)
	assert.Equal(t, "0%", e.Fields[1].Value)
}

func TestQueued(t *testing.T) {
	e := Queued(media.PartialTrack{ID: "abc", Title: "A*B"}, 4)
	assert.Equal(t, "Queued", e.Title)
	assert.Contains(t, e.Description, `A\*B`)
	assert.Equal(t, "4", e.Fields[0].Value)
	assert.Equal(t, "-", e.Fields[1].Value)
	assert.Equal(t, "Source: "+media.UnknownUploader, e.Footer.Text)

	pl := media.NewPlaylist("PL", "Mix", "", []media.Thumbnail{{URL: "small"}, {URL: "big"}}, nil)
	pe := QueuedPlaylist(pl, 12)
	assert.Contains(t, pe.Description, "12 songs")
	assert.Equal(t, "big", pe.Thumbnail.URL)
}

func TestQueuePage(t *testing.T) {
	var pending []media.Entry
	for i := range 12 {
		pending = append(pending, song(fmt.Sprintf("id%09d", i), 60))
	}
	n := &player.Notice{Track: song("cur", 100), Position: 10}

	e, err := QueuePage(n, pending, 2, 5)
	require.NoError(t, err)
	assert.Contains(t, e.Description, "`6.`")
	assert.Contains(t, e.Description, "`10.`")
	assert.NotContains(t, e.Description, "`11.`")
	assert.Equal(t, "12 songs", e.Fields[0].Value)
	assert.Equal(t, "12:00", e.Fields[1].Value)
	assert.Equal(t, "2 out of 3", e.Fields[2].Value)

	_, err = QueuePage(n, pending, 4, 5)
	assert.ErrorIs(t, err, ErrPageRange)

	empty, err := QueuePage(nil, nil, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "The queue is empty.", empty.Description)
}

func TestSearchMenu(t *testing.T) {
	var res []media.PartialTrack
	for i := range 30 {
		res = append(res, media.PartialTrack{ID: fmt.Sprint(i), Title: fmt.Sprintf("t%d", i), Description: "3:10"})
	}
	comps := SearchMenu("k1", res)
	require.Len(t, comps, 1)
	row := comps[0].(discordgo.ActionsRow)
	menu := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, "search:k1", menu.CustomID)
	assert.Len(t, menu.Options, 25)
	assert.Equal(t, "1. t0", menu.Options[0].Label)
	assert.Equal(t, "0", menu.Options[0].Value)
	assert.Contains(t, menu.Options[0].Description, "3:10")

	key, ok := SearchKey(menu.CustomID)
	assert.True(t, ok)
	assert.Equal(t, "k1", key)
	_, ok = SearchKey("other:k1")
	assert.False(t, ok)
}
