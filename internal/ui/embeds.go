package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	colorQueued  = 0x1E90FF
	colorEmpty   = 0x992222

	barWidth = 10

	// SearchPrefix starts the custom id of search menus.
	SearchPrefix = "search:"
)

var ErrPageRange = errors.New("the queue isn't that big")

func link(p media.PartialTrack, offset float64) string {
	title := utils.EscapeMd(utils.Truncate(p.Title, 80))
	if len(p.ID) != 11 {
		return "**" + title + "**"
	}
	t := media.Track{PartialTrack: p, Offset: offset}
	return fmt.Sprintf("[%s](%s)", title, t.WatchURL())
}

func requester(p media.PartialTrack) string {
	if p.RequestedBy == "" {
		return ""
	}
	return fmt.Sprintf("\nRequested by: <@%s>", p.RequestedBy)
}

func uploader(p media.PartialTrack) string {
	if p.Uploader == "" {
		return media.UnknownUploader
	}
	return p.Uploader
}

func entryLength(e media.Entry) string {
	t, ok := e.(media.Track)
	switch {
	case ok && t.IsLive:
		return "live"
	case ok && t.Duration > 0:
		return utils.PrettyTime(int(t.Remaining()))
	}
	return "-"
}

func thumbnail(p media.PartialTrack) *discordgo.MessageEmbedThumbnail {
	if u := p.Thumbnail(); u != "" {
		return &discordgo.MessageEmbedThumbnail{URL: u}
	}
	return nil
}

// NowPlaying renders the status message of the playing track.
func NowPlaying(n player.Notice) *discordgo.MessageEmbed {
	t := n.Track
	button, title, color := "⏹️", "Now Playing", colorPlaying
	if n.Paused {
		button, title, color = "▶️", "Paused", colorPaused
	}
	loop := ""
	if n.Looping {
		loop = "🔁"
	}

	elapsed := "live"
	left := "live"
	if !t.IsLive {
		elapsed = fmt.Sprintf("%s/%s", utils.PrettyTime(int(n.Position)), utils.PrettyTime(int(t.Duration)))
		left = utils.PrettyTime(int(max(t.Stop()-n.Position, 0)))
	}
	progress := player.Fraction(n.Position, t)

	desc := fmt.Sprintf("%s%s\n\n%s %s `[ %s ]` %s",
		link(t.PartialTrack, 0), requester(t.PartialTrack),
		button, player.ProgressBar(barWidth, progress), elapsed, loop,
	)

	e := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration Left", Value: left, Inline: true},
			{Name: "Complete", Value: fmt.Sprintf("%d%%", int(progress*100)), Inline: true},
			{Name: "Up next", Value: songs(n.Pending), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Source: " + uploader(t.PartialTrack)},
		Thumbnail: thumbnail(t.PartialTrack),
	}
	return e
}

func NothingPlaying() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Nothing Playing",
		Description: "No playing song found",
		Color:       colorEmpty,
	}
}

// Queued announces a single entry added at position pos.
func Queued(e media.Entry, pos int) *discordgo.MessageEmbed {
	p := e.Base()
	return &discordgo.MessageEmbed{
		Title:       "Queued",
		Description: link(p, 0) + requester(p),
		Color:       colorQueued,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Position", Value: fmt.Sprint(pos), Inline: true},
			{Name: "Length", Value: entryLength(e), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Source: " + uploader(p)},
		Thumbnail: thumbnail(p),
	}
}

// QueuedPlaylist announces an expanded playlist.
func QueuedPlaylist(pl media.Playlist, added int) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "Queued Playlist",
		Description: fmt.Sprintf("**%s**\nAdded %s", utils.EscapeMd(pl.Title), songs(added)),
		Color:       colorQueued,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Source: " + pl.Uploader},
	}
	if len(pl.Thumbnails) > 0 {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: pl.Thumbnails[len(pl.Thumbnails)-1].URL}
	}
	return e
}

// QueuePage lists one page of pending entries under the current track.
func QueuePage(n *player.Notice, pending []media.Entry, page, pageSize int) (*discordgo.MessageEmbed, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}
	maxPage := max((len(pending)+pageSize-1)/pageSize, 1)
	if page > maxPage {
		return nil, ErrPageRange
	}

	var b strings.Builder
	if n != nil {
		t := n.Track
		elapsed := "live"
		if !t.IsLive {
			elapsed = fmt.Sprintf("%s/%s", utils.PrettyTime(int(n.Position)), utils.PrettyTime(int(t.Duration)))
		}
		fmt.Fprintf(&b, "%s%s\n\n%s `[ %s ]`\n\n",
			link(t.PartialTrack, 0), requester(t.PartialTrack),
			player.ProgressBar(barWidth, player.Fraction(n.Position, t)), elapsed)
	}

	begin := (page - 1) * pageSize
	end := min(begin+pageSize, len(pending))
	if begin < end {
		b.WriteString("**Up next:**\n")
		for i, e := range pending[begin:end] {
			fmt.Fprintf(&b, "`%d.` %s `[ %s ]`\n", begin+i+1, link(e.Base(), 0), entryLength(e))
		}
	}
	if b.Len() == 0 {
		b.WriteString("The queue is empty.")
	}

	var total float64
	for _, e := range pending {
		if t, ok := e.(media.Track); ok && !t.IsLive {
			total += t.Remaining()
		}
	}

	title, color := "Queue", colorQueued
	if n != nil {
		title, color = "Now Playing", colorPlaying
		if n.Looping {
			title += " (loop on)"
		}
	}

	e := &discordgo.MessageEmbed{
		Title:       title,
		Description: b.String(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: songs(len(pending)), Inline: true},
			{Name: "Known length", Value: totalLen(total), Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, maxPage), Inline: true},
		},
	}
	if n != nil {
		e.Thumbnail = thumbnail(n.Track.PartialTrack)
	}
	return e, nil
}

func songs(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func totalLen(sec float64) string {
	if sec <= 0 {
		return "-"
	}
	return utils.PrettyTime(int(sec))
}
