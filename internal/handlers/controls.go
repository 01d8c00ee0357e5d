package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/ui"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

// queueOf returns the guild's queue, replying for the caller when there
// is none.
func (h *CommandHandler) queueOf(s *discordgo.Session, i *discordgo.InteractionCreate) (*player.Queue, bool) {
	q := h.reg.Peek(i.GuildID)
	if q == nil || q.Voice() == nil {
		h.reply(s, i, "not connected, use /play first", true)
		return nil, false
	}
	return q, true
}

func notice(q *player.Queue) *player.Notice {
	t, pos, ok := q.NowPlaying()
	if !ok {
		return nil
	}
	return &player.Notice{
		Kind:     player.NoticeNowPlaying,
		Track:    t,
		Position: pos,
		Progress: player.FormatProgress(pos, t),
		Pending:  q.Len(),
		Looping:  q.Looping(),
		Paused:   q.Paused(),
	}
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	count := max(optionsOf(i.ApplicationCommandData().Options).integer("count", 1), 1)
	dropped, err := q.Skip(count - 1)
	if err != nil {
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i), "count", count, "dropped", dropped)
	if dropped > 0 {
		h.reply(s, i, fmt.Sprintf("⏭️ skipped %d songs", dropped+1), false)
		return
	}
	h.reply(s, i, "⏭️ skipped", false)
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	if q.Paused() {
		h.reply(s, i, "already paused", true)
		return
	}
	if err := q.Pause(); err != nil {
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "the stop-and-go light is now red", false)
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	if !q.Paused() {
		h.reply(s, i, "already playing, give me a song name", true)
		return
	}
	if err := q.Resume(); err != nil {
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd resume", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "the stop-and-go light is now green", false)
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	set, err := h.repo.GetSettings(context.Background(), i.GuildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to fetch settings", true)
		return
	}
	page := optionsOf(i.ApplicationCommandData().Options).integer("page", 1)

	var n *player.Notice
	var pending []media.Entry
	if q := h.reg.Peek(i.GuildID); q != nil {
		n = notice(q)
		pending = q.Deque()
	}
	embed, err := ui.QueuePage(n, pending, page, set.QueuePageSize)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", i.GuildID, "page", page, "err", err)
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page, "pageSize", set.QueuePageSize)
	h.replyEmbed(s, i, embed, true)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q := h.reg.Peek(i.GuildID)
	if q == nil {
		h.replyEmbed(s, i, ui.NothingPlaying(), true)
		return
	}
	n := notice(q)
	if n == nil {
		h.replyEmbed(s, i, ui.NothingPlaying(), true)
		return
	}
	h.replyEmbed(s, i, ui.NowPlaying(*n), false)
}

func (h *CommandHandler) cmdVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	level := utils.Clamp(optionsOf(i.ApplicationCommandData().Options).integer("level", 50), 0, 100)
	if err := q.SetVolume(float64(level) / 100); err != nil {
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd volume", "guildID", i.GuildID, "userID", userIDOf(i), "level", level)
	h.reply(s, i, fmt.Sprintf("🔊 volume set to %d%%", level), false)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	on := q.Repeat()
	slog.Info("cmd loop", "guildID", i.GuildID, "userID", userIDOf(i), "looping", on)
	if on {
		h.reply(s, i, "🔁 looping the queue", false)
		return
	}
	h.reply(s, i, "➡️ stopped looping", false)
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	pos := optionsOf(i.ApplicationCommandData().Options).integer("position", 1)
	e, err := q.Remove(pos)
	if err != nil {
		slog.Debug("remove from queue failed", "guildID", i.GuildID, "pos", pos, "err", err)
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd remove", "guildID", i.GuildID, "userID", userIDOf(i), "pos", pos)
	h.reply(s, i, fmt.Sprintf(":wastebasket: removed **%s**", utils.EscapeMd(e.Name())), false)
}

func (h *CommandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	n := q.Clear()
	slog.Info("cmd clear", "guildID", i.GuildID, "userID", userIDOf(i), "removed", n)
	h.reply(s, i, "clearer than a field after a fresh harvest", false)
}

func (h *CommandHandler) cmdShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	if q.Len() < 2 {
		h.reply(s, i, "not enough songs to shuffle", true)
		return
	}
	n := q.Shuffle()
	slog.Info("cmd shuffle", "guildID", i.GuildID, "userID", userIDOf(i), "size", n)
	h.reply(s, i, fmt.Sprintf("🔀 shuffled %s", songsText(n)), false)
}

func (h *CommandHandler) cmdSeek(s *discordgo.Session, i *discordgo.InteractionCreate) {
	q, ok := h.queueOf(s, i)
	if !ok {
		return
	}
	raw := optionsOf(i.ApplicationCommandData().Options).str("time")
	sec, err := utils.ParseDuration(raw)
	if err != nil {
		h.reply(s, i, "invalid time, use seconds, 1:30 or 1m30s", true)
		return
	}
	if err := q.Seek(float64(sec)); err != nil {
		slog.Debug("seek failed", "guildID", i.GuildID, "sec", sec, "err", err)
		h.reply(s, i, userMessage(err), true)
		return
	}
	slog.Info("cmd seek", "guildID", i.GuildID, "userID", userIDOf(i), "sec", sec)
	h.reply(s, i, fmt.Sprintf("👍 seeked to %s", utils.PrettyTime(sec)), false)
}

func (h *CommandHandler) cmdDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.reg.Peek(i.GuildID) == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.reg.Teardown(ctx, i.GuildID); err != nil {
		slog.Warn("disconnect failed", "guildID", i.GuildID, "err", err)
	}
	slog.Info("cmd disconnect", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "u betcha", false)
}

func songsText(n int) string {
	if n == 1 {
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}
