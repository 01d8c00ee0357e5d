package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/repository"
)

func formatSettings(set repository.Settings) string {
	wait := "never leave"
	if set.SecondsWaitAfterEmpty > 0 {
		wait = fmt.Sprintf("%ds", set.SecondsWaitAfterEmpty)
	}
	return fmt.Sprintf(
		"Config\n- Playlist Limit: %d\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Default volume: %d\n- Queue page size: %d\n- Announce now playing: %t",
		set.PlaylistLimit,
		wait,
		set.LeaveIfNoListeners,
		set.DefaultVolume,
		set.QueuePageSize,
		set.AnnounceNowPlaying,
	)
}

// settingUpdate validates a config subcommand and returns the change it
// makes, the settings key for logging and the reply text.
func settingUpdate(sub *discordgo.ApplicationCommandInteractionDataOption) (func(*repository.Settings), string, string, error) {
	opts := optionsOf(sub.Options)
	switch sub.Name {
	case "set-playlist-limit":
		limit := opts.integer("limit", 0)
		if limit < 1 {
			return nil, "", "", ErrInvalidSetting("invalid limit")
		}
		return func(s *repository.Settings) { s.PlaylistLimit = limit }, "PlaylistLimit", "👍 limit updated", nil
	case "set-wait-after-queue-empties":
		delay := opts.integer("delay", 0)
		if delay < 0 {
			return nil, "", "", ErrInvalidSetting("invalid delay")
		}
		return func(s *repository.Settings) { s.SecondsWaitAfterEmpty = delay }, "SecondsWaitAfterEmpty", "👍 wait delay updated", nil
	case "set-leave-if-no-listeners":
		val := opts.boolean("value")
		return func(s *repository.Settings) { s.LeaveIfNoListeners = val }, "LeaveIfNoListeners", "👍 leave setting updated", nil
	case "set-default-volume":
		val := opts.integer("level", -1)
		if val < 0 || val > 100 {
			return nil, "", "", ErrInvalidSetting("volume must be 0-100")
		}
		return func(s *repository.Settings) { s.DefaultVolume = val }, "DefaultVolume", "👍 volume setting updated", nil
	case "set-queue-page-size":
		val := opts.integer("page_size", 0)
		if val < 1 || val > 30 {
			return nil, "", "", ErrInvalidSetting("page size must be 1-30")
		}
		return func(s *repository.Settings) { s.QueuePageSize = val }, "QueuePageSize", "👍 queue page size updated", nil
	case "set-announce-now-playing":
		val := opts.boolean("value")
		return func(s *repository.Settings) { s.AnnounceNowPlaying = val }, "AnnounceNowPlaying", "👍 announce setting updated", nil
	}
	return nil, "", "", ErrInvalidSetting("unknown setting")
}

type ErrInvalidSetting string

func (e ErrInvalidSetting) Error() string { return string(e) }

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	if sub.Name == "get" {
		set, err := h.repo.GetSettings(ctx, i.GuildID)
		if err != nil {
			slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
			h.reply(s, i, "failed to fetch config", true)
			return
		}
		slog.Debug("config get", "guildID", i.GuildID)
		h.reply(s, i, formatSettings(set), false)
		return
	}

	fn, key, msg, err := settingUpdate(sub)
	if err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	if _, err := h.repo.UpdateSetting(ctx, i.GuildID, fn); err != nil {
		slog.Error("update settings failed", "guildID", i.GuildID, "key", key, "err", err)
		h.reply(s, i, "failed to update config", true)
		return
	}
	slog.Info("config updated", "guildID", i.GuildID, "key", key)
	h.reply(s, i, msg, false)
}
