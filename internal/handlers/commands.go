package handlers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/autocomplete"
	"github.com/sonroyaalmerol/hkbot/internal/cache"
	"github.com/sonroyaalmerol/hkbot/internal/config"
	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
	"github.com/sonroyaalmerol/hkbot/internal/resolver"
)

// searchTTL is how long a search menu stays usable.
const searchTTL = 5 * time.Minute

type CommandHandler struct {
	cfg     *config.Config
	repo    *repository.Repo
	res     *resolver.Resolver
	reg     *player.Registry
	suggest *autocomplete.Suggester

	searches *cache.Cache[[]media.PartialTrack]
	pubs     sync.Map // guildID -> *channelPublisher
	joins    sync.Map // guildID -> *sync.Mutex
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, res *resolver.Resolver, suggest *autocomplete.Suggester) *CommandHandler {
	h := &CommandHandler{
		cfg:      cfg,
		repo:     repo,
		res:      res,
		suggest:  suggest,
		searches: cache.New[[]media.PartialTrack](searchTTL, 256),
	}
	h.reg = player.NewRegistry(h.newQueue)
	return h
}

func commands() []*discordgo.ApplicationCommand {
	minVolume := float64(0)
	minOne := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song (YouTube/Spotify URL, playlist, or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "next", Description: "add to front of queue", Type: discordgo.ApplicationCommandOptionBoolean},
				{Name: "shuffle", Description: "shuffle playlist additions", Type: discordgo.ApplicationCommandOptionBoolean},
			},
		},
		{
			Name:        "search",
			Description: "Search and pick a song to queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "what to search for", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{
			Name:        "skip",
			Description: "Skip the current song",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "count", Description: "number of songs to skip", Type: discordgo.ApplicationCommandOptionInteger, MinValue: &minOne},
			},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{
			Name:        "queue",
			Description: "Show the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of the queue", Type: discordgo.ApplicationCommandOptionInteger, MinValue: &minOne},
			},
		},
		{Name: "now-playing", Description: "Show currently playing"},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "level", Description: "0-100", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: &minVolume, MaxValue: 100},
			},
		},
		{Name: "loop", Description: "toggle looping the queue"},
		{
			Name:        "remove",
			Description: "remove a song from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position in the queue", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: &minOne},
			},
		},
		{Name: "clear", Description: "Clear queue except current"},
		{Name: "shuffle", Description: "Shuffle the queue"},
		{
			Name:        "seek",
			Description: "Jump to a time in the current song",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "time", Description: "seconds, 1:30 or 1m30s", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{Name: "disconnect", Description: "Stop and leave the voice channel"},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-playlist-limit", Description: "set max playlist add", Options: []*discordgo.ApplicationCommandOption{
					{Name: "limit", Description: "max tracks", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-wait-after-queue-empties", Description: "time to wait before leaving VC", Options: []*discordgo.ApplicationCommandOption{
					{Name: "delay", Description: "seconds (0 never leave)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-leave-if-no-listeners", Description: "leave when no listeners", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-default-volume", Description: "default volume", Options: []*discordgo.ApplicationCommandOption{
					{Name: "level", Description: "0-100", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-queue-page-size", Description: "queue page size", Options: []*discordgo.ApplicationCommandOption{
					{Name: "page_size", Description: "1-30", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-announce-now-playing", Description: "post a message for every new song", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
			},
		},
	}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := commands()
	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			slog.Error("register command failed", "name", c.Name, "guildID", guildID, "err", err)
			return err
		}
	}
	slog.Info("registered application commands", "count", len(cmds), "guildID", guildID, "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		slog.Debug("interaction: autocomplete", "guildID", i.GuildID, "userID", userIDOf(i))
		h.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		slog.Debug("interaction: component", "guildID", i.GuildID, "userID", userIDOf(i), "customID", i.MessageComponentData().CustomID)
		h.handleComponent(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused {
			query = opt.StringValue()
			break
		}
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if strings.TrimSpace(query) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		choices = h.suggest.Choices(ctx, query, 10)
		cancel()
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		h.reply(s, i, media.ErrGuildOnly.Error(), true)
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "search":
		h.cmdSearch(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "volume":
		h.cmdVolume(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "shuffle":
		h.cmdShuffle(s, i)
	case "seek":
		h.cmdSeek(s, i)
	case "disconnect":
		h.cmdDisconnect(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{e},
			Flags:  discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReplyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{e}}
	if components != nil {
		edit.Components = &components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

// fail reports err to the user of a deferred interaction.
func (h *CommandHandler) fail(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	h.editReply(s, i, userMessage(err))
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) str(name string) string {
	if o, ok := m[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (m optionMap) integer(name string, def int) int {
	if o, ok := m[name]; ok {
		return int(o.IntValue())
	}
	return def
}

func (m optionMap) boolean(name string) bool {
	if o, ok := m[name]; ok {
		return o.BoolValue()
	}
	return false
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil || i.Interaction == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
