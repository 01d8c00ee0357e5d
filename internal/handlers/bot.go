package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/sonroyaalmerol/hkbot/internal/autocomplete"
	"github.com/sonroyaalmerol/hkbot/internal/config"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
	"github.com/sonroyaalmerol/hkbot/internal/resolver"
	"github.com/sonroyaalmerol/hkbot/internal/sponsorblock"
	"github.com/sonroyaalmerol/hkbot/internal/spotify"
	"github.com/sonroyaalmerol/hkbot/internal/voice"
)

type Bot struct {
	cfg  *config.Config
	repo *repository.Repo
	cmd  *CommandHandler
}

func NewBot(ctx context.Context, cfg *config.Config, repo *repository.Repo) *Bot {
	ytdlp := resolver.NewYTDLP(cfg.YouTubeCookiesPath, cfg.YTDLPProxy)

	var searcher resolver.Searcher = resolver.NewYouTubeSearch()
	if cfg.SearchSource == config.SearchSourceMusic {
		searcher = resolver.MusicSearch{}
	}

	opts := resolver.Options{
		Workers:     cfg.ExtractWorkers,
		SearchLimit: cfg.SearchResults,
		SearchRate:  rate.Limit(5),
		Logger:      slog.Default(),
	}

	var sp autocomplete.SpotifySuggester
	if cfg.SpotifyEnabled() {
		client := spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		opts.Spotify = client
		opts.IsSpotify = spotify.IsLink
		sp = client
		slog.Info("spotify links enabled")
	}
	if cfg.EnableSponsorBlock {
		opts.Sponsor = sponsorblock.NewApplier(sponsorblock.NewClient(sponsorblock.DefaultBaseURL), cfg.SponsorBlockTimeoutMin)
		slog.Info("sponsorblock enabled")
	}

	res := resolver.New(
		resolver.Chain{ytdlp, resolver.NewNative(nil)},
		resolver.Fallback{searcher, resolver.FlatSearch{Extractor: ytdlp}},
		opts,
	)
	cmd := NewCommandHandler(cfg, repo, res, autocomplete.New(autocomplete.DefaultEndpoint, sp))
	return &Bot{cfg: cfg, repo: repo, cmd: cmd}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		b.updatePresence(s)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range s.State.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guild", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		} else {
			slog.Info("cleared global application commands")
		}
		slog.Info("registered commands on all guilds")
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		appID := s.State.User.ID
		if err := b.cmd.RegisterCommands(s, appID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		} else {
			slog.Info("registered commands on new guild", "guild", g.ID)
		}
	})

	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		b.teardown(g.ID, "removed from guild")
	})

	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(b.onVoiceState)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.cmd.reg.Close(closeCtx); err != nil {
		slog.Warn("closing queues", "err", err)
	}
	return nil
}

func (b *Bot) updatePresence(s *discordgo.Session) {
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	})
	if err != nil {
		slog.Warn("update presence", "err", err)
	}
}

// onVoiceState tears the guild's queue down when the bot is taken out of
// voice, or when nobody is left listening and the guild wants that.
func (b *Bot) onVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	gid := vs.GuildID
	q := b.cmd.reg.Peek(gid)
	if q == nil {
		return
	}
	v := q.Voice()
	if v == nil {
		return
	}
	if s.State.User != nil && vs.UserID == s.State.User.ID && vs.ChannelID == "" {
		b.teardown(gid, "disconnected from voice")
		return
	}

	set, err := b.repo.GetSettings(context.Background(), gid)
	if err != nil || !set.LeaveIfNoListeners {
		return
	}
	if (voice.DiscordDirectory{S: s}).Listeners(gid, v.ChannelID()) == 0 {
		b.teardown(gid, "no listeners left")
	}
}

func (b *Bot) teardown(guildID, reason string) {
	if b.cmd.reg.Peek(guildID) == nil {
		return
	}
	slog.Info("leaving voice", "guildID", guildID, "reason", reason)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.cmd.reg.Teardown(ctx, guildID); err != nil {
			slog.Warn("teardown failed", "guildID", guildID, "err", err)
		}
	}()
}
