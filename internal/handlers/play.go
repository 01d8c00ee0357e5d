package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
	"github.com/sonroyaalmerol/hkbot/internal/resolver"
	"github.com/sonroyaalmerol/hkbot/internal/ui"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
	"github.com/sonroyaalmerol/hkbot/internal/voice"
)

const joinTimeout = 15 * time.Second

// newQueue is the registry's constructor for guild queues.
func (h *CommandHandler) newQueue(guildID string) *player.Queue {
	set, err := h.repo.GetSettings(context.Background(), guildID)
	if err != nil {
		slog.Warn("get settings failed, using defaults", "guildID", guildID, "err", err)
		set = repository.DefaultSettings(guildID)
	}

	var q *player.Queue
	q = player.NewQueue(guildID, h.res, player.Options{
		Capacity:         h.cfg.QueueCapacity,
		ProgressInterval: h.cfg.ProgressInterval,
		ResolveTimeout:   h.cfg.ResolveTimeout,
		IdleTimeout:      time.Duration(set.SecondsWaitAfterEmpty) * time.Second,
		OnIdle: func() {
			ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
			defer cancel()
			if err := h.reg.Retire(ctx, q); err != nil {
				slog.Warn("idle teardown failed", "guildID", guildID, "err", err)
			}
		},
		Publisher: h.publisher(guildID),
		Logger:    slog.Default(),
	})
	return q
}

func (h *CommandHandler) publisher(guildID string) *channelPublisher {
	p, _ := h.pubs.LoadOrStore(guildID, &channelPublisher{repo: h.repo, guildID: guildID})
	return p.(*channelPublisher)
}

func (h *CommandHandler) joinLock(guildID string) *sync.Mutex {
	mu, _ := h.joins.LoadOrStore(guildID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// join puts the bot in the requester's voice channel and returns the
// guild's queue with a voice session attached.
func (h *CommandHandler) join(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (*player.Queue, repository.Settings, error) {
	set, err := h.repo.GetSettings(ctx, i.GuildID)
	if err != nil {
		return nil, set, fmt.Errorf("get settings: %w", err)
	}

	c := &voice.Connector{
		Dir:    voice.DiscordDirectory{S: s},
		Dialer: voice.DiscordDialer{S: s},
		NewSession: func(guildID string, tr voice.Transport) *voice.Session {
			return voice.NewSession(guildID, tr, nil, nil, float64(set.DefaultVolume)/100)
		},
	}
	q, err := h.joinWith(ctx, c, i.GuildID, userIDOf(i))
	if err != nil {
		return nil, set, err
	}
	h.publisher(i.GuildID).Bind(s, i.ChannelID)
	return q, set, nil
}

// joinWith connects through c and only then creates the guild's queue, so a
// rejected join leaves the registry untouched.
func (h *CommandHandler) joinWith(ctx context.Context, c *voice.Connector, guildID, userID string) (*player.Queue, error) {
	mu := h.joinLock(guildID)
	mu.Lock()
	defer mu.Unlock()

	prev := h.reg.Peek(guildID)
	var cur voice.Conn
	if prev != nil {
		if v := prev.Voice(); v != nil {
			cur = v
		}
	}

	jctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	sess, err := c.Connect(jctx, guildID, userID, cur)
	if err != nil {
		return nil, err
	}

	q := h.reg.GetOrCreate(guildID)
	if sess == nil {
		// cur was reused, it must still belong to the live queue
		if q != prev {
			return nil, player.ErrQueueClosed
		}
		return q, nil
	}
	if !q.Attach(sess) {
		_ = sess.Close(jctx)
		return nil, player.ErrQueueClosed
	}
	return q, nil
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionsOf(i.ApplicationCommandData().Options)
	query := opts.str("query")
	next := opts.boolean("next")
	shuffle := opts.boolean("shuffle")

	h.deferReply(s, i, false)
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ResolveTimeout)
	defer cancel()

	q, set, err := h.join(ctx, s, i)
	if err != nil {
		slog.Debug("join failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		h.fail(s, i, err)
		return
	}

	ds, err := h.res.ResolveScoped(ctx, query, resolver.Scope{
		RequestedBy:   userIDOf(i),
		PlaylistLimit: set.PlaylistLimit,
	})
	if err != nil {
		slog.Debug("resolve failed", "guildID", i.GuildID, "query", query, "err", err)
		h.fail(s, i, err)
		return
	}
	// free-text queries come back as a result list; only the best match
	// is queued
	if _, isPartial := ds[0].(media.PartialTrack); isPartial {
		ds = ds[:1]
	}
	if pl, ok := ds[0].(media.Playlist); ok && shuffle {
		pl.Entries = append([]media.PartialTrack(nil), pl.Entries...)
		utils.ShuffleSlice(pl.Entries)
		ds[0] = pl
	}

	h.enqueue(s, i, q, next, ds[0])
}

// enqueue puts d on q and reports what happened in the deferred reply.
func (h *CommandHandler) enqueue(s *discordgo.Session, i *discordgo.InteractionCreate, q *player.Queue, next bool, d media.Descriptor) {
	put := q.Put
	if next {
		put = q.PutNext
	}
	res, err := put(d)
	if err != nil {
		slog.Debug("put failed", "guildID", i.GuildID, "err", err)
		h.fail(s, i, err)
		return
	}
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userIDOf(i), "title", d.Name(), "added", res.Added, "started", res.Started)

	pl, isPlaylist := d.(media.Playlist)
	switch {
	case isPlaylist:
		h.editReplyEmbed(s, i, ui.QueuedPlaylist(pl, res.Added), nil)
	case res.Started:
		// the now-playing message follows shortly
		h.editReply(s, i, fmt.Sprintf("🎶 starting **%s**", utils.EscapeMd(d.Name())))
	default:
		pos := q.Len()
		if next {
			pos = 1
		}
		h.editReplyEmbed(s, i, ui.Queued(d.(media.Entry), pos), nil)
	}
}

func (h *CommandHandler) cmdSearch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := optionsOf(i.ApplicationCommandData().Options).str("query")

	h.deferReply(s, i, true)
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ResolveTimeout)
	defer cancel()

	results, err := h.res.Search(ctx, query, h.cfg.SearchResults)
	if err != nil {
		slog.Debug("search failed", "guildID", i.GuildID, "query", query, "err", err)
		h.fail(s, i, err)
		return
	}
	key := uuid.NewString()
	h.searches.Set(key, results)
	slog.Debug("cmd search", "guildID", i.GuildID, "userID", userIDOf(i), "query", query, "results", len(results), "key", key)
	h.editReplyEmbed(s, i, ui.SearchResults(query, results), ui.SearchMenu(key, results))
}

func (h *CommandHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	key, ok := ui.SearchKey(data.CustomID)
	if !ok {
		return
	}
	if i.GuildID == "" {
		h.reply(s, i, media.ErrGuildOnly.Error(), true)
		return
	}
	results, ok := h.searches.Get(key)
	if !ok || len(data.Values) == 0 {
		h.reply(s, i, "this search has expired, try again", true)
		return
	}
	idx, err := strconv.Atoi(data.Values[0])
	if err != nil || idx < 0 || idx >= len(results) {
		h.reply(s, i, "invalid choice", true)
		return
	}
	h.searches.Delete(key)

	pick := results[idx]
	pick.RequestedBy = userIDOf(i)

	h.deferReply(s, i, false)
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	q, _, err := h.join(ctx, s, i)
	if err != nil {
		h.fail(s, i, err)
		return
	}
	h.enqueue(s, i, q, false, pick)
}

// userMessage is the text shown to a user for err.
func userMessage(err error) string {
	var me media.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &me):
		return me.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "that took too long, try again"
	case errors.Is(err, player.ErrNothingPlaying),
		errors.Is(err, player.ErrQueueFull),
		errors.Is(err, player.ErrIndex),
		errors.Is(err, player.ErrCannotSeek),
		errors.Is(err, player.ErrSeekRange),
		errors.Is(err, ui.ErrPageRange),
		errors.Is(err, utils.ErrBadDuration):
		return err.Error()
	case errors.Is(err, player.ErrQueueClosed), errors.Is(err, player.ErrNotConnected):
		return "the player is restarting, try again"
	}
	return "something went wrong"
}
