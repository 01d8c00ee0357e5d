package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/autocomplete"
	"github.com/sonroyaalmerol/hkbot/internal/config"
	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
	"github.com/sonroyaalmerol/hkbot/internal/ui"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
	"github.com/sonroyaalmerol/hkbot/internal/voice"
)

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func subcommand(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func newTestRepo(t *testing.T) *repository.Repo {
	t.Helper()
	db, err := repository.OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewRepo(db)
}

type voiceDirectory map[string]string

func (d voiceDirectory) UserChannel(guildID, userID string) (string, bool) {
	ch, ok := d[userID]
	return ch, ok
}

func (d voiceDirectory) Listeners(guildID, channelID string) int { return 0 }

type voiceTransport struct{ channel string }

func (t *voiceTransport) ChannelID() string                              { return t.channel }
func (t *voiceTransport) SendOpus(ctx context.Context, pkt []byte) error { return nil }
func (t *voiceTransport) Speaking(on bool) error                         { return nil }
func (t *voiceTransport) Disconnect(ctx context.Context) error           { return nil }

func (t *voiceTransport) Move(ctx context.Context, channelID string) error {
	t.channel = channelID
	return nil
}

type voiceDialer struct{ joins int }

func (d *voiceDialer) Join(ctx context.Context, guildID, channelID string) (voice.Transport, error) {
	d.joins++
	return &voiceTransport{channel: channelID}, nil
}

func newTestHandler(t *testing.T) *CommandHandler {
	t.Helper()
	cfg := &config.Config{QueueCapacity: 2, ProgressInterval: time.Second, ResolveTimeout: time.Second}
	h := NewCommandHandler(cfg, newTestRepo(t), nil, autocomplete.New("", nil))
	t.Cleanup(func() { _ = h.reg.Close(context.Background()) })
	return h
}

func newTestConnector(dir voiceDirectory, d *voiceDialer) *voice.Connector {
	return &voice.Connector{
		Dir:    dir,
		Dialer: d,
		NewSession: func(guildID string, tr voice.Transport) *voice.Session {
			return voice.NewSession(guildID, tr, nil, nil, 0.5)
		},
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{media.ErrNoVoiceChannel, "You must be in a voice channel!"},
		{fmt.Errorf("resolve %q: %w", "x", media.ErrUnknownTrack), "Could not find that song!"},
		{fmt.Errorf("join: %w", context.DeadlineExceeded), "that took too long, try again"},
		{player.ErrNothingPlaying, "nothing is playing"},
		{player.ErrCannotSeek, "can't seek in a livestream"},
		{ui.ErrPageRange, "the queue isn't that big"},
		{utils.ErrBadDuration, "bad duration"},
		{player.ErrQueueClosed, "the player is restarting, try again"},
		{errors.New("websocket: close 4006"), "something went wrong"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, userMessage(c.err), "%v", c.err)
	}
	assert.Empty(t, userMessage(nil))
}

func TestOptions(t *testing.T) {
	opts := optionsOf([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "lofi"},
		intOpt("count", 3),
		boolOpt("next", true),
	})
	assert.Equal(t, "lofi", opts.str("query"))
	assert.Equal(t, 3, opts.integer("count", 1))
	assert.Equal(t, 1, opts.integer("page", 1))
	assert.True(t, opts.boolean("next"))
	assert.False(t, opts.boolean("shuffle"))
	assert.Empty(t, opts.str("missing"))
}

func TestCommands_UniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands() {
		assert.False(t, seen[c.Name], "duplicate command %s", c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Description, c.Name)
	}
	for _, name := range []string{"play", "search", "skip", "pause", "resume", "queue", "now-playing",
		"volume", "loop", "remove", "clear", "shuffle", "seek", "disconnect", "config"} {
		assert.True(t, seen[name], "missing command %s", name)
	}
}

func TestSettingUpdate(t *testing.T) {
	set := repository.DefaultSettings("g1")

	fn, key, msg, err := settingUpdate(subcommand("set-default-volume", intOpt("level", 80)))
	require.NoError(t, err)
	fn(&set)
	assert.Equal(t, 80, set.DefaultVolume)
	assert.Equal(t, "DefaultVolume", key)
	assert.Contains(t, msg, "volume")

	fn, _, _, err = settingUpdate(subcommand("set-announce-now-playing", boolOpt("value", false)))
	require.NoError(t, err)
	fn(&set)
	assert.False(t, set.AnnounceNowPlaying)

	fn, _, _, err = settingUpdate(subcommand("set-wait-after-queue-empties", intOpt("delay", 0)))
	require.NoError(t, err)
	fn(&set)
	assert.Zero(t, set.SecondsWaitAfterEmpty)
	assert.Contains(t, formatSettings(set), "never leave")

	for _, bad := range []*discordgo.ApplicationCommandInteractionDataOption{
		subcommand("set-playlist-limit", intOpt("limit", 0)),
		subcommand("set-default-volume", intOpt("level", 101)),
		subcommand("set-queue-page-size", intOpt("page_size", 31)),
		subcommand("set-wait-after-queue-empties", intOpt("delay", -1)),
		subcommand("set-nothing"),
	} {
		_, _, _, err := settingUpdate(bad)
		var invalid ErrInvalidSetting
		assert.ErrorAs(t, err, &invalid, bad.Name)
	}
}

func TestNewQueue_UsesGuildSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.UpdateSetting(ctx, "g1", func(s *repository.Settings) { s.SecondsWaitAfterEmpty = 0 })
	require.NoError(t, err)

	cfg := &config.Config{QueueCapacity: 2, ProgressInterval: time.Second, ResolveTimeout: time.Second}
	h := NewCommandHandler(cfg, repo, nil, autocomplete.New("", nil))

	q := h.reg.GetOrCreate("g1")
	t.Cleanup(func() { _ = h.reg.Close(ctx) })
	assert.Same(t, q, h.reg.GetOrCreate("g1"))
	assert.Same(t, h.publisher("g1"), h.publisher("g1"))

	_, err = q.Put(media.PartialTrack{ID: "a"})
	assert.ErrorIs(t, err, player.ErrNotConnected)

	require.NoError(t, h.reg.Teardown(ctx, "g1"))
	assert.Nil(t, h.reg.Peek("g1"))
}

func TestJoin_RejectedLeavesNoQueue(t *testing.T) {
	h := newTestHandler(t)
	d := &voiceDialer{}
	c := newTestConnector(voiceDirectory{}, d)

	q, err := h.joinWith(context.Background(), c, "g1", "u1")
	assert.ErrorIs(t, err, media.ErrNoVoiceChannel)
	assert.Nil(t, q)
	assert.Zero(t, h.reg.Len())
	assert.Nil(t, h.reg.Peek("g1"))
	assert.Zero(t, d.joins)

	_, err = h.joinWith(context.Background(), c, "", "u1")
	assert.ErrorIs(t, err, media.ErrGuildOnly)
	assert.Zero(t, h.reg.Len())
}

func TestJoin_AttachesAndReuses(t *testing.T) {
	h := newTestHandler(t)
	d := &voiceDialer{}
	c := newTestConnector(voiceDirectory{"u1": "vc1"}, d)

	q, err := h.joinWith(context.Background(), c, "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, q.Voice())
	assert.Equal(t, "vc1", q.Voice().ChannelID())
	assert.Equal(t, 1, h.reg.Len())

	again, err := h.joinWith(context.Background(), c, "g1", "u1")
	require.NoError(t, err)
	assert.Same(t, q, again)
	assert.Equal(t, 1, d.joins)
}

func TestPublisher_UnboundSendsNothing(t *testing.T) {
	p := &channelPublisher{repo: newTestRepo(t), guildID: "g1"}
	msg, err := p.Send(context.Background(), player.Notice{})
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestUserIDOf(t *testing.T) {
	assert.Empty(t, userIDOf(nil))
	assert.Equal(t, "u1", userIDOf(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1"}},
	}}))
	assert.Equal(t, "u2", userIDOf(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u2"},
	}}))
}
