package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	sendTimeout = 200 * time.Millisecond
	// maxDrops consecutive send timeouts end the track.
	maxDrops = 50
)

// DiscordTransport adapts a discordgo voice connection.
type DiscordTransport struct {
	vc *discordgo.VoiceConnection

	mu    sync.Mutex
	drops int
}

func NewDiscordTransport(vc *discordgo.VoiceConnection) *DiscordTransport {
	// Kill closes both channels and panics on nil ones
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	return &DiscordTransport{vc: vc}
}

func (d *DiscordTransport) ChannelID() string {
	d.vc.RLock()
	defer d.vc.RUnlock()
	return d.vc.ChannelID
}

func (d *DiscordTransport) SendOpus(ctx context.Context, pkt []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.vc.OpusSend <- pkt:
		d.mu.Lock()
		d.drops = 0
		d.mu.Unlock()
		return nil
	case <-time.After(sendTimeout):
		d.mu.Lock()
		defer d.mu.Unlock()
		d.drops++
		slog.Debug("dropped opus packet", "guildID", d.vc.GuildID, "consecutive", d.drops)
		if d.drops >= maxDrops {
			d.drops = 0
			return ErrStalled
		}
		return nil
	}
}

func (d *DiscordTransport) Speaking(on bool) error {
	return d.vc.Speaking(on)
}

func (d *DiscordTransport) Move(ctx context.Context, channelID string) error {
	return d.vc.ChangeChannel(channelID, false, true)
}

func (d *DiscordTransport) Disconnect(ctx context.Context) error {
	_ = d.vc.Speaking(false)
	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("voice disconnect panic recovered", "panic", r, "guildID", d.vc.GuildID)
				errc <- nil
			}
		}()
		errc <- d.vc.Disconnect()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscordDialer joins voice channels through a gateway session.
type DiscordDialer struct {
	S *discordgo.Session
}

func (d DiscordDialer) Join(ctx context.Context, guildID, channelID string) (Transport, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := d.S.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			if r.vc != nil {
				_ = r.vc.Disconnect()
			}
			return nil, r.err
		}
		return NewDiscordTransport(r.vc), nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// DiscordDirectory reads voice state from the gateway state cache.
type DiscordDirectory struct {
	S *discordgo.Session
}

func (d DiscordDirectory) UserChannel(guildID, userID string) (string, bool) {
	vs, err := d.S.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func (d DiscordDirectory) Listeners(guildID, channelID string) int {
	g, err := d.S.State.Guild(guildID)
	if err != nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if d.isBot(guildID, vs) {
			continue
		}
		n++
	}
	return n
}

func (d DiscordDirectory) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	if m, err := d.S.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User.Bot
	}
	return false
}
