package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/player"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
	"github.com/sonroyaalmerol/hkbot/internal/ui"
)

// channelPublisher posts now-playing messages to the text channel the
// guild last sent a play command from.
type channelPublisher struct {
	repo    *repository.Repo
	guildID string

	mu      sync.Mutex
	s       *discordgo.Session
	channel string
}

func (p *channelPublisher) Bind(s *discordgo.Session, channelID string) {
	p.mu.Lock()
	p.s, p.channel = s, channelID
	p.mu.Unlock()
}

func (p *channelPublisher) target() (*discordgo.Session, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s, p.channel
}

func (p *channelPublisher) Send(ctx context.Context, n player.Notice) (player.Message, error) {
	s, ch := p.target()
	if s == nil || ch == "" {
		return nil, nil
	}
	set, err := p.repo.GetSettings(ctx, p.guildID)
	if err != nil {
		slog.Debug("get settings failed, announcing anyway", "guildID", p.guildID, "err", err)
	} else if !set.AnnounceNowPlaying {
		return nil, nil
	}
	m, err := s.ChannelMessageSendEmbed(ch, ui.NowPlaying(n), discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &channelMessage{s: s, channelID: ch, id: m.ID}, nil
}

type channelMessage struct {
	s         *discordgo.Session
	channelID string
	id        string
}

func (m *channelMessage) Edit(ctx context.Context, n player.Notice) error {
	_, err := m.s.ChannelMessageEditEmbed(m.channelID, m.id, ui.NowPlaying(n), discordgo.WithContext(ctx))
	return err
}

func (m *channelMessage) Delete(ctx context.Context) error {
	return m.s.ChannelMessageDelete(m.channelID, m.id, discordgo.WithContext(ctx))
}
