package voice

import (
	"context"
	"fmt"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

// Directory answers questions about guild voice state.
type Directory interface {
	// UserChannel returns the voice channel the user is in, if any.
	UserChannel(guildID, userID string) (string, bool)
	// Listeners counts non-bot members in a voice channel.
	Listeners(guildID, channelID string) int
}

type Dialer interface {
	Join(ctx context.Context, guildID, channelID string) (Transport, error)
}

// Conn is the part of an existing session Connect needs.
type Conn interface {
	ChannelID() string
	Move(ctx context.Context, channelID string) error
}

type Connector struct {
	Dir        Directory
	Dialer     Dialer
	NewSession func(guildID string, tr Transport) *Session
}

// Connect makes sure the bot is in the requester's voice channel. It
// returns a new Session only when it had to join; when cur is reused or
// moved it returns nil.
func (c *Connector) Connect(ctx context.Context, guildID, userID string, cur Conn) (*Session, error) {
	if guildID == "" {
		return nil, media.ErrGuildOnly
	}
	want, ok := c.Dir.UserChannel(guildID, userID)
	if !ok || want == "" {
		return nil, media.ErrNoVoiceChannel
	}

	if cur == nil {
		tr, err := c.Dialer.Join(ctx, guildID, want)
		if err != nil {
			return nil, fmt.Errorf("join voice channel: %w", err)
		}
		return c.NewSession(guildID, tr), nil
	}

	have := cur.ChannelID()
	if have == want {
		return nil, nil
	}
	if c.Dir.Listeners(guildID, have) > 0 {
		return nil, media.ErrDifferentVoiceChannel
	}
	if err := cur.Move(ctx, want); err != nil {
		return nil, fmt.Errorf("move voice channel: %w", err)
	}
	return nil, nil
}
