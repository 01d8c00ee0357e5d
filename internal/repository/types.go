package repository

import (
	"database/sql"

	"github.com/sonroyaalmerol/hkbot/internal/cache"
)

type Repo struct {
	db    *sql.DB
	cache *cache.Cache[Settings]
}

// Settings are the per-guild knobs of the player.
type Settings struct {
	GuildID               string
	PlaylistLimit         int
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	DefaultVolume         int // percent
	QueuePageSize         int
	AnnounceNowPlaying    bool
}

// DefaultSettings mirrors the column defaults of the settings table.
func DefaultSettings(guildID string) Settings {
	return Settings{
		GuildID:               guildID,
		PlaylistLimit:         50,
		SecondsWaitAfterEmpty: 30,
		LeaveIfNoListeners:    true,
		DefaultVolume:         50,
		QueuePageSize:         10,
		AnnounceNowPlaying:    true,
	}
}
