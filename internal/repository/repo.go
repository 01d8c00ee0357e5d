package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sonroyaalmerol/hkbot/internal/cache"
)

const settingsTTL = 5 * time.Minute

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db, cache: cache.New[Settings](settingsTTL, 1024)}
}

// GetSettings returns the stored settings of guild, or the defaults when
// the guild has none yet.
func (r *Repo) GetSettings(ctx context.Context, guild string) (Settings, error) {
	if s, ok := r.cache.Get(guild); ok {
		return s, nil
	}

	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, playlist_limit, seconds_wait_after_empty, leave_if_no_listeners,
	       default_volume, queue_page_size, announce_now_playing
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var leave, announce int
	if err := row.Scan(
		&s.GuildID,
		&s.PlaylistLimit,
		&s.SecondsWaitAfterEmpty,
		&leave,
		&s.DefaultVolume,
		&s.QueuePageSize,
		&announce,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultSettings(guild), nil
		}
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s.LeaveIfNoListeners = leave != 0
	s.AnnounceNowPlaying = announce != 0

	r.cache.Set(guild, s)
	return s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(
		  guild_id, playlist_limit, seconds_wait_after_empty, leave_if_no_listeners,
		  default_volume, queue_page_size, announce_now_playing, updated_at
		) VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(guild_id) DO UPDATE SET
		  playlist_limit=excluded.playlist_limit,
		  seconds_wait_after_empty=excluded.seconds_wait_after_empty,
		  leave_if_no_listeners=excluded.leave_if_no_listeners,
		  default_volume=excluded.default_volume,
		  queue_page_size=excluded.queue_page_size,
		  announce_now_playing=excluded.announce_now_playing,
		  updated_at=excluded.updated_at`,
		s.GuildID, s.PlaylistLimit, s.SecondsWaitAfterEmpty, boolToInt(s.LeaveIfNoListeners),
		s.DefaultVolume, s.QueuePageSize, boolToInt(s.AnnounceNowPlaying), time.Now().Unix(),
	)
	r.cache.Delete(s.GuildID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// UpdateSetting applies fn to the current settings of guild and stores
// the result.
func (r *Repo) UpdateSetting(ctx context.Context, guild string, fn func(*Settings)) (Settings, error) {
	s, err := r.GetSettings(ctx, guild)
	if err != nil {
		return Settings{}, err
	}
	fn(&s)
	if err := r.UpdateSettings(ctx, s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
