package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestSettings_DefaultsWhenMissing(t *testing.T) {
	r := newTestRepo(t)

	s, err := r.GetSettings(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings("g1"), s)
}

func TestSettings_UpdateRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	// prime the cache so the update has to invalidate it
	_, err := r.GetSettings(ctx, "g1")
	require.NoError(t, err)

	want := Settings{
		GuildID:               "g1",
		PlaylistLimit:         200,
		SecondsWaitAfterEmpty: 0,
		LeaveIfNoListeners:    false,
		DefaultVolume:         80,
		QueuePageSize:         5,
		AnnounceNowPlaying:    false,
	}
	require.NoError(t, r.UpdateSettings(ctx, want))

	got, err := r.GetSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := r.GetSettings(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, 50, other.DefaultVolume)
}

func TestSettings_UpdateSetting(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	s, err := r.UpdateSetting(ctx, "g1", func(s *Settings) { s.DefaultVolume = 25 })
	require.NoError(t, err)
	assert.Equal(t, 25, s.DefaultVolume)
	assert.True(t, s.AnnounceNowPlaying)

	s, err = r.UpdateSetting(ctx, "g1", func(s *Settings) { s.PlaylistLimit = 10 })
	require.NoError(t, err)
	assert.Equal(t, 25, s.DefaultVolume)
	assert.Equal(t, 10, s.PlaylistLimit)
}

func TestOpenDB_MigratesOnce(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDB(dir)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n))
	assert.Zero(t, n)
}
