package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", dir)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, SearchSourceYouTube, cfg.SearchSource)
	assert.Equal(t, 10, cfg.SearchResults)
	assert.Equal(t, 500, cfg.QueueCapacity)
	assert.Equal(t, 10*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 45*time.Second, cfg.ResolveTimeout)
	assert.False(t, cfg.EnableSponsorBlock)
	assert.False(t, cfg.SpotifyEnabled())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SEARCH_SOURCE", "Music")
	t.Setenv("PROGRESS_INTERVAL", "3s")
	t.Setenv("ENABLE_SPONSORBLOCK", "true")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, SearchSourceMusic, cfg.SearchSource)
	assert.Equal(t, 3*time.Second, cfg.ProgressInterval)
	assert.True(t, cfg.EnableSponsorBlock)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestParse_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATA_DIR", t.TempDir())

	_, err := Parse()
	require.Error(t, err)

	var cerr ErrConfig
	assert.True(t, errors.As(err, &cerr))
}

func TestParse_InvalidSearchSource(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SEARCH_SOURCE", "soundcloud")

	_, err := Parse()
	assert.EqualError(t, err, "SEARCH_SOURCE must be youtube or music")
}
