package autocomplete

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/spotify"
)

type fakeSpotify struct {
	out []spotify.Suggestion
	err error
}

func (f fakeSpotify) Suggest(ctx context.Context, q string, limit int) ([]spotify.Suggestion, error) {
	return f.out, f.err
}

func suggestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yt", r.URL.Query().Get("ds"))
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYouTube(t *testing.T) {
	srv := suggestServer(t, `["lofi",["lofi hip hop","lofi girl"]]`)
	s := New(srv.URL, nil)

	got, err := s.YouTube(context.Background(), "lofi")
	require.NoError(t, err)
	assert.Equal(t, []string{"lofi hip hop", "lofi girl"}, got)
}

func TestYouTube_BadPayload(t *testing.T) {
	srv := suggestServer(t, `["lofi"]`)
	got, err := New(srv.URL, nil).YouTube(context.Background(), "lofi")
	require.NoError(t, err)
	assert.Empty(t, got)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer down.Close()
	_, err = New(down.URL, nil).YouTube(context.Background(), "x")
	assert.Error(t, err)
}

func TestChoices_MergesSpotify(t *testing.T) {
	srv := suggestServer(t, `["q",["a","b","c","d","e","f"]]`)
	sp := fakeSpotify{out: []spotify.Suggestion{
		{Label: "💿 Album - Artist", URI: "spotify:album:1"},
		{Label: "🎵 Song - Artist", URI: "spotify:track:2"},
	}}
	choices := New(srv.URL, sp).Choices(context.Background(), "q", 4)

	require.Len(t, choices, 4)
	assert.Equal(t, "YouTube: a", choices[0].Name)
	assert.Equal(t, "b", choices[1].Value)
	assert.Equal(t, "Spotify: 💿 Album - Artist", choices[2].Name)
	assert.Equal(t, "spotify:track:2", choices[3].Value)
}

func TestChoices_SpotifyFailureKeepsYouTube(t *testing.T) {
	srv := suggestServer(t, `["q",["a","b"]]`)
	choices := New(srv.URL, fakeSpotify{err: errors.New("401")}).Choices(context.Background(), "q", 10)
	require.Len(t, choices, 2)
	assert.Equal(t, "a", choices[0].Value)
}
