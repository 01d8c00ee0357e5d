package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

var ErrNotSpotify = errors.New("not a spotify link")

const Market = "US"

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

// ParseID accepts open.spotify.com links and spotify: URIs.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return checkType(parts[1], parts[2])
		}
		return "", "", fmt.Errorf("invalid spotify URI: %w", ErrNotSpotify)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNotSpotify, err)
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path: %w", ErrNotSpotify)
	}
	return checkType(parts[0], parts[1])
}

func checkType(typ, id string) (string, spotify.ID, error) {
	switch typ {
	case "album", "playlist", "track", "artist":
		return typ, spotify.ID(id), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q: %w", typ, ErrNotSpotify)
}

// IsLink reports whether raw looks like something ParseID accepts.
func IsLink(raw string) bool {
	_, _, err := ParseID(raw)
	return err == nil
}

// SearchQuery builds the extractor query that stands in for a Spotify track.
func SearchQuery(name, artist string) string {
	if artist == "" {
		return fmt.Sprintf("ytsearch1:%q", name)
	}
	return fmt.Sprintf("ytsearch1:%q %q", name, artist)
}

func partial(id spotify.ID, name string, artists []spotify.SimpleArtist, images []spotify.Image) media.PartialTrack {
	artist := ""
	if len(artists) > 0 {
		artist = artists[0].Name
	}
	return media.PartialTrack{
		ID:         "spotify:" + id.String(),
		Title:      name,
		Uploader:   artist,
		Thumbnails: thumbs(images),
		Query:      SearchQuery(name, artist),
	}
}

// thumbs orders images smallest first so Thumbnail() picks the largest.
func thumbs(images []spotify.Image) []media.Thumbnail {
	out := make([]media.Thumbnail, 0, len(images))
	for i := len(images) - 1; i >= 0; i-- {
		im := images[i]
		out = append(out, media.Thumbnail{URL: im.URL, Width: int(im.Width), Height: int(im.Height)})
	}
	return out
}

// Resolve expands a Spotify link into a PartialTrack (track) or a Playlist
// (album, playlist, artist top tracks). limit caps playlist entries; 0 means
// no cap.
func (c *Client) Resolve(ctx context.Context, raw string, limit int) (media.Descriptor, error) {
	typ, id, err := ParseID(raw)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "track":
		return c.Track(ctx, id)
	case "album":
		return c.Album(ctx, id, limit)
	case "playlist":
		return c.Playlist(ctx, id, limit)
	default:
		return c.ArtistTop(ctx, id, limit)
	}
}

func (c *Client) Track(ctx context.Context, id spotify.ID) (media.PartialTrack, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return media.PartialTrack{}, fmt.Errorf("get track %s: %w", id, err)
	}
	return partial(t.ID, t.Name, t.Artists, t.Album.Images), nil
}

func (c *Client) Album(ctx context.Context, id spotify.ID, limit int) (media.Playlist, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get album %s: %w", id, err)
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get album tracks %s: %w", id, err)
	}
	var out []media.PartialTrack
	full := func() bool { return limit > 0 && len(out) >= limit }
	add := func(items []spotify.SimpleTrack) {
		for _, t := range items {
			if full() {
				return
			}
			out = append(out, partial(t.ID, t.Name, t.Artists, alb.Images))
		}
	}
	add(page.Tracks)
	for page.Next != "" && !full() {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Tracks)
	}
	uploader := ""
	if len(alb.Artists) > 0 {
		uploader = alb.Artists[0].Name
	}
	return media.NewPlaylist("spotify:album:"+id.String(), alb.Name, uploader, thumbs(alb.Images), out), nil
}

func (c *Client) Playlist(ctx context.Context, id spotify.ID, limit int) (media.Playlist, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get playlist %s: %w", id, err)
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get playlist items %s: %w", id, err)
	}
	var out []media.PartialTrack
	full := func() bool { return limit > 0 && len(out) >= limit }
	add := func(items []spotify.PlaylistItem) {
		for _, it := range items {
			if full() {
				return
			}
			// episodes and local files have no Track
			if t := it.Track.Track; t != nil {
				out = append(out, partial(t.ID, t.Name, t.Artists, t.Album.Images))
			}
		}
	}
	add(page.Items)
	for page.Next != "" && !full() {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Items)
	}
	return media.NewPlaylist("spotify:playlist:"+id.String(), pl.Name, pl.Owner.DisplayName, thumbs(pl.Images), out), nil
}

func (c *Client) ArtistTop(ctx context.Context, id spotify.ID, limit int) (media.Playlist, error) {
	artist, err := c.raw.GetArtist(ctx, id)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get artist %s: %w", id, err)
	}
	top, err := c.raw.GetArtistsTopTracks(ctx, id, Market)
	if err != nil {
		return media.Playlist{}, fmt.Errorf("get top tracks %s: %w", id, err)
	}
	out := make([]media.PartialTrack, 0, len(top))
	for _, t := range top {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, partial(t.ID, t.Name, t.Artists, t.Album.Images))
	}
	return media.NewPlaylist("spotify:artist:"+id.String(), artist.Name+" top tracks", artist.Name, thumbs(artist.Images), out), nil
}

// Suggestion is an autocomplete candidate.
type Suggestion struct {
	Label string
	URI   string
}

func (c *Client) Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeAlbum|spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	var out []Suggestion
	if res.Albums != nil {
		for _, a := range res.Albums.Albums {
			out = append(out, Suggestion{Label: label("💿", a.Name, a.Artists), URI: "spotify:album:" + a.ID.String()})
		}
	}
	if res.Tracks != nil {
		for _, t := range res.Tracks.Tracks {
			out = append(out, Suggestion{Label: label("🎵", t.Name, t.Artists), URI: "spotify:track:" + t.ID.String()})
		}
	}
	return out, nil
}

func label(icon, name string, artists []spotify.SimpleArtist) string {
	s := icon + " " + name
	if len(artists) > 0 {
		s += " - " + artists[0].Name
	}
	return s
}
