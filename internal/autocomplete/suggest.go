package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/spotify"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

const (
	DefaultEndpoint = "https://suggestqueries.google.com/complete/search"

	// Discord limits choices to 25 and names to 100 runes.
	maxChoices = 25
	maxName    = 100
)

// SpotifySuggester is the part of the Spotify client autocomplete uses.
type SpotifySuggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]spotify.Suggestion, error)
}

type Suggester struct {
	endpoint string
	http     *http.Client
	spotify  SpotifySuggester
}

// New returns a Suggester. sp may be nil when Spotify is not configured.
func New(endpoint string, sp SpotifySuggester) *Suggester {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Suggester{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 3 * time.Second},
		spotify:  sp,
	}
}

func (s *Suggester) YouTube(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: unexpected status %d", resp.StatusCode)
	}

	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("suggest: decode: %w", err)
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Choices merges YouTube suggestions with Spotify albums and tracks, giving
// Spotify up to half of the slots.
func (s *Suggester) Choices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 || limit > maxChoices {
		limit = 10
	}
	yt, err := s.YouTube(ctx, query)
	if err != nil {
		slog.Debug("youtube suggestions failed", "err", err)
	}

	var sp []spotify.Suggestion
	if s.spotify != nil {
		sp, err = s.spotify.Suggest(ctx, query, max(limit/4, 1))
		if err != nil {
			slog.Debug("spotify suggestions failed", "err", err)
		}
		sp = sp[:min(len(sp), limit/2)]
	}

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	for _, v := range yt[:min(len(yt), limit-len(sp))] {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{
			Name:  utils.Truncate("YouTube: "+v, maxName),
			Value: v,
		})
	}
	for _, v := range sp {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{
			Name:  utils.Truncate("Spotify: "+v.Label, maxName),
			Value: v.URI,
		})
	}
	return out
}
