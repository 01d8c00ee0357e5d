package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

// Searcher turns free text into up to limit candidates.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error)
}

// YouTubeSearch scrapes YouTube search results.
type YouTubeSearch struct {
	client *ytsearch.Client
}

func NewYouTubeSearch() *YouTubeSearch {
	return &YouTubeSearch{client: ytsearch.NewClient(nil)}
}

func (y *YouTubeSearch) Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error) {
	res, err := y.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	out := make([]media.PartialTrack, 0, limit)
	for _, r := range res.Results {
		if len(out) >= limit {
			break
		}
		if r.VideoID == "" {
			continue
		}
		out = append(out, media.PartialTrack{
			ID:          r.VideoID,
			Title:       r.Title,
			Uploader:    orUnknown(r.Channel),
			Description: r.Duration,
			Thumbnails:  []media.Thumbnail{{URL: "https://i.ytimg.com/vi/" + r.VideoID + "/hqdefault.jpg"}},
		})
	}
	return out, nil
}

// MusicSearch queries YouTube Music tracks.
type MusicSearch struct{}

func (MusicSearch) Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error) {
	type result struct {
		tracks []media.PartialTrack
		err    error
	}
	// the ytmusic client takes no context
	ch := make(chan result, 1)
	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			ch <- result{err: fmt.Errorf("ytmusic search: %w", err)}
			return
		}
		out := make([]media.PartialTrack, 0, limit)
		for _, t := range r.Tracks {
			if len(out) >= limit {
				break
			}
			if t.VideoID == "" {
				continue
			}
			artist := ""
			if len(t.Artists) > 0 {
				artist = t.Artists[0].Name
			}
			out = append(out, media.PartialTrack{
				ID:         t.VideoID,
				Title:      t.Title,
				Uploader:   orUnknown(artist),
				Thumbnails: []media.Thumbnail{{URL: "https://i.ytimg.com/vi/" + t.VideoID + "/hqdefault.jpg"}},
			})
		}
		ch <- result{tracks: out}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.tracks, r.err
	}
}

// FlatSearch runs an extractor "ytsearchN:" query.
type FlatSearch struct {
	Extractor Extractor
}

func (fs FlatSearch) Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error) {
	info, err := fs.Extractor.ExtractFlat(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, err
	}
	out := make([]media.PartialTrack, 0, len(info.Entries))
	for _, e := range info.Entries {
		if e.ID == "" {
			continue
		}
		out = append(out, e.partial())
	}
	return out, nil
}

// Fallback returns the first non-empty result.
type Fallback []Searcher

func (fb Fallback) Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error) {
	var errs []error
	for _, s := range fb {
		out, err := s.Search(ctx, query, limit)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(errs...)
}

func orUnknown(s string) string {
	if s == "" {
		return media.UnknownUploader
	}
	return s
}
