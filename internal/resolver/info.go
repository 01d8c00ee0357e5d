package resolver

import (
	"strings"
	"time"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

// Info is the subset of extractor output the bot uses.
type Info struct {
	ID          string
	Title       string
	Uploader    string
	Description string
	Duration    float64
	IsLive      bool
	WebpageURL  string
	URL         string
	Thumbnails  []media.Thumbnail

	Formats          []string
	RequestedFormats []string
	Headers          map[string]string

	Entries []Info
}

// AudioURL returns the best playable URL. Preferred order: requested
// formats, the top-level url, then formats, then the webpage.
func (i *Info) AudioURL() string {
	for _, u := range i.RequestedFormats {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	if strings.HasPrefix(i.URL, "http") {
		return i.URL
	}
	for _, u := range i.Formats {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	return i.WebpageURL
}

func (i *Info) partial() media.PartialTrack {
	uploader := i.Uploader
	if uploader == "" {
		uploader = media.UnknownUploader
	}
	return media.PartialTrack{
		ID:          i.ID,
		Title:       i.Title,
		Uploader:    uploader,
		Description: i.Description,
		Thumbnails:  i.Thumbnails,
	}
}

func (i *Info) track(now time.Time) media.Track {
	return media.Track{
		PartialTrack: i.partial(),
		StreamURL:    i.AudioURL(),
		Headers:      i.Headers,
		Duration:     i.Duration,
		IsLive:       i.IsLive,
		ResolvedAt:   now,
	}
}

func (i *Info) playlist() media.Playlist {
	entries := make([]media.PartialTrack, 0, len(i.Entries))
	for _, e := range i.Entries {
		if e.ID == "" {
			continue
		}
		entries = append(entries, e.partial())
	}
	return media.NewPlaylist(i.ID, i.Title, i.Uploader, i.Thumbnails, entries)
}
