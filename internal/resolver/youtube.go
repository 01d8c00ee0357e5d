package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

var errUnsupported = errors.New("unsupported by extractor")

// Native resolves single YouTube videos without yt-dlp. It backs up YTDLP
// when the binary is missing or blocked.
type Native struct {
	client *youtube.Client
}

func NewNative(httpClient *http.Client) *Native {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Native{client: &youtube.Client{HTTPClient: httpClient}}
}

func (n *Native) Extract(ctx context.Context, uri string) (*Info, error) {
	if strings.HasPrefix(uri, "ytsearch") || (isURL(uri) && !isVideo(uri)) {
		return nil, errUnsupported
	}
	video, err := n.client.GetVideoContext(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("youtube get video: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, errors.New("no audio formats found for video")
	}
	best := 0
	for i, fm := range formats {
		audioOnly := strings.HasPrefix(fm.MimeType, "audio/")
		if audioOnly && (!strings.HasPrefix(formats[best].MimeType, "audio/") || fm.Bitrate > formats[best].Bitrate) {
			best = i
		}
	}
	streamURL, err := n.client.GetStreamURLContext(ctx, video, &formats[best])
	if err != nil {
		return nil, fmt.Errorf("youtube stream url: %w", err)
	}

	thumbs := make([]media.Thumbnail, 0, len(video.Thumbnails))
	for _, t := range video.Thumbnails {
		thumbs = append(thumbs, media.Thumbnail{URL: t.URL, Width: int(t.Width), Height: int(t.Height)})
	}
	return &Info{
		ID:          video.ID,
		Title:       video.Title,
		Uploader:    video.Author,
		Description: video.Description,
		Duration:    video.Duration.Seconds(),
		IsLive:      video.Duration == 0,
		WebpageURL:  "https://www.youtube.com/watch?v=" + video.ID,
		URL:         streamURL,
		Thumbnails:  thumbs,
	}, nil
}

func (n *Native) ExtractFlat(ctx context.Context, uri string) (*Info, error) {
	return nil, errUnsupported
}

// Chain tries each extractor in order until one succeeds.
type Chain []Extractor

func (c Chain) Extract(ctx context.Context, uri string) (*Info, error) {
	return c.each(ctx, func(e Extractor) (*Info, error) { return e.Extract(ctx, uri) })
}

func (c Chain) ExtractFlat(ctx context.Context, uri string) (*Info, error) {
	return c.each(ctx, func(e Extractor) (*Info, error) { return e.ExtractFlat(ctx, uri) })
}

func (c Chain) each(ctx context.Context, fn func(Extractor) (*Info, error)) (*Info, error) {
	var errs []error
	for _, e := range c {
		info, err := fn(e)
		if err == nil {
			return info, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, errUnsupported) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil, errUnsupported
	}
	return nil, errors.Join(errs...)
}
