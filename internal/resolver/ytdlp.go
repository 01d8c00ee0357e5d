package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

const audioFormat = "ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best"

var errNoInfo = errors.New("no info returned")

// Extractor turns a URL or extractor query into metadata.
type Extractor interface {
	// Extract fully resolves a single item, stream URL included.
	Extract(ctx context.Context, uri string) (*Info, error)
	// ExtractFlat lists a playlist or search without resolving entries.
	ExtractFlat(ctx context.Context, uri string) (*Info, error)
}

// YTDLP shells out to yt-dlp, installing it on first use.
type YTDLP struct {
	cookies string
	proxy   string

	installOnce sync.Once
}

func NewYTDLP(cookiesPath, proxy string) *YTDLP {
	return &YTDLP{cookies: cookiesPath, proxy: proxy}
}

func (y *YTDLP) install(ctx context.Context) {
	y.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			// Run surfaces a missing binary on its own
			slog.Warn("yt-dlp install failed", "err", err)
		}
	})
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates().NoWarnings()
	if y.cookies != "" {
		cmd = cmd.Cookies(y.cookies)
	}
	if y.proxy != "" {
		cmd = cmd.Proxy(y.proxy)
	}
	return cmd
}

func (y *YTDLP) Extract(ctx context.Context, uri string) (*Info, error) {
	y.install(ctx)
	res, err := y.command().
		Format(audioFormat).
		NoPlaylist().
		DumpJSON().
		Run(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	return parseResult(res)
}

func (y *YTDLP) ExtractFlat(ctx context.Context, uri string) (*Info, error) {
	y.install(ctx)
	res, err := y.command().
		FlatPlaylist().
		DumpSingleJSON().
		Run(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	return parseResult(res)
}

// headerProbe picks up http_headers, which the typed info leaves out.
type headerProbe struct {
	HTTPHeaders      map[string]string `json:"http_headers"`
	RequestedFormats []struct {
		HTTPHeaders map[string]string `json:"http_headers"`
	} `json:"requested_formats"`
}

func parseResult(res *ytdlp.Result) (*Info, error) {
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	var first *ytdlp.ExtractedInfo
	for _, in := range infos {
		if in != nil {
			first = in
			break
		}
	}
	if first == nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", errNoInfo)
	}
	out := fromExtracted(first)

	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	var probe headerProbe
	if err := json.Unmarshal([]byte(line), &probe); err == nil {
		out.Headers = probe.HTTPHeaders
		if len(probe.RequestedFormats) > 0 && len(probe.RequestedFormats[0].HTTPHeaders) > 0 {
			out.Headers = probe.RequestedFormats[0].HTTPHeaders
		}
	}
	return out, nil
}

func fromExtracted(e *ytdlp.ExtractedInfo) *Info {
	out := &Info{
		ID:               e.ID,
		Title:            s(e.Title),
		Uploader:         s(e.Uploader),
		Description:      s(e.Description),
		Duration:         f(e.Duration),
		IsLive:           b(e.IsLive),
		WebpageURL:       s(e.WebpageURL),
		URL:              s(e.URL),
		Thumbnails:       mapThumbs(e.Thumbnails),
		Formats:          mapFormats(e.Formats),
		RequestedFormats: mapFormats(e.RequestedFormats),
	}
	for _, ent := range e.Entries {
		if ent == nil {
			continue
		}
		out.Entries = append(out.Entries, *fromExtracted(ent))
	}
	return out
}

func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}

func mapThumbs(ts []*ytdlp.ExtractedThumbnail) []media.Thumbnail {
	out := make([]media.Thumbnail, 0, len(ts))
	for _, t := range ts {
		if t == nil || t.URL == "" {
			continue
		}
		out = append(out, media.Thumbnail{URL: t.URL})
	}
	return out
}

func mapFormats(fs []*ytdlp.ExtractedFormat) []string {
	out := make([]string, 0, len(fs))
	for _, fm := range fs {
		if fm == nil {
			continue
		}
		if fm.URL != "" {
			out = append(out, fm.URL)
		}
	}
	return out
}
