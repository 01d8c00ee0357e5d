package sponsorblock

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sonroyaalmerol/hkbot/internal/cache"
	"github.com/sonroyaalmerol/hkbot/internal/media"
)

const category = "music_offtopic"

// edge is how close to either end of a track a segment must sit to count
// as an intro or outro.
const edge = 2.0

type Applier struct {
	client     *Client
	cache      *cache.Cache[[]Segment]
	disableFor time.Duration

	mu            sync.Mutex
	disabledUntil time.Time
}

func NewApplier(client *Client, timeoutMinutes int) *Applier {
	if client == nil {
		client = NewClient("")
	}
	return &Applier{
		client:     client,
		cache:      cache.New[[]Segment](time.Hour, 2048),
		disableFor: time.Duration(timeoutMinutes) * time.Minute,
	}
}

func (a *Applier) disabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Now().Before(a.disabledUntil)
}

func (a *Applier) backoff() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disabledUntil = time.Now().Add(a.disableFor)
}

// Adjust skips an off-topic intro and trims an off-topic outro. It returns
// the adjusted track and a short description of what changed.
func (a *Applier) Adjust(ctx context.Context, t media.Track) (media.Track, string, bool) {
	if a == nil || t.ID == "" || t.IsLive || t.Duration <= 0 || a.disabled() {
		return t, "", false
	}

	key := category + ":" + t.ID
	segs, ok := a.cache.Get(key)
	if !ok {
		var err error
		segs, err = a.client.GetSegments(ctx, t.ID, []string{category})
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				a.backoff()
			}
			slog.Debug("sponsorblock lookup failed", "videoID", t.ID, "err", err)
			return t, "", false
		}
		a.cache.Set(key, segs)
	}
	if len(segs) == 0 {
		return t, "", false
	}
	segs = MergeSegments(segs)

	changed := false
	var parts []string

	last := segs[len(segs)-1]
	if last.Segment[1] >= t.Duration-edge && last.Segment[0] > t.Offset && last.Segment[0] < t.Duration {
		t.End = last.Segment[0]
		changed = true
		parts = append(parts, "trimmed outro")
	}

	first := segs[0]
	if first.Segment[0] <= edge && first.Segment[1] > t.Offset && first.Segment[1] < t.Stop() {
		t.Offset = first.Segment[1]
		changed = true
		parts = append(parts, "skipped intro")
	}

	return t, strings.Join(parts, ", "), changed
}
