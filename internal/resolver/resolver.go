package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sonroyaalmerol/hkbot/internal/cache"
	"github.com/sonroyaalmerol/hkbot/internal/media"
)

const (
	DefaultURLTTL      = 5 * time.Hour
	DefaultSearchLimit = 10
	DefaultWorkers     = 4
)

// Expander turns a link on another service into extractor queries.
type Expander interface {
	Resolve(ctx context.Context, raw string, limit int) (media.Descriptor, error)
}

// Adjuster rewrites a freshly materialized track, e.g. to skip an intro.
type Adjuster interface {
	Adjust(ctx context.Context, t media.Track) (media.Track, string, bool)
}

type Options struct {
	Workers     int
	URLTTL      time.Duration
	SearchLimit int
	// SearchRate caps searches per second across all guilds.
	SearchRate rate.Limit
	Spotify    Expander
	IsSpotify  func(string) bool
	Sponsor    Adjuster
	Logger     *slog.Logger
}

// Scope carries per-request knobs.
type Scope struct {
	RequestedBy   string
	PlaylistLimit int
}

type Resolver struct {
	extractor Extractor
	searcher  Searcher
	opts      Options

	sem     *semaphore.Weighted
	limiter *rate.Limiter
	tracks  *cache.Cache[media.Track]
	now     func() time.Time
	log     *slog.Logger
}

func New(ex Extractor, se Searcher, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.SearchRate == 0 {
		opts.SearchRate = rate.Limit(5)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{
		extractor: ex,
		searcher:  se,
		opts:      opts,
		sem:       semaphore.NewWeighted(int64(opts.Workers)),
		limiter:   rate.NewLimiter(opts.SearchRate, opts.Workers),
		tracks:    cache.New[media.Track](opts.URLTTL, 4096),
		now:       time.Now,
		log:       opts.Logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, query string) ([]media.Descriptor, error) {
	return r.ResolveScoped(ctx, query, Scope{})
}

// ResolveScoped returns a non-empty list of descriptors for query.
func (r *Resolver) ResolveScoped(ctx context.Context, query string, sc Scope) ([]media.Descriptor, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, media.ErrUnknownTrack
	}

	out, err := r.resolve(ctx, query, sc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Debug("resolve failed", "query", query, "err", err)
		var me media.Error
		if errors.As(err, &me) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve %q: %w: %w", query, media.ErrUnknownTrack, err)
	}
	if len(out) == 0 {
		return nil, media.ErrUnknownTrack
	}
	return stamp(out, sc.RequestedBy), nil
}

func (r *Resolver) resolve(ctx context.Context, query string, sc Scope) ([]media.Descriptor, error) {
	switch {
	case isVideo(query):
		t, err := r.full(ctx, query)
		if err != nil {
			return nil, err
		}
		return []media.Descriptor{t}, nil

	case isPlaylist(query):
		info, err := r.extract(ctx, query, true)
		if err != nil {
			return nil, err
		}
		pl := info.playlist().Limit(sc.PlaylistLimit)
		if len(pl.Entries) == 0 {
			return nil, media.ErrUnknownTrack
		}
		return []media.Descriptor{pl}, nil

	case r.opts.Spotify != nil && r.opts.IsSpotify != nil && r.opts.IsSpotify(query):
		d, err := r.opts.Spotify.Resolve(ctx, query, sc.PlaylistLimit)
		if err != nil {
			return nil, err
		}
		if pl, ok := d.(media.Playlist); ok && len(pl.Entries) == 0 {
			return nil, media.ErrUnknownTrack
		}
		return []media.Descriptor{d}, nil

	case isURL(query):
		t, err := r.full(ctx, query)
		if err != nil {
			return nil, err
		}
		return []media.Descriptor{t}, nil
	}

	res, err := r.Search(ctx, query, r.opts.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]media.Descriptor, 0, len(res))
	for _, p := range res {
		out = append(out, p)
	}
	return out, nil
}

// Search is the free-text step of Resolve, shared with the search menu.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]media.PartialTrack, error) {
	if limit <= 0 {
		limit = r.opts.SearchLimit
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := r.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, media.ErrUnknownTrack
	}
	return res, nil
}

// Materialize fully resolves one queue entry right before it plays. A Track
// resolved within the URL TTL is returned unchanged; anything else is
// fetched again.
func (r *Resolver) Materialize(ctx context.Context, e media.Entry) (media.Track, error) {
	base := e.Base()
	prev, isTrack := e.(media.Track)
	if isTrack && prev.Fresh(r.opts.URLTTL, r.now()) {
		return r.adjust(ctx, prev), nil
	}

	t, ok := r.cached(base)
	if !ok {
		var err error
		t, err = r.full(ctx, base.Source())
		if err != nil {
			if ctx.Err() != nil {
				return media.Track{}, ctx.Err()
			}
			return media.Track{}, fmt.Errorf("materialize %q: %w: %w", base.Source(), media.ErrUnknownTrack, err)
		}
		if base.ID != "" && base.ID != t.ID {
			r.tracks.Set(base.ID, t)
		}
	}

	t.RequestedBy = base.RequestedBy
	if t.Title == "" {
		t.Title = base.Title
	}
	if isTrack {
		t.Offset, t.End = prev.Offset, prev.End
	}
	return r.adjust(ctx, t), nil
}

// adjust runs the Sponsor step on tracks that still play from end to end.
func (r *Resolver) adjust(ctx context.Context, t media.Track) media.Track {
	if r.opts.Sponsor == nil || t.Offset != 0 || t.End != 0 {
		return t
	}
	if adj, msg, changed := r.opts.Sponsor.Adjust(ctx, t); changed {
		r.log.Debug("sponsorblock adjusted track", "id", t.ID, "change", msg)
		return adj
	}
	return t
}

func (r *Resolver) cached(p media.PartialTrack) (media.Track, bool) {
	if p.ID == "" {
		return media.Track{}, false
	}
	t, ok := r.tracks.Get(p.ID)
	if !ok || !t.Fresh(r.opts.URLTTL, r.now()) {
		return media.Track{}, false
	}
	return t, true
}

func (r *Resolver) full(ctx context.Context, uri string) (media.Track, error) {
	if id := videoID(uri); id != "" {
		if t, ok := r.cached(media.PartialTrack{ID: id}); ok {
			return t, nil
		}
	}
	info, err := r.extract(ctx, uri, false)
	if err != nil {
		return media.Track{}, err
	}
	// searches come back as a one-entry container
	if len(info.Entries) > 0 && info.AudioURL() == "" {
		info = &info.Entries[0]
	}
	t := info.track(r.now())
	if t.StreamURL == "" {
		return media.Track{}, fmt.Errorf("no playable url for %q", uri)
	}
	if t.ID != "" {
		r.tracks.Set(t.ID, t)
	}
	return t, nil
}

// extract runs the extractor on the bounded worker pool.
func (r *Resolver) extract(ctx context.Context, uri string, flat bool) (*Info, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if flat {
		return r.extractor.ExtractFlat(ctx, uri)
	}
	return r.extractor.Extract(ctx, uri)
}

func stamp(ds []media.Descriptor, user string) []media.Descriptor {
	if user == "" {
		return ds
	}
	for i, d := range ds {
		switch v := d.(type) {
		case media.PartialTrack:
			v.RequestedBy = user
			ds[i] = v
		case media.Track:
			v.RequestedBy = user
			ds[i] = v
		case media.Playlist:
			entries := make([]media.PartialTrack, len(v.Entries))
			for j, e := range v.Entries {
				e.RequestedBy = user
				entries[j] = e
			}
			v.Entries = entries
			ds[i] = v
		}
	}
	return ds
}
