package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

var (
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrQueueClosed    = errors.New("queue is closed")
	ErrNotConnected   = errors.New("not connected to voice")
	ErrQueueFull      = errors.New("queue is full")
	ErrIndex          = errors.New("position out of range")
	ErrCannotSeek     = errors.New("can't seek in a livestream")
	ErrSeekRange      = errors.New("seek past end")
)

const (
	DefaultCapacity         = 500
	DefaultProgressInterval = 10 * time.Second
	DefaultResolveTimeout   = 2 * time.Minute
)

// Voice is the guild's voice session as the queue drives it.
type Voice interface {
	Play(ctx context.Context, t media.Track, after func(error)) error
	Stop() bool
	Pause() bool
	Resume() bool
	Paused() bool
	Position() float64
	WaitResumed(ctx context.Context) error
	Volume() float64
	SetVolume(v float64)
	ChannelID() string
	Move(ctx context.Context, channelID string) error
	Close(ctx context.Context) error
}

type Materializer interface {
	Materialize(ctx context.Context, e media.Entry) (media.Track, error)
}

type Options struct {
	Capacity         int
	ProgressInterval time.Duration
	ResolveTimeout   time.Duration
	// IdleTimeout, when set, calls OnIdle once the queue has sat empty
	// and idle that long.
	IdleTimeout time.Duration
	OnIdle      func()
	Publisher   Publisher
	Logger      *slog.Logger
}

type PutResult struct {
	Added int
	// Started is set when this put woke an idle queue.
	Started bool
}

// Queue is the playback queue of one guild. At most one resolve+play cycle
// runs at a time; the only ways into a new cycle are the completion
// callback of the bound track and a put that wakes an idle queue.
type Queue struct {
	guildID string
	res     Materializer
	opts    Options
	log     *slog.Logger

	mu       sync.Mutex
	pending  Deque[media.Entry]
	get      func() (media.Entry, bool)
	looping  bool
	lock     playbackLock
	voice    Voice
	replay   *media.Track
	failures int
	stopRep  context.CancelFunc
	idle     *time.Timer
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(guildID string, res Materializer, opts Options) *Queue {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	q := &Queue{
		guildID: guildID,
		res:     res,
		opts:    opts,
		log:     opts.Logger.With("guildID", guildID),
	}
	q.get = looped(&q.pending, func() bool { return q.looping })
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

func (q *Queue) GuildID() string { return q.guildID }

// Attach sets the voice session when none is set yet.
func (q *Queue) Attach(v Voice) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.voice != nil {
		return false
	}
	q.voice = v
	return true
}

func (q *Queue) Voice() Voice {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.voice
}

// Put appends items; playlists expand in order.
func (q *Queue) Put(items ...media.Descriptor) (PutResult, error) {
	return q.put(false, items)
}

// PutNext inserts items at the head of the queue.
func (q *Queue) PutNext(items ...media.Descriptor) (PutResult, error) {
	return q.put(true, items)
}

func (q *Queue) put(front bool, items []media.Descriptor) (PutResult, error) {
	entries := media.Expand(items...)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return PutResult{}, ErrQueueClosed
	}
	if q.voice == nil {
		return PutResult{}, ErrNotConnected
	}
	if len(entries) == 0 {
		return PutResult{}, nil
	}
	room := q.opts.Capacity - q.pending.Len()
	if room <= 0 {
		return PutResult{}, ErrQueueFull
	}
	if len(entries) > room {
		q.log.Info("queue capacity reached, dropping entries", "dropped", len(entries)-room)
		entries = entries[:room]
	}

	wasEmpty := q.pending.Len() == 0
	if front {
		q.pending.PushFront(entries...)
	} else {
		q.pending.PushBack(entries...)
	}
	q.stopIdleLocked()

	res := PutResult{Added: len(entries)}
	if wasEmpty && q.lock.state == stateIdle {
		res.Started = q.kickLocked()
	}
	return res, nil
}

// kickLocked starts a cycle if the lock is idle.
func (q *Queue) kickLocked() bool {
	if q.closed || !q.lock.tryResolve() {
		return false
	}
	q.wg.Add(1)
	go q.cycle()
	return true
}

// next pops the entry to play. A pending seek replays the track it was made
// on and does not go through the loop decorator.
func (q *Queue) next() (media.Entry, bool) {
	if q.replay != nil {
		t := *q.replay
		q.replay = nil
		return t, true
	}
	return q.get()
}

// cycle materializes entries until one plays or the queue runs dry.
func (q *Queue) cycle() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if q.closed {
			q.lock.release()
			q.mu.Unlock()
			return
		}
		e, ok := q.next()
		if !ok {
			q.lock.release()
			q.failures = 0
			q.armIdleLocked()
			q.mu.Unlock()
			q.log.Debug("queue drained")
			return
		}
		q.mu.Unlock()

		t, err := q.materialize(e)
		if err != nil {
			if q.ctx.Err() != nil {
				q.mu.Lock()
				q.lock.release()
				q.mu.Unlock()
				return
			}
			q.log.Warn("skipping track", "track", e.Name(), "err", err)
			q.mu.Lock()
			q.failedLocked()
			q.mu.Unlock()
			continue
		}

		q.mu.Lock()
		if q.closed {
			q.lock.release()
			q.mu.Unlock()
			return
		}
		v := q.voice
		if v == nil {
			q.lock.release()
			q.mu.Unlock()
			return
		}
		b := q.lock.bind(t)
		q.mu.Unlock()

		if err := v.Play(q.ctx, t, func(err error) { q.finished(b, err) }); err != nil {
			q.log.Warn("play failed, skipping track", "track", t.Title, "err", err)
			q.mu.Lock()
			if q.lock.holds(b) {
				q.lock.unbind()
			}
			q.failedLocked()
			q.mu.Unlock()
			continue
		}

		q.mu.Lock()
		q.failures = 0
		if q.lock.holds(b) {
			q.announceLocked(b)
		}
		q.mu.Unlock()
		return
	}
}

// failedLocked counts a track that could not be started. A looping queue
// whose every entry failed in a row is cleared so it cannot spin forever.
func (q *Queue) failedLocked() {
	q.failures++
	if q.looping && q.failures >= q.pending.Len() {
		n := q.pending.Clear()
		q.log.Warn("every looped track failed, clearing queue", "cleared", n)
	}
}

func (q *Queue) materialize(e media.Entry) (t media.Track, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("materialize panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.ResolveTimeout)
	defer cancel()
	return q.res.Materialize(ctx, e)
}

// finished is the completion callback of binding b.
func (q *Queue) finished(b binding, err error) {
	if err != nil {
		q.log.Warn("playback ended with error", "track", b.track.Title, "err", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.lock.holds(b) {
		return
	}
	q.lock.release()
	q.stopReporterLocked()
	q.kickLocked()
}

// announceLocked publishes Now Playing for b and starts its reporter,
// stopping the previous one.
func (q *Queue) announceLocked(b binding) {
	q.stopReporterLocked()
	if q.opts.Publisher == nil || q.closed {
		return
	}
	ctx, cancel := context.WithCancel(q.ctx)
	q.stopRep = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		msg, err := q.opts.Publisher.Send(ctx, q.notice(b, NoticeNowPlaying))
		if err != nil {
			q.log.Warn("publish now playing failed", "err", err)
			return
		}
		if msg == nil {
			return
		}
		rep := &Reporter{
			Interval: q.opts.ProgressInterval,
			Message:  msg,
			Wait:     q.waitResumed,
			Render:   func() (Notice, bool) { return q.render(b) },
			Logger:   q.log,
		}
		rep.Run(ctx)
		if q.ctx.Err() != nil {
			// the queue shut down, the message would show a stale track
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			if err := msg.Delete(dctx); err != nil {
				q.log.Debug("delete now playing failed", "err", err)
			}
		}
	}()
}

func (q *Queue) stopReporterLocked() {
	if q.stopRep != nil {
		q.stopRep()
		q.stopRep = nil
	}
}

func (q *Queue) waitResumed(ctx context.Context) error {
	v := q.Voice()
	if v == nil {
		return ErrNotConnected
	}
	return v.WaitResumed(ctx)
}

// render builds a progress notice for b, or reports false once b is no
// longer bound.
func (q *Queue) render(b binding) (Notice, bool) {
	q.mu.Lock()
	bound := q.lock.holds(b)
	q.mu.Unlock()
	if !bound {
		return Notice{}, false
	}
	return q.notice(b, NoticeProgress), true
}

func (q *Queue) notice(b binding, kind NoticeKind) Notice {
	q.mu.Lock()
	v := q.voice
	n := Notice{
		Kind:    kind,
		Track:   b.track,
		Pending: q.pending.Len(),
		Looping: q.looping,
	}
	q.mu.Unlock()

	if v != nil {
		n.Position = v.Position()
		n.Paused = v.Paused()
	}
	if n.Position < b.track.Offset {
		n.Position = b.track.Offset
	}
	n.Progress = FormatProgress(n.Position, b.track)
	return n
}

// Skip drops n pending entries and stops the current track. Its completion
// callback then starts exactly one new cycle. With nothing playing, Skip only
// fails if there was nothing to drop either.
func (q *Queue) Skip(n int) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrQueueClosed
	}
	dropped := q.pending.Drop(n)
	q.replay = nil
	_, playing := q.lock.current()
	v := q.voice
	q.mu.Unlock()

	if !playing || v == nil || !v.Stop() {
		if dropped > 0 {
			return dropped, nil
		}
		return dropped, ErrNothingPlaying
	}
	return dropped, nil
}

// Seek restarts the current track at sec seconds.
func (q *Queue) Seek(sec float64) error {
	q.mu.Lock()
	t, playing := q.lock.current()
	v := q.voice
	switch {
	case !playing || v == nil:
		q.mu.Unlock()
		return ErrNothingPlaying
	case t.IsLive:
		q.mu.Unlock()
		return ErrCannotSeek
	case sec < 0 || (t.Duration > 0 && sec >= t.Stop()):
		q.mu.Unlock()
		return ErrSeekRange
	}
	t.Offset = sec
	q.replay = &t
	q.mu.Unlock()

	if !v.Stop() {
		q.mu.Lock()
		q.replay = nil
		q.mu.Unlock()
		return ErrNothingPlaying
	}
	return nil
}

// Repeat toggles looping and returns the new state.
func (q *Queue) Repeat() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.looping = !q.looping
	return q.looping
}

func (q *Queue) Looping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.looping
}

// Deque returns a snapshot of the pending entries.
func (q *Queue) Deque() []media.Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Snapshot()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Remove deletes the pending entry at 1-based position pos.
func (q *Queue) Remove(pos int) (media.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.pending.Remove(pos - 1)
	if !ok {
		return nil, ErrIndex
	}
	return e, nil
}

func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Clear()
}

func (q *Queue) Shuffle() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Shuffle()
	return q.pending.Len()
}

// NowPlaying returns the bound track and its position.
func (q *Queue) NowPlaying() (media.Track, float64, bool) {
	q.mu.Lock()
	t, ok := q.lock.current()
	v := q.voice
	q.mu.Unlock()
	if !ok {
		return media.Track{}, 0, false
	}
	var pos float64
	if v != nil {
		pos = v.Position()
	}
	return t, max(pos, t.Offset), true
}

// Progress renders the position of the current track.
func (q *Queue) Progress() (string, error) {
	t, pos, ok := q.NowPlaying()
	if !ok {
		return "", ErrNothingPlaying
	}
	return FormatProgress(pos, t), nil
}

func (q *Queue) Pause() error {
	v, err := q.playingVoice()
	if err != nil {
		return err
	}
	v.Pause()
	return nil
}

func (q *Queue) Resume() error {
	v, err := q.playingVoice()
	if err != nil {
		return err
	}
	v.Resume()
	return nil
}

func (q *Queue) Paused() bool {
	v := q.Voice()
	return v != nil && v.Paused()
}

func (q *Queue) playingVoice() (Voice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.lock.current(); !ok || q.voice == nil {
		return nil, ErrNothingPlaying
	}
	return q.voice, nil
}

func (q *Queue) SetVolume(v float64) error {
	vc := q.Voice()
	if vc == nil {
		return ErrNotConnected
	}
	vc.SetVolume(v)
	return nil
}

func (q *Queue) Volume() float64 {
	if v := q.Voice(); v != nil {
		return v.Volume()
	}
	return 0
}

func (q *Queue) armIdleLocked() {
	if q.opts.IdleTimeout <= 0 || q.opts.OnIdle == nil || q.closed {
		return
	}
	q.stopIdleLocked()
	q.idle = time.AfterFunc(q.opts.IdleTimeout, func() {
		q.mu.Lock()
		fire := !q.closed && q.lock.state == stateIdle && q.pending.Len() == 0
		q.mu.Unlock()
		if fire {
			q.log.Info("idle timeout reached, leaving voice")
			q.opts.OnIdle()
		}
	})
}

func (q *Queue) stopIdleLocked() {
	if q.idle != nil {
		q.idle.Stop()
		q.idle = nil
	}
}

// Close stops playback, ends the reporter, waits for background work and
// disconnects voice. Later calls return nil.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.stopIdleLocked()
	q.stopReporterLocked()
	q.pending.Clear()
	q.replay = nil
	v := q.voice
	q.mu.Unlock()

	q.cancel()
	var err error
	if v != nil {
		err = v.Close(ctx)
	}
	q.wg.Wait()
	return err
}
