package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/stream"
)

var (
	ErrAlreadyPlaying = errors.New("already playing")
	ErrClosed         = errors.New("voice session closed")
	ErrStalled        = errors.New("voice connection stalled")
)

const stopWait = 2 * time.Second

// Transport is the live voice connection of one guild.
type Transport interface {
	ChannelID() string
	SendOpus(ctx context.Context, pkt []byte) error
	Speaking(on bool) error
	Move(ctx context.Context, channelID string) error
	Disconnect(ctx context.Context) error
}

type Encoder interface {
	Encode(pcm []byte, emit func([]byte) error) error
	Flush(emit func([]byte) error) error
	Close() error
}

// Opener opens the PCM input for a track.
type Opener func(t media.Track) (stream.FrameReader, error)

type EncoderFactory func() (Encoder, error)

// OpenDecoder is the production Opener.
func OpenDecoder(t media.Track) (stream.FrameReader, error) {
	return stream.OpenDecoder(stream.InputFor(t))
}

// NewOpusEncoder is the production EncoderFactory.
func NewOpusEncoder() (Encoder, error) {
	return stream.NewEncoder(stream.DefaultBitrate)
}

type playback struct {
	track  media.Track
	src    *stream.Source
	cancel context.CancelFunc
	done   chan struct{}
}

// Session owns the single active audio source of a guild.
type Session struct {
	guildID string
	tr      Transport
	open    Opener
	newEnc  EncoderFactory
	log     *slog.Logger

	mu       sync.Mutex
	cur      *playback
	starting bool
	volume   float64
	closed   bool

	resumed *Gate
}

func NewSession(guildID string, tr Transport, open Opener, newEnc EncoderFactory, volume float64) *Session {
	if open == nil {
		open = OpenDecoder
	}
	if newEnc == nil {
		newEnc = NewOpusEncoder
	}
	return &Session{
		guildID: guildID,
		tr:      tr,
		open:    open,
		newEnc:  newEnc,
		log:     slog.With("guildID", guildID),
		volume:  volume,
		resumed: NewGate(true),
	}
}

// Play starts streaming t. after is called exactly once when the stream
// ends for any reason; it is never called if Play returns an error.
func (s *Session) Play(ctx context.Context, t media.Track, after func(error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cur != nil || s.starting {
		s.mu.Unlock()
		return ErrAlreadyPlaying
	}
	s.starting = true
	vol := s.volume
	s.mu.Unlock()

	r, enc, err := s.prepare(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return err
	}
	if s.closed {
		_ = r.Close()
		_ = enc.Close()
		return ErrClosed
	}

	playCtx, cancel := context.WithCancel(ctx)
	pb := &playback{
		track:  t,
		src:    stream.NewSource(r, vol, int64(t.Offset*1000)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cur = pb
	s.resumed.Set()

	var once sync.Once
	go s.run(playCtx, pb, enc, func(err error) { once.Do(func() { after(err) }) })
	return nil
}

func (s *Session) prepare(t media.Track) (stream.FrameReader, Encoder, error) {
	if t.StreamURL == "" {
		return nil, nil, errors.New("track has no stream url")
	}
	r, err := s.open(t)
	if err != nil {
		return nil, nil, fmt.Errorf("open stream: %w", err)
	}
	enc, err := s.newEnc()
	if err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("new encoder: %w", err)
	}
	return r, enc, nil
}

func (s *Session) run(ctx context.Context, pb *playback, enc Encoder, after func(error)) {
	err := s.stream(ctx, pb.src, enc)

	_ = pb.src.Close()
	_ = enc.Close()
	if serr := s.tr.Speaking(false); serr != nil {
		s.log.Debug("speaking off failed", "err", serr)
	}

	s.mu.Lock()
	if s.cur == pb {
		s.cur = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("stream ended with error", "track", pb.track.Title, "err", err)
	}
	after(err)
	close(pb.done)
	pb.cancel()
}

func (s *Session) stream(ctx context.Context, src *stream.Source, enc Encoder) error {
	if err := s.tr.Speaking(true); err != nil {
		s.log.Debug("speaking on failed", "err", err)
	}
	send := func(pkt []byte) error { return s.tr.SendOpus(ctx, pkt) }

	for {
		if err := s.resumed.Wait(ctx); err != nil {
			return nil
		}
		pcm, err := src.Read()
		if errors.Is(err, io.EOF) {
			if ferr := enc.Flush(send); ferr != nil && ctx.Err() == nil {
				return ferr
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}
		if err := enc.Encode(pcm, send); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Stop ends the current stream and waits briefly for it to wind down.
// It reports whether anything was playing.
func (s *Session) Stop() bool {
	s.mu.Lock()
	pb := s.cur
	s.mu.Unlock()
	if pb == nil {
		return false
	}
	pb.cancel()
	select {
	case <-pb.done:
	case <-time.After(stopWait):
		s.log.Warn("stream did not stop in time")
	}
	return true
}

func (s *Session) Pause() bool {
	s.mu.Lock()
	playing := s.cur != nil
	s.mu.Unlock()
	if !playing || !s.resumed.IsSet() {
		return false
	}
	s.resumed.Clear()
	_ = s.tr.Speaking(false)
	return true
}

func (s *Session) Resume() bool {
	s.mu.Lock()
	playing := s.cur != nil
	s.mu.Unlock()
	if !playing || s.resumed.IsSet() {
		return false
	}
	_ = s.tr.Speaking(true)
	s.resumed.Set()
	return true
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	playing := s.cur != nil
	s.mu.Unlock()
	return playing && !s.resumed.IsSet()
}

// WaitResumed blocks while playback is paused.
func (s *Session) WaitResumed(ctx context.Context) error {
	return s.resumed.Wait(ctx)
}

// Position is the playback position of the current track in seconds.
func (s *Session) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return s.cur.src.Seconds()
}

func (s *Session) Track() (media.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return media.Track{}, false
	}
	return s.cur.track, true
}

func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume applies immediately to the playing track and to later ones.
func (s *Session) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.cur != nil {
		s.cur.src.SetVolume(v)
	}
}

func (s *Session) ChannelID() string { return s.tr.ChannelID() }

func (s *Session) Move(ctx context.Context, channelID string) error {
	return s.tr.Move(ctx, channelID)
}

// Close stops playback and leaves the voice channel. Later Play calls fail.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	if err := s.tr.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}
