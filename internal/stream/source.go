package stream

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	SampleRate    = 48000
	Channels      = 2
	FrameSamples  = 960 // per channel, 20 ms at 48 kHz
	FrameBytes    = FrameSamples * Channels * 2
	FrameDuration = 20 * time.Millisecond

	DefaultVolume = 0.5
)

// FrameReader yields interleaved s16le stereo PCM, FrameBytes at a time.
// It returns io.EOF when the input is exhausted.
type FrameReader interface {
	ReadFrame(buf []byte) error
	Close() error
}

// Source is the playing audio of one track. Each Read advances the
// position by one frame.
type Source struct {
	r   FrameReader
	buf []byte

	ms  atomic.Int64
	vol atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewSource starts counting at startMs so a seek reports the right position.
func NewSource(r FrameReader, volume float64, startMs int64) *Source {
	s := &Source{r: r, buf: make([]byte, FrameBytes)}
	s.ms.Store(startMs)
	s.SetVolume(volume)
	return s
}

// Read returns the next frame with volume applied. The slice is reused by
// the following call.
func (s *Source) Read() ([]byte, error) {
	if err := s.r.ReadFrame(s.buf); err != nil {
		return nil, err
	}
	s.ms.Add(int64(FrameDuration / time.Millisecond))
	applyVolume(s.buf, s.Volume())
	return s.buf, nil
}

// Seconds is the playback position rounded to two decimals.
func (s *Source) Seconds() float64 {
	return math.Round(float64(s.ms.Load())/10) / 100
}

func (s *Source) Volume() float64 {
	return math.Float64frombits(s.vol.Load())
}

func (s *Source) SetVolume(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	s.vol.Store(math.Float64bits(v))
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.r.Close() })
	return s.closeErr
}

func applyVolume(pcm []byte, vol float64) {
	if vol == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * vol
		v = max(math.MinInt16, min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}

var _ io.Closer = (*Source)(nil)
