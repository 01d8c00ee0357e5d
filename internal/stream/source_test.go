package stream

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

type fakeReader struct {
	frames int
	sample int16
	closed int
}

func (f *fakeReader) ReadFrame(buf []byte) error {
	if f.frames == 0 {
		return io.EOF
	}
	f.frames--
	for i := 0; i+1 < FrameBytes; i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(f.sample))
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed++
	return nil
}

func sampleAt(b []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(b[i*2:]))
}

func TestSource_CountsTwentyMillisPerRead(t *testing.T) {
	src := NewSource(&fakeReader{frames: 3, sample: 100}, 1, 0)

	for range 3 {
		_, err := src.Read()
		require.NoError(t, err)
	}
	_, err := src.Read()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0.06, src.Seconds())
}

func TestSource_StartOffset(t *testing.T) {
	src := NewSource(&fakeReader{frames: 1}, 1, 90_000)
	_, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 90.02, src.Seconds())
}

func TestSource_VolumeScalesAndClips(t *testing.T) {
	r := &fakeReader{frames: 3, sample: 20000}
	src := NewSource(r, DefaultVolume, 0)

	b, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, int16(10000), sampleAt(b, 0))

	src.SetVolume(2)
	b, err = src.Read()
	require.NoError(t, err)
	assert.Equal(t, int16(32767), sampleAt(b, 5))
	assert.Equal(t, 2.0, src.Volume())

	src.SetVolume(-1)
	b, err = src.Read()
	require.NoError(t, err)
	assert.Zero(t, sampleAt(b, 0))
}

func TestSource_CloseOnce(t *testing.T) {
	r := &fakeReader{}
	src := NewSource(r, 1, 0)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, r.closed)
}

func TestInputFor(t *testing.T) {
	tr := media.Track{StreamURL: "https://cdn/x", Offset: 12, End: 100, Duration: 120}
	in := InputFor(tr)
	assert.Equal(t, "https://cdn/x", in.URL)
	assert.Equal(t, 12.0, in.Start)
	assert.Equal(t, 100.0, in.End)

	tr.IsLive = true
	assert.Zero(t, InputFor(tr).End)
}
