package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

// Input describes what a Decoder opens.
type Input struct {
	URL     string
	Headers map[string]string
	// Start and End are in seconds; End 0 plays to the end.
	Start float64
	End   float64
}

func InputFor(t media.Track) Input {
	in := Input{URL: t.StreamURL, Headers: t.Headers, Start: t.Offset}
	if !t.IsLive && t.End > 0 {
		in.End = t.End
	}
	return in
}

// Decoder pulls packets from the input on demand and resamples them to
// 48 kHz stereo s16 through a FIFO, so ReadFrame always yields whole frames.
type Decoder struct {
	fc     *astiav.FormatContext
	stream *astiav.Stream
	dec    *astiav.CodecContext
	swr    *astiav.SoftwareResampleContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	res    *astiav.Frame
	out    *astiav.Frame
	fifo   *astiav.AudioFifo

	drained   bool
	skipUntil float64
	limit     int64 // samples, -1 for none
	emitted   int64
}

func OpenDecoder(in Input) (_ *Decoder, err error) {
	d := &Decoder{limit: -1}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return nil, errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	if strings.HasPrefix(in.URL, "http") {
		_ = dict.Set("reconnect", "1", 0)
		_ = dict.Set("reconnect_streamed", "1", 0)
		_ = dict.Set("reconnect_delay_max", "5", 0)
		_ = dict.Set("timeout", "30000000", 0)
		_ = dict.Set("headers", utils.BuildFFmpegHeaders(in.Headers), 0)
	}

	if err := d.fc.OpenInput(in.URL, nil, dict); err != nil {
		d.fc.Free()
		d.fc = nil
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := d.fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	for _, s := range d.fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			d.stream = s
			break
		}
	}
	if d.stream == nil {
		return nil, errors.New("no audio stream found")
	}

	params := d.stream.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("no decoder for %s", params.CodecID())
	}
	d.dec = astiav.AllocCodecContext(codec)
	if d.dec == nil {
		return nil, errors.New("alloc codec context")
	}
	if err := params.ToCodecContext(d.dec); err != nil {
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	d.dec.SetTimeBase(d.stream.TimeBase())
	if err := d.dec.Open(codec, nil); err != nil {
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	d.swr = astiav.AllocSoftwareResampleContext()
	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	d.res = astiav.AllocFrame()
	d.out = astiav.AllocFrame()
	d.fifo = astiav.AllocAudioFifo(astiav.SampleFormatS16, Channels, FrameSamples*2)
	if d.swr == nil || d.pkt == nil || d.frame == nil || d.res == nil || d.out == nil || d.fifo == nil {
		return nil, errors.New("alloc decoder buffers")
	}

	if in.Start > 0 {
		ts := int64(in.Start * 1_000_000) // AV_TIME_BASE
		if err := d.fc.SeekFrame(-1, ts, astiav.SeekFlags(astiav.SeekFlagBackward)); err != nil {
			return nil, fmt.Errorf("seek to %.2fs: %w", in.Start, err)
		}
		d.skipUntil = in.Start
	}
	if in.End > in.Start {
		d.limit = int64((in.End - in.Start) * SampleRate)
	}
	return d, nil
}

// ReadFrame fills buf with one frame. A short final frame is padded with
// silence.
func (d *Decoder) ReadFrame(buf []byte) error {
	if len(buf) < FrameBytes {
		return fmt.Errorf("frame buffer too small: %d < %d", len(buf), FrameBytes)
	}
	if d.limit >= 0 && d.emitted >= d.limit {
		return io.EOF
	}
	for d.fifo.Size() < FrameSamples && !d.drained {
		if err := d.fill(); err != nil {
			return err
		}
	}
	n := min(d.fifo.Size(), FrameSamples)
	if n == 0 {
		return io.EOF
	}

	d.out.Unref()
	d.out.SetNbSamples(FrameSamples)
	d.out.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.out.SetSampleFormat(astiav.SampleFormatS16)
	d.out.SetSampleRate(SampleRate)
	if err := d.out.AllocBuffer(0); err != nil {
		return fmt.Errorf("alloc frame buffer: %w", err)
	}
	if _, err := d.fifo.Read(d.out); err != nil {
		return fmt.Errorf("fifo read: %w", err)
	}
	data, err := d.out.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("frame bytes: %w", err)
	}
	copied := copy(buf[:FrameBytes], data[:min(len(data), n*Channels*2)])
	clear(buf[copied:FrameBytes])
	d.emitted += int64(n)
	return nil
}

// fill reads one packet and pushes whatever it decodes into the FIFO.
func (d *Decoder) fill() error {
	d.pkt.Unref()
	if err := d.fc.ReadFrame(d.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			d.drained = true
			_ = d.dec.SendPacket(nil)
			return d.receive()
		}
		if errors.Is(err, astiav.ErrEagain) {
			return nil
		}
		return fmt.Errorf("read frame: %w", err)
	}
	if d.pkt.StreamIndex() != d.stream.Index() {
		return nil
	}
	if err := d.dec.SendPacket(d.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("send packet: %w", err)
	}
	return d.receive()
}

func (d *Decoder) receive() error {
	for {
		d.frame.Unref()
		if err := d.dec.ReceiveFrame(d.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if d.skip(d.frame) {
			continue
		}
		if err := d.push(d.frame); err != nil {
			return err
		}
	}
}

// skip drops frames that a backward seek decoded ahead of the start point.
func (d *Decoder) skip(f *astiav.Frame) bool {
	if d.skipUntil <= 0 || f.Pts() < 0 || f.SampleRate() <= 0 {
		return false
	}
	at := float64(f.Pts()) * d.stream.TimeBase().Float64()
	end := at + float64(f.NbSamples())/float64(f.SampleRate())
	if end <= d.skipUntil {
		return true
	}
	d.skipUntil = 0
	return false
}

func (d *Decoder) push(f *astiav.Frame) error {
	nb := int(astiav.RescaleQ(int64(f.NbSamples()), astiav.NewRational(1, f.SampleRate()), astiav.NewRational(1, SampleRate)))
	if nb <= 0 {
		return nil
	}
	d.res.Unref()
	d.res.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.res.SetSampleFormat(astiav.SampleFormatS16)
	d.res.SetSampleRate(SampleRate)
	d.res.SetNbSamples(nb)
	if err := d.res.AllocBuffer(0); err != nil {
		return fmt.Errorf("alloc resample buffer: %w", err)
	}
	if err := d.swr.ConvertFrame(f, d.res); err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	if _, err := d.fifo.Write(d.res); err != nil {
		return fmt.Errorf("fifo write: %w", err)
	}
	return nil
}

func (d *Decoder) Close() error {
	if d.fifo != nil {
		d.fifo.Free()
		d.fifo = nil
	}
	for _, f := range []**astiav.Frame{&d.out, &d.res, &d.frame} {
		if *f != nil {
			(*f).Free()
			*f = nil
		}
	}
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.swr != nil {
		d.swr.Free()
		d.swr = nil
	}
	if d.dec != nil {
		d.dec.Free()
		d.dec = nil
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
		d.fc = nil
	}
	return nil
}
