package stream

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

const DefaultBitrate = 128_000

// Encoder turns 20 ms PCM frames into Opus packets with libopus.
type Encoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
	pts    int64
}

func NewEncoder(bitrate int) (*Encoder, error) {
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder not found (check ffmpeg installation)")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc codec context for libopus")
	}
	cc.SetSampleRate(SampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetTimeBase(astiav.NewRational(1, SampleRate))
	cc.SetBitRate(int64(bitrate))

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)
	_ = opts.Set("vbr", "on", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open opus encoder: %w", err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, errors.New("alloc encoder frame")
	}
	frame.SetSampleRate(SampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(FrameSamples)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("alloc encoder frame buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, errors.New("alloc encoder packet")
	}
	return &Encoder{cc: cc, frame: frame, packet: pkt}, nil
}

// Encode takes exactly FrameBytes of PCM and hands every packet the codec
// produces to emit. Packets are copied, so emit may keep them.
func (e *Encoder) Encode(pcm []byte, emit func([]byte) error) error {
	if len(pcm) != FrameBytes {
		return fmt.Errorf("invalid PCM frame size: expected %d bytes, got %d", FrameBytes, len(pcm))
	}
	if err := e.frame.MakeWritable(); err != nil {
		return fmt.Errorf("make frame writable: %w", err)
	}
	if err := e.frame.Data().SetBytes(pcm, 1); err != nil {
		return fmt.Errorf("set frame bytes: %w", err)
	}
	e.frame.SetPts(e.pts)
	e.pts += FrameSamples
	if err := e.cc.SendFrame(e.frame); err != nil {
		return fmt.Errorf("send frame to encoder: %w", err)
	}
	return e.drain(emit)
}

func (e *Encoder) Flush(emit func([]byte) error) error {
	if err := e.cc.SendFrame(nil); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil
		}
		return fmt.Errorf("send flush frame: %w", err)
	}
	return e.drain(emit)
}

func (e *Encoder) drain(emit func([]byte) error) error {
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive opus packet: %w", err)
		}
		if err := emit(append([]byte(nil), e.packet.Data()...)); err != nil {
			return err
		}
	}
}

func (e *Encoder) Close() error {
	if e.packet != nil {
		e.packet.Free()
		e.packet = nil
	}
	if e.frame != nil {
		e.frame.Free()
		e.frame = nil
	}
	if e.cc != nil {
		e.cc.Free()
		e.cc = nil
	}
	return nil
}
