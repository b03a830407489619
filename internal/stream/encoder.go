package stream

import (

	"github.com/asticode/go-astiav"
	"github.com/cockroachdb/errors"
)

const (
	sampleRate     = 48000
	channels       = 2
	frameSamples   = 960 // 20 ms at 48 kHz
	pcmFrameBytes  = frameSamples * channels * 2
	defaultOpusBps = 128_000
)

type OpusPacketHandler func(pkt []byte) error

// Encoder turns interleaved s16le stereo PCM into 20 ms Opus packets.
type Encoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
	pts    int64
}

// NewEncoder opens libopus at 48k stereo. A non-positive bitrate selects
// 128 kbps.
func NewEncoder(bitrateKbps int) (*Encoder, error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder not found (check ffmpeg installation)")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("failed to allocate codec context for libopus")
	}
	bps := int64(defaultOpusBps)
	if bitrateKbps > 0 {
		bps = int64(bitrateKbps) * 1000
	}
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetBitRate(bps)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, errors.Wrapf(err, "failed to open opus encoder (sr=%d ch=%d)", sampleRate, channels)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, errors.New("failed to allocate audio frame for encoder")
	}
	frame.SetSampleRate(sampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(frameSamples)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, errors.Wrap(err, "failed to allocate frame buffer")
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, errors.New("failed to allocate packet for encoder")
	}

	return &Encoder{cc: cc, frame: frame, packet: pkt}, nil
}

func (e *Encoder) Close() {
	if e.packet != nil {
		e.packet.Free()
	}
	if e.frame != nil {
		e.frame.Free()
	}
	if e.cc != nil {
		e.cc.Free()
	}
}

// EncodeFrame expects exactly FrameBytes of PCM.
func (e *Encoder) EncodeFrame(pcm []byte, onPacket OpusPacketHandler) error {
	if len(pcm) != pcmFrameBytes {
		return errors.Newf("invalid PCM frame size: expected %d bytes, got %d", pcmFrameBytes, len(pcm))
	}
	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return errors.Wrap(err, "failed to set frame data bytes")
	}
	e.frame.SetPts(e.pts)
	e.pts += frameSamples
	if err := e.cc.SendFrame(e.frame); err != nil {
		return errors.Wrap(err, "failed to send frame to encoder")
	}
	return e.drain(onPacket)
}

func (e *Encoder) Flush(onPacket OpusPacketHandler) error {
	if err := e.cc.SendFrame(nil); err != nil {
		if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrEof) {
			return nil
		}
		return errors.Wrap(err, "failed to send flush frame")
	}
	return e.drain(onPacket)
}

func (e *Encoder) drain(onPacket OpusPacketHandler) error {
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrEagain) || astErr.Is(astiav.ErrEof)) {
				return nil
			}
			return errors.Wrap(err, "failed to receive opus packet")
		}
		// Data aliases the packet buffer; copy before handing it off.
		if err := onPacket(append([]byte(nil), e.packet.Data()...)); err != nil {
			return errors.Wrap(err, "packet handler error")
		}
	}
}

func (e *Encoder) FrameBytes() int { return pcmFrameBytes }
