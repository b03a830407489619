package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Params describes the rendition requested from ffmpeg.
type Params struct {
	Width            int
	Height           int
	FPS              int
	BitrateKbps      int
	MaxBitrateKbps   int
	AudioBitrateKbps int
	VideoCodec       string
	HardwareDecoding bool

	StartSec    int
	DurationSec int
	IsLive      bool
	Headers     map[string]string

	// RelayURL, when set, receives a video rendition next to the PCM
	// output.
	RelayURL string
}

// FrameSink receives 20 ms Opus packets.
type FrameSink interface {
	WriteFrame(ctx context.Context, opus []byte) error
}

// Transcode is a running ffmpeg process whose stdout carries s16le PCM.
type Transcode struct {
	Output io.ReadCloser
	Args   []string
	Params Params

	cmd      *exec.Cmd
	stderr   *bytes.Buffer
	cancel   context.CancelFunc
	waitOnce sync.Once
	waitErr  error
}

func (t *Transcode) wait() error {
	if t == nil || t.cmd == nil {
		return nil
	}
	t.waitOnce.Do(func() {
		t.waitErr = t.cmd.Wait()
		if t.waitErr != nil && t.stderr != nil && t.stderr.Len() > 0 {
			t.waitErr = errors.Wrapf(t.waitErr, "ffmpeg: %s", strings.TrimSpace(t.stderr.String()))
		}
	})
	return t.waitErr
}

// Stop kills ffmpeg and reaps it. Safe to call more than once and on a nil
// Transcode.
func (t *Transcode) Stop() {
	if t == nil {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	_ = t.wait()
}

type Pipeline struct {
	bin string
	log *slog.Logger
}

func NewPipeline(log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{bin: "ffmpeg", log: log}
}

// CheckFFmpeg reports the installed ffmpeg version line.
func CheckFFmpeg(ctx context.Context) (string, error) {
	out, err := utils.CmdCombinedOutput(utils.ExecWith(ctx, "ffmpeg", "-hide_banner", "-version"))
	if err != nil {
		return "", errors.Wrap(err, "ffmpeg not available")
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

func videoEncoder(codec string) (name string, extra []string) {
	if strings.EqualFold(codec, "VP8") {
		return "libvpx", []string{"-deadline", "realtime", "-cpu-used", "8"}
	}
	return "libx264", []string{"-preset", "veryfast", "-tune", "zerolatency", "-pix_fmt", "yuv420p"}
}

func relayFormat(codec, url string) string {
	switch {
	case strings.EqualFold(codec, "VP8"):
		return "webm"
	case strings.HasPrefix(url, "rtmp://"), strings.HasPrefix(url, "rtmps://"):
		return "flv"
	default:
		return "mpegts"
	}
}

// BuildArgs returns the ffmpeg argument list for ref.
func BuildArgs(ref string, p Params) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if p.HardwareDecoding && p.RelayURL != "" {
		args = append(args, "-hwaccel", "auto")
	}
	if utils.IsHTTP(ref) {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
		if p.Headers != nil {
			args = append(args, "-headers", utils.BuildFFmpegHeaders(p.Headers))
		}
	}
	if !p.IsLive && p.StartSec > 0 {
		args = append(args, "-ss", strconv.Itoa(p.StartSec))
	}
	args = append(args, "-i", ref)
	if !p.IsLive && p.DurationSec > 0 {
		args = append(args, "-t", strconv.Itoa(p.DurationSec))
	}

	args = append(args,
		"-map", "0:a:0?",
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	)

	if p.RelayURL != "" {
		enc, extra := videoEncoder(p.VideoCodec)
		scale := fmt.Sprintf("scale=%[1]d:%[2]d:force_original_aspect_ratio=decrease,pad=%[1]d:%[2]d:(ow-iw)/2:(oh-ih)/2",
			p.Width, p.Height)
		args = append(args,
			"-map", "0:v:0?",
			"-map", "0:a:0?",
			"-vf", scale,
			"-r", strconv.Itoa(p.FPS),
			"-c:v", enc,
		)
		args = append(args, extra...)
		args = append(args,
			"-b:v", fmt.Sprintf("%dk", p.BitrateKbps),
			"-maxrate", fmt.Sprintf("%dk", p.MaxBitrateKbps),
			"-bufsize", fmt.Sprintf("%dk", p.MaxBitrateKbps*2),
			"-g", strconv.Itoa(p.FPS*2),
			"-c:a", "aac",
			"-b:a", fmt.Sprintf("%dk", max(p.AudioBitrateKbps, 64)),
			"-f", relayFormat(p.VideoCodec, p.RelayURL),
			p.RelayURL,
		)
	}
	return args
}

// Prepare starts ffmpeg for ref. Cancelling ctx kills the process.
func (pl *Pipeline) Prepare(ctx context.Context, ref string, p Params) (*Transcode, error) {
	ctx2, cancel := context.WithCancel(ctx)
	args := BuildArgs(ref, p)

	cmd := utils.ExecWith(ctx2, pl.bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "ffmpeg stdout")
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "ffmpeg start (stderr: %s)", stderr.String())
	}
	pl.log.Debug("ffmpeg started", "pid", cmd.Process.Pid, "input", ref,
		"start", p.StartSec, "duration", p.DurationSec, "relay", p.RelayURL != "")

	return &Transcode{
		Output: stdout,
		Args:   args,
		Params: p,
		cmd:    cmd,
		stderr: stderr,
		cancel: cancel,
	}, nil
}

const bufferedPackets = 50

// Run encodes t's PCM to Opus and feeds sink until ffmpeg reaches end of
// stream, either side fails, or ctx is cancelled.
func (pl *Pipeline) Run(ctx context.Context, t *Transcode, sink FrameSink) error {
	enc, err := NewEncoder(t.Params.AudioBitrateKbps)
	if err != nil {
		t.Stop()
		return err
	}
	defer enc.Close()

	buf := newOpusBuffer(bufferedPackets)
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, buf.Close)
	defer stop()

	g.Go(func() error {
		defer buf.MarkEOS()
		return pl.produce(t, enc, buf)
	})
	g.Go(func() error {
		return consume(gctx, buf, sink)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		t.Stop()
		return ctx.Err()
	}
	if err != nil {
		t.Stop()
		return err
	}
	if werr := t.wait(); werr != nil {
		return errors.Wrap(werr, "ffmpeg exited")
	}
	return nil
}

func (pl *Pipeline) produce(t *Transcode, enc *Encoder, buf *opusBuffer) error {
	r := bufio.NewReaderSize(t.Output, 64*1024)
	pcm := make([]byte, enc.FrameBytes())
	push := func(pkt []byte) error {
		if !buf.Push(pkt) {
			return errBufferClosed
		}
		return nil
	}
	frames := 0
	for {
		n, err := io.ReadFull(r, pcm)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			clear(pcm[n:])
			err = nil
		}
		if err != nil {
			return errors.Wrap(err, "read pcm")
		}
		if err := enc.EncodeFrame(pcm, push); err != nil {
			if errors.Is(err, errBufferClosed) {
				return nil
			}
			return err
		}
		frames++
		if n < len(pcm) {
			break
		}
	}
	pl.log.Debug("pcm drained", "frames", frames, "seconds", float64(frames)*0.02)
	if err := enc.Flush(push); err != nil && !errors.Is(err, errBufferClosed) {
		return err
	}
	return nil
}

var errBufferClosed = errors.New("opus buffer closed")

const prebuffer = 10

func consume(ctx context.Context, buf *opusBuffer, sink FrameSink) error {
	deadline := time.Now().Add(5 * time.Second)
	for buf.BufferedCount() < prebuffer && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
		if buf.eosReached() {
			break
		}
	}
	for {
		pkt, ok := buf.Pop()
		if !ok {
			return ctx.Err()
		}
		if err := sink.WriteFrame(ctx, pkt); err != nil {
			return errors.Wrap(err, "sink")
		}
	}
}
