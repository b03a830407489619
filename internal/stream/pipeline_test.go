package stream

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argValue(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func baseParams() Params {
	return Params{
		Width:            1280,
		Height:           720,
		FPS:              30,
		BitrateKbps:      1000,
		MaxBitrateKbps:   2500,
		AudioBitrateKbps: 128,
		VideoCodec:       "H264",
	}
}

func TestBuildArgs_LocalFile(t *testing.T) {
	args := BuildArgs("/videos/clip.mkv", baseParams())

	assert.NotContains(t, args, "-reconnect")
	assert.NotContains(t, args, "-headers")
	assert.NotContains(t, args, "-ss")
	in, ok := argValue(args, "-i")
	require.True(t, ok)
	assert.Equal(t, "/videos/clip.mkv", in)
	assert.Equal(t, "pipe:1", args[len(args)-1])
	f, _ := argValue(args, "-f")
	assert.Equal(t, "s16le", f)
	ar, _ := argValue(args, "-ar")
	assert.Equal(t, "48000", ar)
}

func TestBuildArgs_RemoteWithTrim(t *testing.T) {
	p := baseParams()
	p.StartSec = 12
	p.DurationSec = 80
	p.Headers = map[string]string{"Referer": "https://www.youtube.com/"}

	args := BuildArgs("https://cdn.example.com/v.mp4", p)
	assert.Contains(t, args, "-reconnect")
	h, ok := argValue(args, "-headers")
	require.True(t, ok)
	assert.Contains(t, h, "Referer: https://www.youtube.com/\r\n")

	ss := slices.Index(args, "-ss")
	in := slices.Index(args, "-i")
	to := slices.Index(args, "-t")
	require.True(t, ss >= 0 && in >= 0 && to >= 0)
	assert.Less(t, ss, in, "seek is an input option")
	assert.Greater(t, to, in)
	assert.Equal(t, "12", args[ss+1])
	assert.Equal(t, "80", args[to+1])
}

func TestBuildArgs_LiveIgnoresTrim(t *testing.T) {
	p := baseParams()
	p.IsLive = true
	p.StartSec = 5
	p.DurationSec = 10

	args := BuildArgs("https://live.example.com/index.m3u8", p)
	assert.NotContains(t, args, "-ss")
	assert.NotContains(t, args, "-t")
}

func TestBuildArgs_Relay(t *testing.T) {
	tests := []struct {
		name    string
		codec   string
		url     string
		encoder string
		format  string
	}{
		{"rtmp h264", "H264", "rtmp://relay.local/live/key", "libx264", "flv"},
		{"srt h264", "H264", "srt://relay.local:9000", "libx264", "mpegts"},
		{"vp8", "VP8", "srt://relay.local:9000", "libvpx", "webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			p.VideoCodec = tt.codec
			p.RelayURL = tt.url
			p.HardwareDecoding = true

			args := BuildArgs("/videos/clip.mkv", p)
			assert.Equal(t, tt.url, args[len(args)-1])
			assert.Contains(t, args, "pipe:1")
			assert.Contains(t, args, "-hwaccel")

			cv, _ := argValue(args, "-c:v")
			assert.Equal(t, tt.encoder, cv)
			bv, _ := argValue(args, "-b:v")
			assert.Equal(t, "1000k", bv)
			maxrate, _ := argValue(args, "-maxrate")
			assert.Equal(t, "2500k", maxrate)
			vf, _ := argValue(args, "-vf")
			assert.True(t, strings.HasPrefix(vf, "scale=1280:720"))
			assert.Equal(t, tt.format, args[len(args)-2])
		})
	}
}

func TestBuildArgs_NoHWAccelWithoutRelay(t *testing.T) {
	p := baseParams()
	p.HardwareDecoding = true
	assert.NotContains(t, BuildArgs("/videos/clip.mkv", p), "-hwaccel")
}

func TestSourceParamsApply(t *testing.T) {
	p := SourceParams{Width: 1920, Height: 1080, FPS: 59.94}.Apply(baseParams())
	assert.Equal(t, 1920, p.Width)
	assert.Equal(t, 1080, p.Height)
	assert.Equal(t, 60, p.FPS)

	p = SourceParams{AudioBitrateKbps: 160}.Apply(baseParams())
	assert.Equal(t, 1280, p.Width)
	assert.Equal(t, 30, p.FPS)
}

type countingSink struct{ n int }

func (c *countingSink) WriteFrame(context.Context, []byte) error {
	c.n++
	return nil
}

func TestConsume_DrainsAfterEOS(t *testing.T) {
	buf := newOpusBuffer(8)
	for range 3 {
		require.True(t, buf.Push([]byte{1}))
	}
	buf.MarkEOS()

	sink := &countingSink{}
	require.NoError(t, consume(context.Background(), buf, sink))
	assert.Equal(t, 3, sink.n)
}

func TestConsume_Cancelled(t *testing.T) {
	buf := newOpusBuffer(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, consume(ctx, buf, &countingSink{}), context.Canceled)
}
