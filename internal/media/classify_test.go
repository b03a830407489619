package media

import (
	"testing"

	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want queue.Kind
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", queue.KindPlatformVideo},
		{"https://youtu.be/dQw4w9WgXcQ", queue.KindPlatformVideo},
		{"youtube.com/shorts/abc", queue.KindPlatformVideo},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", queue.KindPlatformVideo},
		{"https://www.twitch.tv/somebody", queue.KindLiveChannel},
		{"https://example.com/video.mp4", queue.KindGenericURL},
		{"/srv/videos/clip.mkv", queue.KindLocal},
		{"./videos/clip.mkv", queue.KindLocal},
		{"clip.mp4", queue.KindLocal},
		{"never gonna give you up", queue.KindPlatformVideo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/a/b/Some%20Show.S01E01.mkv", "Some Show.S01E01"},
		{"https://cdn.example.com/stream/", "stream"},
		{"https://cdn.example.com", "Direct URL"},
		{"https://cdn.example.com/.mp4", "Direct URL"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromURL(tt.in))
		})
	}
}

func TestPickLive(t *testing.T) {
	f, ok := PickLive([]Format{
		{URL: "https://a/low.m3u8", Protocol: "m3u8_native", TBR: 800},
		{URL: "https://a/dash", Protocol: "https", TBR: 9000},
		{URL: "https://a/high.m3u8", Protocol: "m3u8", TBR: 4000},
	})
	assert.True(t, ok)
	assert.Equal(t, "https://a/high.m3u8", f.URL)

	_, ok = PickLive(nil)
	assert.False(t, ok)
}

func TestBestFormat_NoCandidates(t *testing.T) {
	_, ok := BestFormat([]Format{{URL: ""}, {URL: "https://x/p.m3u8", Ext: "m3u8"}})
	assert.False(t, ok)
}

func TestBestFormat_UnknownCodecCountsAsAbsent(t *testing.T) {
	f, ok := BestFormat([]Format{
		{URL: "https://x/unknown", Height: 1080},
		{URL: "https://x/av", VCodec: "avc1", ACodec: "mp4a", Height: 480},
	})
	require.True(t, ok)
	assert.Equal(t, "https://x/av", f.URL)

	assert.Equal(t, 0.0, score(Format{VCodec: "", ACodec: "none"}))
	assert.InDelta(t, 2.72, score(Format{VCodec: "vp9", ACodec: "opus", Height: 720}), 0.001)
}
