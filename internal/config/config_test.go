package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Stream.Width)
	assert.Equal(t, 720, cfg.Stream.Height)
	assert.Equal(t, 30, cfg.Stream.FPS)
	assert.Equal(t, 1000, cfg.Stream.BitrateKbps)
	assert.Equal(t, 2500, cfg.Stream.MaxBitrateKbps)
	assert.Equal(t, 128, cfg.Stream.AudioBitrateKbps)
	assert.Equal(t, "H264", cfg.Stream.VideoCodec)
	assert.Equal(t, "download", cfg.PlatformVideoPolicy)
	assert.Equal(t, time.Second, cfg.AdvanceDelay)
	assert.Equal(t, 5*time.Hour, cfg.ResolveCacheTTL)
	assert.Equal(t, 5, cfg.SponsorBlockTimeoutMin)
	assert.Equal(t, "./videos", cfg.VideosDir)
	assert.Equal(t, filepath.Join(dir, "data", "tmp"), cfg.TempDir())
	assert.DirExists(t, cfg.TempDir())
	assert.False(t, cfg.SpotifyEnabled())
	assert.True(t, cfg.LeaveIfNoListeners)
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STREAM_WIDTH", "1920")
	t.Setenv("STREAM_HEIGHT", "1080")
	t.Setenv("STREAM_VIDEO_CODEC", "vp8")
	t.Setenv("STREAM_RESPECT_SOURCE_PARAMS", "true")
	t.Setenv("PLATFORM_VIDEO_POLICY", "Stream")
	t.Setenv("ADVANCE_DELAY", "250ms")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Stream.Width)
	assert.Equal(t, 1080, cfg.Stream.Height)
	assert.Equal(t, "VP8", cfg.Stream.VideoCodec)
	assert.True(t, cfg.Stream.RespectSourceParams)
	assert.Equal(t, "stream", cfg.PlatformVideoPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.AdvanceDelay)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATA_DIR", t.TempDir())

	_, err := Load()
	var cerr ErrConfig
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "DISCORD_TOKEN required", cerr.Error())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown codec", "STREAM_VIDEO_CODEC", "AV1"},
		{"unknown policy", "PLATFORM_VIDEO_POLICY", "mirror"},
		{"maxrate below bitrate", "STREAM_MAX_BITRATE_KBPS", "500"},
		{"bad relay url", "STREAM_RELAY_URL", "not a url"},
		{"bad log format", "LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ADVANCE_DELAY", "0s")
	t.Setenv("SPONSORBLOCK_TIMEOUT", "0")
	t.Setenv("LEAVE_IF_NO_LISTENERS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.AdvanceDelay)
	assert.Zero(t, cfg.SponsorBlockTimeoutMin)
	assert.False(t, cfg.LeaveIfNoListeners)
}

func TestLoad_UnparsableValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ADVANCE_DELAY", "soon")
	t.Setenv("STREAM_FPS", "thirty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADVANCE_DELAY")
	assert.Contains(t, err.Error(), "STREAM_FPS")
}
