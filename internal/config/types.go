package config

import (
	"path/filepath"
	"time"
)

type Config struct {
	DiscordToken     string `validate:"required"`
	GuildID          string
	VoiceChannelID   string
	CommandChannelID string

	DataDir   string `default:"./data"`
	VideosDir string `default:"./videos"`

	Stream StreamConfig

	PlatformVideoPolicy string        `default:"download" validate:"oneof=download stream"`
	DownloadFormat      string        // yt-dlp format selector; derived from Stream.Height when empty
	AdvanceDelay        time.Duration `default:"1s" validate:"gte=0"`
	ResolveCacheTTL     time.Duration `default:"5h" validate:"gte=0"`

	EnableSponsorBlock     bool
	SponsorBlockTimeoutMin int `default:"5" validate:"gte=0"`

	SpotifyClientID     string
	SpotifyClientSecret string `validate:"required_with=SpotifyClientID"`

	YouTubeCookiesPath string
	YouTubePOToken     string

	BotActivity           string `default:"videos"`
	RegisterCommandsOnBot bool
	LeaveIfNoListeners    bool `default:"true"`

	LogLevel  string `default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `default:"text" validate:"oneof=text json"`
}

type StreamConfig struct {
	Width               int    `default:"1280" validate:"gt=0"`
	Height              int    `default:"720" validate:"gt=0"`
	FPS                 int    `default:"30" validate:"gt=0,lte=120"`
	BitrateKbps         int    `default:"1000" validate:"gt=0"`
	MaxBitrateKbps      int    `default:"2500" validate:"gtefield=BitrateKbps"`
	AudioBitrateKbps    int    `default:"128" validate:"gte=6,lte=510"`
	VideoCodec          string `default:"H264" validate:"oneof=H264 VP8"`
	HardwareDecoding    bool
	RespectSourceParams bool
	RelayURL            string `validate:"omitempty,url"`
}

// TempDir holds per-play downloads.
func (c *Config) TempDir() string {
	return filepath.Join(c.DataDir, "tmp")
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
