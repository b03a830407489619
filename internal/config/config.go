package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// envReader copies set environment variables over the defaults and
// collects values that fail to parse.
type envReader struct {
	errs []error
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) str(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) int(dst *int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, errors.Wrapf(err, "%s", key))
		return
	}
	*dst = n
}

func (r *envReader) bool(dst *bool, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, errors.Wrapf(err, "%s", key))
		return
	}
	*dst = b
}

func (r *envReader) duration(dst *time.Duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, errors.Wrapf(err, "%s", key))
		return
	}
	*dst = d
}

// LoadConfig reads the process environment, after loading a .env file from
// the working directory when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	return Load()
}

// Load builds the configuration from the environment only. Defaults are
// applied first so an explicit zero in the environment is kept.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, errors.Wrap(err, "invalid environment")
	}
	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.TempDir(), 0o755)
	return cfg, nil
}

func (c *Config) overrideFromEnv() error {
	var r envReader
	r.str(&c.DiscordToken, "DISCORD_TOKEN")
	r.str(&c.GuildID, "GUILD_ID")
	r.str(&c.VoiceChannelID, "VIDEO_CHANNEL_ID")
	r.str(&c.CommandChannelID, "COMMAND_CHANNEL_ID")
	r.str(&c.DataDir, "DATA_DIR")
	r.str(&c.VideosDir, "VIDEOS_DIR")

	r.int(&c.Stream.Width, "STREAM_WIDTH")
	r.int(&c.Stream.Height, "STREAM_HEIGHT")
	r.int(&c.Stream.FPS, "STREAM_FPS")
	r.int(&c.Stream.BitrateKbps, "STREAM_BITRATE_KBPS")
	r.int(&c.Stream.MaxBitrateKbps, "STREAM_MAX_BITRATE_KBPS")
	r.int(&c.Stream.AudioBitrateKbps, "STREAM_AUDIO_BITRATE_KBPS")
	r.str(&c.Stream.VideoCodec, "STREAM_VIDEO_CODEC")
	c.Stream.VideoCodec = strings.ToUpper(c.Stream.VideoCodec)
	r.bool(&c.Stream.HardwareDecoding, "STREAM_HARDWARE_DECODING")
	r.bool(&c.Stream.RespectSourceParams, "STREAM_RESPECT_SOURCE_PARAMS")
	r.str(&c.Stream.RelayURL, "STREAM_RELAY_URL")

	r.str(&c.PlatformVideoPolicy, "PLATFORM_VIDEO_POLICY")
	c.PlatformVideoPolicy = strings.ToLower(c.PlatformVideoPolicy)
	r.str(&c.DownloadFormat, "DOWNLOAD_FORMAT")
	r.duration(&c.AdvanceDelay, "ADVANCE_DELAY")
	r.duration(&c.ResolveCacheTTL, "RESOLVE_CACHE_TTL")

	r.bool(&c.EnableSponsorBlock, "ENABLE_SPONSORBLOCK")
	r.int(&c.SponsorBlockTimeoutMin, "SPONSORBLOCK_TIMEOUT")

	r.str(&c.SpotifyClientID, "SPOTIFY_CLIENT_ID")
	r.str(&c.SpotifyClientSecret, "SPOTIFY_CLIENT_SECRET")
	r.str(&c.YouTubeCookiesPath, "YOUTUBE_COOKIES_PATH")
	r.str(&c.YouTubePOToken, "YOUTUBE_PO_TOKEN")

	r.str(&c.BotActivity, "BOT_ACTIVITY")
	r.bool(&c.RegisterCommandsOnBot, "REGISTER_COMMANDS_ON_BOT")
	r.bool(&c.LeaveIfNoListeners, "LEAVE_IF_NO_LISTENERS")

	r.str(&c.LogLevel, "LOG_LEVEL")
	c.LogLevel = strings.ToLower(c.LogLevel)
	r.str(&c.LogFormat, "LOG_FORMAT")
	c.LogFormat = strings.ToLower(c.LogFormat)

	return errors.Join(r.errs...)
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
