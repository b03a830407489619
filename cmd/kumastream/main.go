package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/handlers"
	"github.com/sonroyaalmerol/kumastream/internal/logger"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/sponsorblock"
	"github.com/sonroyaalmerol/kumastream/internal/spotify"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if v, err := stream.CheckFFmpeg(ctx); err != nil {
		log.Warn("ffmpeg check failed", "err", err)
	} else {
		log.Info("ffmpeg found", "version", v)
	}

	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	yt := stream.NewYTDLP(cfg, log.With("component", "ytdlp"))

	var lookup media.TrackLookup
	if cfg.SpotifyEnabled() {
		lookup = spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	}
	resolver := media.NewDefaultResolver(yt, yt, lookup, media.Options{
		Width:    cfg.Stream.Width,
		Height:   cfg.Stream.Height,
		Policy:   media.Policy(cfg.PlatformVideoPolicy),
		CacheTTL: cfg.ResolveCacheTTL,
		Logger:   log.With("component", "resolver"),
	})
	log.Debug("resolver ready", "strategies", resolver.Strategies())

	dg, err := handlers.NewSession(cfg)
	if err != nil {
		log.Error("discord", "err", err)
		os.Exit(1)
	}
	notifier := handlers.NewChannelNotifier(dg, cfg.CommandChannelID, cfg.BotActivity)
	voice := stream.NewVoiceSink(dg, log.With("component", "voice"))

	deps := player.Deps{
		Resolver:   resolver,
		Downloader: yt,
		Pipeline:   stream.NewPipeline(log.With("component", "pipeline")),
		Sink:       voice,
		Prober:     stream.NewProber(log.With("component", "probe")),
		Notifier:   notifier,
		History:    repo,
	}
	if cfg.EnableSponsorBlock {
		deps.Trimmer = sponsorblock.NewTrimmer(cfg.SponsorBlockTimeoutMin, log.With("component", "sponsorblock"))
	}

	guildID := cfg.GuildID
	p := player.New(deps, player.Options{
		Destination: stream.Destination{GuildID: guildID, ChannelID: cfg.VoiceChannelID},
		Params: stream.Params{
			Width:            cfg.Stream.Width,
			Height:           cfg.Stream.Height,
			FPS:              cfg.Stream.FPS,
			BitrateKbps:      cfg.Stream.BitrateKbps,
			MaxBitrateKbps:   cfg.Stream.MaxBitrateKbps,
			AudioBitrateKbps: cfg.Stream.AudioBitrateKbps,
			VideoCodec:       cfg.Stream.VideoCodec,
			HardwareDecoding: cfg.Stream.HardwareDecoding,
			RelayURL:         cfg.Stream.RelayURL,
		},
		AdvanceDelay:        cfg.AdvanceDelay,
		RespectSourceParams: cfg.Stream.RespectSourceParams,
	}, log.With("component", "player"))
	defer p.Close()

	bot := handlers.NewBot(cfg, dg, p, voice, notifier, repo, yt)
	if err := bot.Run(ctx); err != nil {
		log.Error("bot", "err", err)
		os.Exit(1)
	}
}
