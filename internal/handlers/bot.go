package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	plib "github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
)

// VoiceLink is the part of the voice sink the bot watches.
type VoiceLink interface {
	Current() (stream.Destination, bool)
	Forget(guildID string) bool
}

// playback is what the bot needs from the player outside of commands.
type playback interface {
	SinkLost(ctx context.Context)
	StopAndClearQueue(ctx context.Context)
}

// Bot owns the Discord session and routes interactions to the command
// handler.
type Bot struct {
	cfg      *config.Config
	session  *discordgo.Session
	player   playback
	voice    VoiceLink
	notifier *ChannelNotifier
	cmd      *CommandHandler
}

// NewSession creates the Discord session the sink and bot share. It is not
// opened yet.
func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, errors.Wrap(err, "discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	return dg, nil
}

func NewBot(cfg *config.Config, dg *discordgo.Session, p *plib.Player, voice VoiceLink, notifier *ChannelNotifier, repo *repository.Repo, search media.Searcher) *Bot {
	cmd := NewCommandHandler(cfg, CommandDeps{
		Player:   p,
		Repo:     repo,
		Library:  media.NewLibrary(cfg.VideosDir),
		Searcher: search,
		Notifier: notifier,
	})
	return &Bot{cfg: cfg, session: dg, player: p, voice: voice, notifier: notifier, cmd: cmd}
}

func (b *Bot) Run(ctx context.Context) error {
	dg := b.session

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		appID := s.State.User.ID
		if err := s.UpdateWatchStatus(0, b.cfg.BotActivity); err != nil {
			slog.Debug("presence update failed", "err", err)
		}

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
			return
		}

		guilds := make([]string, 0, len(s.State.Guilds))
		for _, g := range s.State.Guilds {
			if b.cfg.GuildID == "" || g.ID == b.cfg.GuildID {
				guilds = append(guilds, g.ID)
			}
		}
		var wg sync.WaitGroup
		for _, id := range guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guild", guildID, "err", err)
				}
			}(id)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		} else {
			slog.Info("cleared global application commands")
		}
		slog.Info("registered commands on guilds", "count", len(guilds))
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot || (b.cfg.GuildID != "" && g.ID != b.cfg.GuildID) {
			return
		}
		if err := b.cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	})

	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return errors.Wrap(err, "open discord session")
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down")
	b.player.StopAndClearQueue(context.Background())
	return nil
}

// onVoiceStateUpdate notices the bot being disconnected from outside and,
// when configured, leaves a channel nobody is listening in.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || s.State == nil || s.State.User == nil {
		return
	}
	dest, joined := b.voice.Current()
	if !joined || vs.GuildID != dest.GuildID {
		return
	}

	if vs.UserID == s.State.User.ID {
		// the state cache is updated before handlers run, so a rejoin
		// that raced this event shows up here
		if cur, err := s.State.VoiceState(vs.GuildID, vs.UserID); err == nil && cur.ChannelID == dest.ChannelID {
			return
		}
		if b.voice.Forget(vs.GuildID) {
			slog.Warn("disconnected from voice channel", "guild", vs.GuildID, "channel", dest.ChannelID)
			b.player.SinkLost(context.Background())
		}
		return
	}

	if b.cfg.LeaveIfNoListeners && listenerCount(s.State, dest.GuildID, dest.ChannelID) == 0 {
		slog.Info("no listeners left, leaving", "guild", dest.GuildID, "channel", dest.ChannelID)
		b.player.StopAndClearQueue(context.Background())
	}
}

// listenerCount counts the non-bot members in a voice channel.
func listenerCount(st *discordgo.State, guildID, channelID string) int {
	g, err := st.Guild(guildID)
	if err != nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m, err := st.Member(guildID, vs.UserID)
		if err == nil && m.User != nil && !m.User.Bot {
			n++
		}
	}
	return n
}
