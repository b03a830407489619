package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

var (
	ErrSinkReleased = errors.New("voice connection released")
	ErrSendStalled  = errors.New("voice send stalled")
)

// Destination identifies a voice channel.
type Destination struct {
	GuildID   string
	ChannelID string
}

func (d Destination) IsZero() bool { return d.GuildID == "" || d.ChannelID == "" }

// VoiceSink is the output sink backed by a discordgo voice connection.
type VoiceSink struct {
	s   *discordgo.Session
	log *slog.Logger

	mu       sync.Mutex
	vc       *discordgo.VoiceConnection
	dest     Destination
	speaking bool
	dropped  int

	sendTimeout time.Duration
	maxDropped  int
}

func NewVoiceSink(s *discordgo.Session, log *slog.Logger) *VoiceSink {
	if log == nil {
		log = slog.Default()
	}
	return &VoiceSink{
		s:           s,
		log:         log,
		sendTimeout: 200 * time.Millisecond,
		maxDropped:  50,
	}
}

func ensureChannels(vc *discordgo.VoiceConnection) {
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
}

// Acquire joins dest. It is a no-op when already joined to dest; a
// different destination replaces the current connection.
func (v *VoiceSink) Acquire(ctx context.Context, dest Destination) error {
	if dest.IsZero() {
		return errors.New("voice destination not configured")
	}
	v.mu.Lock()
	if v.vc != nil && v.dest == dest {
		v.mu.Unlock()
		return nil
	}
	old := v.vc
	v.vc = nil
	v.dest = Destination{}
	v.speaking = false
	v.mu.Unlock()

	if old != nil {
		_ = v.safeDisconnect(old)
	}

	vc, err := v.s.ChannelVoiceJoin(ctx, dest.GuildID, dest.ChannelID, false, true)
	if err != nil {
		return errors.Wrapf(err, "join voice channel %s", dest.ChannelID)
	}
	ensureChannels(vc)

	v.mu.Lock()
	v.vc = vc
	v.dest = dest
	v.dropped = 0
	v.mu.Unlock()
	v.log.Info("voice connected", "guildID", dest.GuildID, "channelID", dest.ChannelID)
	return nil
}

func (v *VoiceSink) IsAcquired() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vc != nil
}

// Release leaves the voice channel. Releasing twice is harmless.
func (v *VoiceSink) Release(ctx context.Context) error {
	v.mu.Lock()
	vc := v.vc
	dest := v.dest
	v.vc = nil
	v.dest = Destination{}
	v.speaking = false
	v.mu.Unlock()

	if vc == nil {
		return nil
	}
	err := v.safeDisconnect(vc)
	v.log.Info("voice disconnected", "guildID", dest.GuildID, "err", err)
	return err
}

// Current reports the joined destination.
func (v *VoiceSink) Current() (Destination, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dest, v.vc != nil
}

// Forget drops a connection in guildID that was closed from outside, for
// example by a kick or a move. It reports whether one was dropped; the
// next Acquire then joins again instead of reusing the dead connection.
func (v *VoiceSink) Forget(guildID string) bool {
	v.mu.Lock()
	vc := v.vc
	if vc == nil || v.dest.GuildID != guildID {
		v.mu.Unlock()
		return false
	}
	v.vc = nil
	v.dest = Destination{}
	v.speaking = false
	v.dropped = 0
	v.mu.Unlock()

	v.log.Warn("voice connection lost", "guildID", guildID)
	go func() {
		if err := v.safeDisconnect(vc); err != nil {
			v.log.Debug("close lost voice connection", "err", err)
		}
	}()
	return true
}

// StopStream marks the end of the current item without leaving the channel.
func (v *VoiceSink) StopStream() {
	v.mu.Lock()
	vc := v.vc
	wasSpeaking := v.speaking
	v.speaking = false
	v.dropped = 0
	v.mu.Unlock()

	if vc != nil && wasSpeaking {
		_ = vc.Speaking(false)
	}
}

// WriteFrame hands one Opus packet to discordgo, which paces the send.
func (v *VoiceSink) WriteFrame(ctx context.Context, pkt []byte) error {
	v.mu.Lock()
	vc := v.vc
	start := vc != nil && !v.speaking
	if start {
		v.speaking = true
	}
	v.mu.Unlock()

	if vc == nil {
		return ErrSinkReleased
	}
	if start {
		_ = vc.Speaking(true)
	}

	timer := time.NewTimer(v.sendTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case vc.OpusSend <- pkt:
		v.mu.Lock()
		v.dropped = 0
		v.mu.Unlock()
		return nil
	case <-timer.C:
	}

	v.mu.Lock()
	v.dropped++
	n := v.dropped
	v.mu.Unlock()
	if n >= v.maxDropped {
		return errors.Wrapf(ErrSendStalled, "%d consecutive packets dropped", n)
	}
	return nil
}

func (v *VoiceSink) safeDisconnect(vc *discordgo.VoiceConnection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("voice disconnect panic recovered", "panic", r)
			err = errors.Newf("voice disconnect panic: %v", r)
		}
	}()

	ensureChannels(vc)
	_ = vc.Speaking(false)

	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return vc.Disconnect(ctx)
}
