package handlers

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	dest   stream.Destination
	joined bool
	forgot int
}

func (f *fakeVoice) Current() (stream.Destination, bool) { return f.dest, f.joined }

func (f *fakeVoice) Forget(guildID string) bool {
	if !f.joined || guildID != f.dest.GuildID {
		return false
	}
	f.joined = false
	f.forgot++
	return true
}

type fakePlayback struct {
	lost, stopped int
}

func (f *fakePlayback) SinkLost(context.Context)          { f.lost++ }
func (f *fakePlayback) StopAndClearQueue(context.Context) { f.stopped++ }

func newVoiceSession(t *testing.T, states ...*discordgo.VoiceState) *discordgo.Session {
	t.Helper()
	st := discordgo.NewState()
	st.User = &discordgo.User{ID: "bot", Bot: true}
	require.NoError(t, st.GuildAdd(&discordgo.Guild{ID: "g1", VoiceStates: states}))
	require.NoError(t, st.MemberAdd(&discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "bot", Bot: true}}))
	require.NoError(t, st.MemberAdd(&discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "human"}}))
	require.NoError(t, st.MemberAdd(&discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "other-bot", Bot: true}}))
	return &discordgo.Session{State: st}
}

func newVoiceBot(leave bool) (*Bot, *fakeVoice, *fakePlayback) {
	v := &fakeVoice{dest: stream.Destination{GuildID: "g1", ChannelID: "vc1"}, joined: true}
	p := &fakePlayback{}
	return &Bot{cfg: &config.Config{LeaveIfNoListeners: leave}, voice: v, player: p}, v, p
}

func update(guild, user, channel string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{GuildID: guild, UserID: user, ChannelID: channel}}
}

func TestOnVoiceStateUpdate_Kicked(t *testing.T) {
	b, v, p := newVoiceBot(false)
	s := newVoiceSession(t)

	b.onVoiceStateUpdate(s, update("g1", "bot", ""))
	assert.Equal(t, 1, v.forgot)
	assert.Equal(t, 1, p.lost)

	// already forgotten
	b.onVoiceStateUpdate(s, update("g1", "bot", ""))
	assert.Equal(t, 1, p.lost)
}

func TestOnVoiceStateUpdate_IgnoresCurrentChannel(t *testing.T) {
	b, v, p := newVoiceBot(false)
	s := newVoiceSession(t, &discordgo.VoiceState{GuildID: "g1", UserID: "bot", ChannelID: "vc1"})

	b.onVoiceStateUpdate(s, update("g1", "bot", "vc1"))
	b.onVoiceStateUpdate(s, update("g2", "bot", ""))
	assert.Zero(t, v.forgot)
	assert.Zero(t, p.lost)
}

func TestOnVoiceStateUpdate_LeaveIfNoListeners(t *testing.T) {
	b, _, p := newVoiceBot(true)
	s := newVoiceSession(t,
		&discordgo.VoiceState{GuildID: "g1", UserID: "bot", ChannelID: "vc1"},
		&discordgo.VoiceState{GuildID: "g1", UserID: "human", ChannelID: "vc1"},
	)
	b.onVoiceStateUpdate(s, update("g1", "human", "vc1"))
	assert.Zero(t, p.stopped)

	empty := newVoiceSession(t,
		&discordgo.VoiceState{GuildID: "g1", UserID: "bot", ChannelID: "vc1"},
		&discordgo.VoiceState{GuildID: "g1", UserID: "other-bot", ChannelID: "vc1"},
	)
	b.onVoiceStateUpdate(empty, update("g1", "human", ""))
	assert.Equal(t, 1, p.stopped)

	b.cfg.LeaveIfNoListeners = false
	b.onVoiceStateUpdate(empty, update("g1", "human", ""))
	assert.Equal(t, 1, p.stopped)
}

func TestListenerCount(t *testing.T) {
	s := newVoiceSession(t,
		&discordgo.VoiceState{GuildID: "g1", UserID: "bot", ChannelID: "vc1"},
		&discordgo.VoiceState{GuildID: "g1", UserID: "human", ChannelID: "vc1"},
		&discordgo.VoiceState{GuildID: "g1", UserID: "other-bot", ChannelID: "vc1"},
	)
	assert.Equal(t, 1, listenerCount(s.State, "g1", "vc1"))
	assert.Zero(t, listenerCount(s.State, "g1", "vc2"))
	assert.Zero(t, listenerCount(s.State, "missing", "vc1"))
}
