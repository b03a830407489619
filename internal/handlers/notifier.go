package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

// messenger is the part of *discordgo.Session the notifier talks to.
type messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UpdateWatchStatus(idle int, name string) error
}

// ChannelNotifier posts player events to a text channel and mirrors the
// current title in the bot presence.
type ChannelNotifier struct {
	s        messenger
	activity string
	fixed    bool

	mu        sync.Mutex
	channelID string
	progress  map[string]string // item id -> download message id
}

// NewChannelNotifier posts to channelID. When channelID is empty the
// channel of the last /play is used instead.
func NewChannelNotifier(s messenger, channelID, activity string) *ChannelNotifier {
	return &ChannelNotifier{
		s:         s,
		activity:  activity,
		fixed:     channelID != "",
		channelID: channelID,
		progress:  make(map[string]string),
	}
}

func (n *ChannelNotifier) SetChannel(id string) {
	if n.fixed || id == "" {
		return
	}
	n.mu.Lock()
	n.channelID = id
	n.mu.Unlock()
}

func (n *ChannelNotifier) channel() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channelID
}

func (n *ChannelNotifier) Notify(_ context.Context, ev player.Event) {
	title := utils.EscapeMd(utils.Truncate(ev.Item.Title, 100))

	switch ev.Type {
	case player.EventDownloading:
		if m := n.send("⬇️ downloading **" + title + "**…"); m != nil {
			n.mu.Lock()
			n.progress[ev.Item.ID] = m.ID
			n.mu.Unlock()
		}
	case player.EventDownloaded:
		n.closeProgress(ev.Item.ID, "✅ downloaded **"+title+"**")
	case player.EventDownloadCancelled:
		n.closeProgress(ev.Item.ID, "⏹️ download of **"+title+"** cancelled")
	case player.EventNowPlaying:
		msg := "▶️ now playing **" + title + "**"
		if ev.Item.RequestedBy != "" {
			msg += fmt.Sprintf(" (requested by <@%s>)", ev.Item.RequestedBy)
		}
		if ev.Text != "" {
			msg += "\n" + ev.Text
		}
		n.send(msg)
		n.presence(ev.Item.Title)
	case player.EventSkipping:
		n.send("⏭️ skipping to **" + title + "**")
	case player.EventFailed:
		n.closeProgress(ev.Item.ID, "⬇️ download failed")
		msg := "❌ couldn't play **" + title + "**"
		if ev.Err != nil {
			msg += ": " + utils.EscapeMd(utils.Truncate(ev.Err.Error(), 300))
		}
		n.send(msg)
	case player.EventQueueDrained:
		n.send("queue finished")
		n.presence(n.activity)
	case player.EventStopped:
		n.presence(n.activity)
	case player.EventFinished:
		slog.Debug("finished", "title", ev.Item.Title)
	}
}

// closeProgress replaces the download notice of itemID, if one is open.
func (n *ChannelNotifier) closeProgress(itemID, content string) {
	n.mu.Lock()
	msgID, ok := n.progress[itemID]
	delete(n.progress, itemID)
	n.mu.Unlock()
	if ok {
		n.edit(msgID, content)
	}
}

func (n *ChannelNotifier) send(content string) *discordgo.Message {
	ch := n.channel()
	if ch == "" {
		return nil
	}
	m, err := n.s.ChannelMessageSend(ch, content)
	if err != nil {
		slog.Warn("notify send failed", "channelID", ch, "err", err)
		return nil
	}
	return m
}

func (n *ChannelNotifier) edit(msgID, content string) {
	ch := n.channel()
	if _, err := n.s.ChannelMessageEdit(ch, msgID, content); err != nil {
		slog.Warn("notify edit failed", "channelID", ch, "messageID", msgID, "err", err)
	}
}

func (n *ChannelNotifier) presence(name string) {
	if err := n.s.UpdateWatchStatus(0, utils.Truncate(name, 128)); err != nil {
		slog.Debug("presence update failed", "err", err)
	}
}
