package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channel, id, content string
	edit                 bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	msgs     []sent
	presence []string
	n        int
}

func (f *fakeMessenger) ChannelMessageSend(ch, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	id := fmt.Sprint(f.n)
	f.msgs = append(f.msgs, sent{channel: ch, id: id, content: content})
	return &discordgo.Message{ID: id, ChannelID: ch, Content: content}, nil
}

func (f *fakeMessenger) ChannelMessageEdit(ch, id, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{channel: ch, id: id, content: content, edit: true})
	return &discordgo.Message{ID: id}, nil
}

func (f *fakeMessenger) UpdateWatchStatus(_ int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, name)
	return nil
}

func TestChannelNotifier_DownloadProgressEditsMessage(t *testing.T) {
	fm := &fakeMessenger{}
	n := NewChannelNotifier(fm, "", "videos")
	item := queue.Item{ID: "i1", Title: "Some_Video", RequestedBy: "u1"}

	n.Notify(context.Background(), player.Event{Type: player.EventDownloading, Item: item})
	assert.Empty(t, fm.msgs, "no channel known yet")

	n.SetChannel("c1")
	n.Notify(context.Background(), player.Event{Type: player.EventDownloading, Item: item})
	n.Notify(context.Background(), player.Event{Type: player.EventDownloaded, Item: item})
	n.Notify(context.Background(), player.Event{Type: player.EventNowPlaying, Item: item, Text: "skipped intro"})

	require.Len(t, fm.msgs, 3)
	assert.Equal(t, "c1", fm.msgs[0].channel)
	assert.Contains(t, fm.msgs[0].content, "downloading **Some\\_Video**")
	assert.True(t, fm.msgs[1].edit)
	assert.Equal(t, fm.msgs[0].id, fm.msgs[1].id)
	assert.Contains(t, fm.msgs[2].content, "<@u1>")
	assert.Contains(t, fm.msgs[2].content, "skipped intro")
	assert.Equal(t, []string{"Some_Video"}, fm.presence)
}

func TestChannelNotifier_FailureAndDrain(t *testing.T) {
	fm := &fakeMessenger{}
	n := NewChannelNotifier(fm, "fixed", "videos")
	n.SetChannel("other")
	item := queue.Item{ID: "i1", Title: "bad"}

	n.Notify(context.Background(), player.Event{Type: player.EventDownloading, Item: item})
	n.Notify(context.Background(), player.Event{Type: player.EventFailed, Item: item, Err: errors.New("HTTP Error 403")})
	n.Notify(context.Background(), player.Event{Type: player.EventQueueDrained})

	require.Len(t, fm.msgs, 4)
	for _, m := range fm.msgs {
		assert.Equal(t, "fixed", m.channel)
	}
	assert.True(t, fm.msgs[1].edit)
	assert.Contains(t, fm.msgs[2].content, "HTTP Error 403")
	assert.Equal(t, "queue finished", fm.msgs[3].content)
	assert.Equal(t, []string{"videos"}, fm.presence)
}

func TestChannelNotifier_CancelledDownloadClosesNotice(t *testing.T) {
	fm := &fakeMessenger{}
	n := NewChannelNotifier(fm, "c1", "videos")
	item := queue.Item{ID: "i1", Title: "long one"}

	n.Notify(context.Background(), player.Event{Type: player.EventDownloading, Item: item})
	n.Notify(context.Background(), player.Event{Type: player.EventDownloadCancelled, Item: item})

	require.Len(t, fm.msgs, 2)
	assert.True(t, fm.msgs[1].edit)
	assert.Equal(t, fm.msgs[0].id, fm.msgs[1].id)
	assert.Contains(t, fm.msgs[1].content, "cancelled")
	assert.Empty(t, n.progress)

	// a late duplicate has nothing left to edit
	n.Notify(context.Background(), player.Event{Type: player.EventDownloadCancelled, Item: item})
	assert.Len(t, fm.msgs, 2)
}
