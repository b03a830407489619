package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	plib "github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_UniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands() {
		assert.False(t, seen[c.Name], "duplicate command %s", c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Description)
	}
	for _, name := range []string{"play", "skip", "stop", "queue", "status", "move", "remove", "list", "ytsearch", "history", "favorites"} {
		assert.True(t, seen[name], name)
	}
}

func TestAllowed(t *testing.T) {
	h := &CommandHandler{cfg: &config.Config{}}
	assert.True(t, h.allowed("anything"))

	h.cfg.CommandChannelID = "c1"
	assert.True(t, h.allowed("c1"))
	assert.False(t, h.allowed("c2"))
}

func TestEnqueue_PrefersLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Intro Reel.mp4"), nil, 0o644))

	h := &CommandHandler{
		cfg:    &config.Config{},
		player: plib.New(plib.Deps{}, plib.Options{}, nil),
		lib:    media.NewLibrary(dir),
	}

	it := h.enqueue("intro reel", "u1")
	assert.True(t, it.Resolved)
	assert.Equal(t, queue.KindLocal, it.Kind)
	assert.Equal(t, filepath.Join(dir, "Intro Reel.mp4"), it.OriginalInput)
	assert.Equal(t, "Intro Reel", it.Title)

	it = h.enqueue("https://www.youtube.com/watch?v=abc", "u1")
	assert.False(t, it.Resolved)
	assert.Equal(t, queue.KindPlatformVideo, it.Kind)
	assert.Len(t, h.player.GetQueue(), 2)
}

func TestOptionHelpers(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "cats"},
		{Name: "page", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
	}
	assert.Equal(t, "cats", optString(opts, "query"))
	assert.Equal(t, "", optString(opts, "missing"))
	assert.Equal(t, int64(3), optInt(opts, "page", 1))
	assert.Equal(t, int64(1), optInt(opts, "missing", 1))
}

func TestUserIDOf(t *testing.T) {
	assert.Equal(t, "", userIDOf(nil))
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Member: &discordgo.Member{User: &discordgo.User{ID: "m1"}}}}
	assert.Equal(t, "m1", userIDOf(guild))
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "d1"}}}
	assert.Equal(t, "d1", userIDOf(dm))
}

func TestSaveFavorite(t *testing.T) {
	db, err := repository.Open(filepath.Join(t.TempDir(), "favs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &CommandHandler{
		cfg:    &config.Config{},
		player: plib.New(plib.Deps{}, plib.Options{}, nil),
		favs:   repository.NewFavoritesService(repository.NewRepo(db)),
	}
	ctx := context.Background()

	_, err = h.saveFavorite(ctx, "g1", "u1", "now", "")
	assert.ErrorIs(t, err, plib.ErrNothingPlaying)

	fav, err := h.saveFavorite(ctx, "g1", "u1", "stream", "https://www.twitch.tv/somebody")
	require.NoError(t, err)
	assert.Equal(t, queue.KindLiveChannel.String(), fav.Kind)

	out := formatFavorites([]repository.Favorite{
		{Name: "stream", Input: "https://www.twitch.tv/somebody", Kind: fav.Kind, Author: "u1", Uses: 3},
		{Name: "clip", Input: "/videos/clip.mp4", Kind: "local", Author: "u2"},
	})
	assert.Contains(t, out, "`stream`")
	assert.Contains(t, out, "used 3×")
	assert.Contains(t, out, "<@u2>)")
}
