package spotify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		typ     string
		id      spotify.ID
		wantErr bool
	}{
		{in: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", typ: "track", id: "4uLU6hMCjMI75M1A2tKUQC"},
		{in: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=x", typ: "track", id: "4uLU6hMCjMI75M1A2tKUQC"},
		{in: "https://open.spotify.com/intl-de/track/abc", typ: "track", id: "abc"},
		{in: "https://open.spotify.com/album/xyz", typ: "album", id: "xyz"},
		{in: "spotify:track", wantErr: true},
		{in: "https://example.com/track/abc", wantErr: true},
		{in: "https://open.spotify.com/show/abc", wantErr: true},
		{in: "https://open.spotify.com/track", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, id, err := ParseID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestSearchQuery_RejectsNonTrack(t *testing.T) {
	c := &Client{}
	_, err := c.SearchQuery(context.Background(), "https://open.spotify.com/playlist/abc")
	assert.ErrorIs(t, err, ErrNotTrack)
}

func TestTrackQuery(t *testing.T) {
	assert.Equal(t, "Song Artist", Track{Name: "Song", Artist: "Artist"}.Query())
	assert.Equal(t, "Song", Track{Name: "Song"}.Query())
}
