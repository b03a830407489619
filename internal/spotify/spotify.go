package spotify

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNotTrack = errors.New("not a spotify track")

type Track struct {
	Name   string
	Artist string
}

// Query is the search text used to find the track on the video platform.
func (t Track) Query() string {
	return strings.TrimSpace(t.Name + " " + t.Artist)
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

// ParseID accepts spotify:<type>:<id> URIs and open.spotify.com URLs,
// including the /intl-xx/ prefixed form.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", errors.Newf("invalid spotify URI %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrap(err, "parse spotify url")
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", errors.Newf("not a spotify URL: %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", errors.Newf("invalid spotify URL path %q", u.Path)
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", errors.Newf("unsupported spotify type %q", parts[0])
}

func (c *Client) GetTrack(ctx context.Context, id spotify.ID) (Track, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return Track{}, errors.Wrapf(err, "get track %s", id)
	}
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Track{Name: t.Name, Artist: artist}, nil
}

// SearchQuery resolves a track link to "<name> <artist>".
func (c *Client) SearchQuery(ctx context.Context, raw string) (string, error) {
	typ, id, err := ParseID(raw)
	if err != nil {
		return "", err
	}
	if typ != "track" {
		return "", errors.Wrapf(ErrNotTrack, "%s link", typ)
	}
	t, err := c.GetTrack(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Query(), nil
}
