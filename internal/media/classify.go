package media

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sonroyaalmerol/kumastream/internal/queue"
)

var (
	rePlatformVideo = regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.|music\.)?(youtube\.com/(watch\?|shorts/|live/|embed/)|youtu\.be/[\w-]+)`)
	reLiveChannel   = regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?twitch\.tv/[\w]+`)
	reSpotify       = regexp.MustCompile(`(?i)^(spotify:track:|(https?://)?(www\.)?open\.spotify\.com/track/)`)
)

var mediaExts = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
	".m4v": true, ".flv": true, ".ts": true, ".mp3": true, ".m4a": true,
	".ogg": true, ".opus": true, ".flac": true, ".wav": true,
}

func IsPlatformVideo(raw string) bool { return rePlatformVideo.MatchString(raw) }
func IsLiveChannel(raw string) bool   { return reLiveChannel.MatchString(raw) }
func IsSpotifyTrack(raw string) bool  { return reSpotify.MatchString(raw) }

func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func IsMediaFile(name string) bool {
	return mediaExts[strings.ToLower(filepath.Ext(name))]
}

func looksLikePath(raw string) bool {
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return true
	}
	return IsMediaFile(raw) && !strings.Contains(raw, " ")
}

// Classify guesses the kind of raw from its shape alone. It never touches
// the network or the disk; resolution may later correct the guess.
func Classify(raw string) queue.Kind {
	raw = strings.TrimSpace(raw)
	switch {
	case IsPlatformVideo(raw), IsSpotifyTrack(raw):
		return queue.KindPlatformVideo
	case IsLiveChannel(raw):
		return queue.KindLiveChannel
	case IsHTTPURL(raw):
		return queue.KindGenericURL
	case looksLikePath(raw):
		return queue.KindLocal
	}
	return queue.KindPlatformVideo
}

// TitleFromURL derives a label from the last path segment of raw.
func TitleFromURL(raw string) string {
	const fallback = "Direct URL"
	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" || seg == "" {
		return fallback
	}
	if dec, err := url.PathUnescape(seg); err == nil {
		seg = dec
	}
	seg = strings.TrimSuffix(seg, path.Ext(seg))
	if seg == "" {
		return fallback
	}
	return seg
}

func titleFromPath(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
