package media

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
)

type platformVideo struct {
	ex     Extractor
	policy Policy
}

func NewPlatformVideo(ex Extractor, policy Policy) Strategy {
	return &platformVideo{ex: ex, policy: policy}
}

func (s *platformVideo) Name() string          { return "platform-video" }
func (s *platformVideo) Match(raw string) bool { return IsPlatformVideo(raw) }

func (s *platformVideo) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	info, err := s.ex.Probe(ctx, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "probe %s", raw)
	}
	page := info.WebpageURL
	if page == "" {
		page = raw
	}
	title := info.Title
	if title == "" {
		title = raw
	}
	src := &ResolvedSource{
		Title:       title,
		Kind:        queue.KindPlatformVideo,
		VideoID:     info.ID,
		DurationSec: int(info.Duration),
	}

	if info.IsLive {
		live, err := s.ex.LiveStreamURL(ctx, page)
		if err != nil {
			return nil, errors.Wrap(err, "live stream lookup")
		}
		src.PlayableRef = live
		src.IsLive = true
		src.DurationSec = 0
		return src, nil
	}

	if s.policy == PolicyDownload {
		src.PlayableRef = page
		src.Materialize = true
		return src, nil
	}

	f, ok := BestFormat(info.Formats)
	switch {
	case ok:
		src.PlayableRef = f.URL
	case info.URL != "":
		src.PlayableRef = info.URL
	default:
		return nil, ErrNoFormat
	}
	return src, nil
}

type liveChannel struct {
	ex            Extractor
	width, height int
}

func NewLiveChannel(ex Extractor, width, height int) Strategy {
	return &liveChannel{ex: ex, width: width, height: height}
}

func (s *liveChannel) Name() string          { return "live-channel" }
func (s *liveChannel) Match(raw string) bool { return IsLiveChannel(raw) }

func (s *liveChannel) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	info, err := s.ex.Probe(ctx, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "probe %s", raw)
	}
	v, ok := PickVariant(info.Formats, s.width, s.height)
	if !ok {
		if info.URL == "" {
			return nil, ErrNoVariants
		}
		v.URL = info.URL
	}
	title := info.Title
	if title == "" {
		title = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "www.")
	}
	return &ResolvedSource{
		PlayableRef: v.URL,
		Title:       title,
		Kind:        queue.KindLiveChannel,
		IsLive:      info.IsLive,
		DurationSec: int(info.Duration),
	}, nil
}

type localFile struct{}

func NewLocalFile() Strategy { return localFile{} }

func (localFile) Name() string { return "local-file" }

func (localFile) Match(raw string) bool {
	st, err := os.Stat(raw)
	return err == nil && !st.IsDir()
}

func (localFile) Resolve(_ context.Context, raw string) (*ResolvedSource, error) {
	return &ResolvedSource{
		PlayableRef: raw,
		Title:       titleFromPath(raw),
		Kind:        queue.KindLocal,
	}, nil
}

type directURL struct {
	ex Extractor
}

func NewDirectURL(ex Extractor) Strategy { return &directURL{ex: ex} }

func (s *directURL) Name() string          { return "direct-url" }
func (s *directURL) Match(raw string) bool { return IsHTTPURL(raw) }

// Resolve never fails: a failed probe degrades to streaming raw as is.
func (s *directURL) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	fallback := &ResolvedSource{
		PlayableRef: raw,
		Title:       TitleFromURL(raw),
		Kind:        queue.KindGenericURL,
	}
	info, err := s.ex.Probe(ctx, raw)
	if err != nil || info == nil || info.Title == "" {
		return fallback, nil
	}
	src := &ResolvedSource{
		PlayableRef: raw,
		Title:       info.Title,
		Kind:        queue.KindGenericURL,
		IsLive:      info.IsLive,
		DurationSec: int(info.Duration),
	}
	if f, ok := BestFormat(info.Formats); ok {
		src.PlayableRef = f.URL
	} else if info.URL != "" {
		src.PlayableRef = info.URL
	}
	return src, nil
}

type spotifyTrack struct {
	lookup TrackLookup
	search Strategy
}

func NewSpotifyTrack(lookup TrackLookup, search Strategy) Strategy {
	return &spotifyTrack{lookup: lookup, search: search}
}

func (s *spotifyTrack) Name() string          { return "spotify-track" }
func (s *spotifyTrack) Match(raw string) bool { return IsSpotifyTrack(raw) }

func (s *spotifyTrack) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	q, err := s.lookup.SearchQuery(ctx, raw)
	if err != nil {
		return nil, errors.Wrap(err, "spotify lookup")
	}
	return s.search.Resolve(ctx, q)
}

type search struct {
	se       Searcher
	platform Strategy
}

// NewSearch treats any input as search text and resolves the first hit with
// platform.
func NewSearch(se Searcher, platform Strategy) Strategy {
	return &search{se: se, platform: platform}
}

func (s *search) Name() string      { return "search" }
func (s *search) Match(string) bool { return true }

func (s *search) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	hits, err := s.se.Search(ctx, raw, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", raw)
	}
	if len(hits) == 0 || hits[0].PageURL == "" {
		return nil, errors.Wrapf(ErrNoResults, "search %q", raw)
	}
	src, err := s.platform.Resolve(ctx, hits[0].PageURL)
	if err != nil {
		return nil, err
	}
	if src.Title == hits[0].PageURL && hits[0].Title != "" {
		src.Title = hits[0].Title
	}
	return src, nil
}
