package media

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sonroyaalmerol/kumastream/internal/cache"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
)

// Resolver tries its strategies in order; the first one whose Match
// accepts the input decides the outcome.
type Resolver struct {
	strategies []Strategy
	cache      *cache.Cache[ResolvedSource]
	log        *slog.Logger
}

type Options struct {
	Width    int
	Height   int
	Policy   Policy
	CacheTTL time.Duration
	Logger   *slog.Logger
}

func NewResolver(strategies []Strategy, cacheTTL time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		strategies: strategies,
		cache:      cache.New[ResolvedSource](cacheTTL),
		log:        log,
	}
}

// NewDefaultResolver wires the standard order: platform video, live
// channel, spotify track (when lookup is set), local file, direct URL and
// finally search.
func NewDefaultResolver(ex Extractor, se Searcher, lookup TrackLookup, opts Options) *Resolver {
	platform := NewPlatformVideo(ex, opts.Policy)
	srch := NewSearch(se, platform)

	strategies := []Strategy{
		platform,
		NewLiveChannel(ex, opts.Width, opts.Height),
	}
	if lookup != nil {
		strategies = append(strategies, NewSpotifyTrack(lookup, srch))
	}
	strategies = append(strategies,
		NewLocalFile(),
		NewDirectURL(ex),
		srch,
	)
	return NewResolver(strategies, opts.CacheTTL, opts.Logger)
}

func (r *Resolver) Strategies() []string {
	out := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s.Name())
	}
	return out
}

// Resolve turns raw into a playable source. Failures come back as errors
// and are logged here; Resolve never panics on bad input.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*ResolvedSource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyInput
	}
	if src, ok := r.cache.Get(raw); ok {
		r.log.Debug("resolve cache hit", "input", raw)
		return &src, nil
	}

	for _, s := range r.strategies {
		if !s.Match(raw) {
			continue
		}
		start := time.Now()
		src, err := s.Resolve(ctx, raw)
		if err != nil {
			r.log.Warn("resolve failed", "strategy", s.Name(), "input", raw, "err", err)
			return nil, err
		}
		r.log.Debug("resolved", "strategy", s.Name(), "input", raw, "title", src.Title,
			"kind", src.Kind, "live", src.IsLive, "took", time.Since(start))
		if cacheable(src) {
			r.cache.Set(raw, *src)
		}
		return src, nil
	}
	r.log.Warn("no strategy matched", "input", raw)
	return nil, ErrUnsupported
}

func cacheable(src *ResolvedSource) bool {
	return !src.IsLive && src.Kind != queue.KindLocal
}
