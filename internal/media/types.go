package media

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
)

// ResolvedSource is a pipeline-ready reference derived from a raw input. It
// is consumed by the player right away and never stored in the queue.
type ResolvedSource struct {
	PlayableRef string
	Title       string
	Kind        queue.Kind
	IsLive      bool

	// Materialize asks the player to download PlayableRef to a temporary
	// file before streaming it.
	Materialize bool
	VideoID     string
	DurationSec int
}

type Format struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	Protocol string  `json:"protocol"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	TBR      float64 `json:"tbr"`
}

// Info is the subset of extractor metadata the resolver looks at.
type Info struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Uploader   string   `json:"uploader"`
	Duration   float64  `json:"duration"`
	IsLive     bool     `json:"is_live"`
	WebpageURL string   `json:"webpage_url"`
	URL        string   `json:"url"`
	Extractor  string   `json:"extractor"`
	Thumbnail  string   `json:"thumbnail"`
	Formats    []Format `json:"formats"`
}

type SearchResult struct {
	Title       string
	PageURL     string
	DurationSec int
}

type Extractor interface {
	Probe(ctx context.Context, url string) (*Info, error)
	// LiveStreamURL returns a direct stream URL for a live page.
	LiveStreamURL(ctx context.Context, pageURL string) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]SearchResult, error)
}

// TrackLookup turns a music service track reference into search text.
type TrackLookup interface {
	SearchQuery(ctx context.Context, raw string) (string, error)
}

// Strategy is one step of the resolution order. Match must be cheap;
// Resolve may do network or disk I/O.
type Strategy interface {
	Name() string
	Match(raw string) bool
	Resolve(ctx context.Context, raw string) (*ResolvedSource, error)
}

type Policy string

const (
	PolicyDownload Policy = "download"
	PolicyStream   Policy = "stream"
)

var (
	ErrEmptyInput  = errors.New("empty input")
	ErrNoResults   = errors.New("no search results")
	ErrNoVariants  = errors.New("no stream variants available")
	ErrNoFormat    = errors.New("no playable format")
	ErrUnsupported = errors.New("unsupported input")
)
