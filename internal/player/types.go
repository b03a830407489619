package player

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
)

var (
	ErrAlreadyPlaying = errors.New("Already playing")
	ErrQueueEmpty     = errors.New("Queue is empty")
	ErrNothingPlaying = errors.New("Nothing is playing")
	ErrSkipInProgress = errors.New("A skip is already in progress")
	ErrClosed         = errors.New("player closed")
	ErrRemoveCurrent  = errors.New("cannot remove the item that is playing; skip it instead")

	errStale = errors.New("session superseded")
)

type State int

const (
	StateIdle State = iota
	StateJoining
	StatePreparing
	StateStreaming
	StateFinishing
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StatePreparing:
		return "preparing"
	case StateStreaming:
		return "streaming"
	case StateFinishing:
		return "finishing"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type EventType int

const (
	EventNowPlaying EventType = iota
	EventFinished
	EventFailed
	EventDownloading
	EventDownloaded
	EventDownloadCancelled
	EventSkipping
	EventQueueDrained
	EventStopped
)

func (t EventType) String() string {
	switch t {
	case EventNowPlaying:
		return "now-playing"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	case EventDownloading:
		return "downloading"
	case EventDownloaded:
		return "downloaded"
	case EventDownloadCancelled:
		return "download-cancelled"
	case EventSkipping:
		return "skipping"
	case EventQueueDrained:
		return "queue-drained"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is a one-line notification for the command layer.
type Event struct {
	Type EventType
	Item queue.Item
	// Text carries extra detail, e.g. what SponsorBlock trimmed.
	Text string
	Err  error
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (*media.ResolvedSource, error)
}

// Downloader materializes a platform page into a local temp file.
type Downloader interface {
	Download(ctx context.Context, pageURL string) (string, error)
}

type Pipeline interface {
	Prepare(ctx context.Context, ref string, p stream.Params) (*stream.Transcode, error)
	Run(ctx context.Context, t *stream.Transcode, sink stream.FrameSink) error
}

// Sink is the single-slot output. Acquire must be idempotent for the same
// destination.
type Sink interface {
	stream.FrameSink
	Acquire(ctx context.Context, dest stream.Destination) error
	Release(ctx context.Context) error
	IsAcquired() bool
	StopStream()
}

type Prober interface {
	Probe(ctx context.Context, ref string, headers map[string]string) (stream.SourceParams, error)
}

type Trimmer interface {
	Trim(ctx context.Context, videoID string, durationSec int) (start, length int, msg string, ok bool)
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type History interface {
	AddPlayback(ctx context.Context, p *repository.Playback) error
}

// Deps are the collaborators of a Player. Resolver, Pipeline and Sink are
// required; the rest are optional.
type Deps struct {
	Resolver   Resolver
	Downloader Downloader
	Pipeline   Pipeline
	Sink       Sink
	Prober     Prober
	Trimmer    Trimmer
	Notifier   Notifier
	History    History
}

type Options struct {
	Destination         stream.Destination
	Params              stream.Params
	AdvanceDelay        time.Duration
	RespectSourceParams bool
}

// Status is a point-in-time view for the status command.
type Status struct {
	State       State
	Current     *queue.Item
	Queue       queue.Status
	Params      stream.Params
	StartedAt   time.Time
	DurationSec int
	Failed      int
	Skipping    bool
}

// Elapsed is the time spent streaming the current item.
func (s Status) Elapsed() time.Duration {
	if s.StartedAt.IsZero() || s.State != StateStreaming {
		return 0
	}
	return time.Since(s.StartedAt)
}

type SkipResult struct {
	Skipped *queue.Item
	Next    *queue.Item
}
