package sponsorblock

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/cache"
)

// Categories that are cut from the head or tail of a video.
var Categories = []string{"sponsor", "intro", "outro", "selfpromo"}

// edgeSlack is how close to either end a segment must be to count as an
// intro or outro.
const edgeSlack = 2.0

// Trimmer turns SponsorBlock segments at the edges of a video into a start
// offset and a shortened duration.
type Trimmer struct {
	client     *Client
	cache      *cache.Cache[[]Segment]
	disableFor time.Duration
	log        *slog.Logger

	mu            sync.Mutex
	disabledUntil time.Time
	now           func() time.Time
}

func NewTrimmer(timeoutMinutes int, log *slog.Logger) *Trimmer {
	if log == nil {
		log = slog.Default()
	}
	return &Trimmer{
		client:     NewClient(),
		cache:      cache.New[[]Segment](time.Hour),
		disableFor: time.Duration(timeoutMinutes) * time.Minute,
		log:        log,
		now:        time.Now,
	}
}

func (t *Trimmer) disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Before(t.disabledUntil)
}

func (t *Trimmer) disable() {
	t.mu.Lock()
	t.disabledUntil = t.now().Add(t.disableFor)
	t.mu.Unlock()
}

// Trim returns the start offset and play length for videoID. ok is false
// when nothing changed; msg describes what was cut.
func (t *Trimmer) Trim(ctx context.Context, videoID string, durationSec int) (start, length int, msg string, ok bool) {
	if videoID == "" || durationSec <= 0 || t.disabled() {
		return 0, durationSec, "", false
	}

	segs, hit := t.cache.Get(videoID)
	if !hit {
		var err error
		segs, err = t.client.GetSegments(ctx, videoID, Categories)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				t.log.Warn("sponsorblock unavailable, pausing lookups", "for", t.disableFor)
				t.disable()
			} else {
				t.log.Debug("sponsorblock lookup failed", "videoID", videoID, "err", err)
			}
			return 0, durationSec, "", false
		}
		t.cache.Set(videoID, segs)
	}
	return applySegments(MergeSegments(segs), durationSec)
}

func applySegments(segs []Segment, durationSec int) (start, length int, msg string, ok bool) {
	length = durationSec
	if len(segs) == 0 {
		return 0, length, "", false
	}
	var parts []string

	first := segs[0]
	if first.Start() <= edgeSlack && int(first.End()) < durationSec {
		start = int(first.End())
		parts = append(parts, "skipped intro")
	}

	last := segs[len(segs)-1]
	if last.End() >= float64(durationSec)-edgeSlack && int(last.Start()) > start {
		length = int(last.Start())
		parts = append(parts, "trimmed outro")
	}
	length -= start

	if len(parts) == 0 || length <= 0 {
		return 0, durationSec, "", false
	}
	return start, length, strings.Join(parts, ", "), true
}
