package player

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

// prevWait bounds how long a new session waits for the one it replaced.
const prevWait = 2 * time.Second

// session is one playback attempt. It is current while p.sess points at
// it; a session that is no longer current only cleans up after itself.
type session struct {
	id     uint64
	itemID string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	dest   stream.Destination
	delay  time.Duration
	prev   *session

	// guarded by Player.mu
	manualStop bool

	// owned by the run goroutine
	tempFile  string
	startedAt time.Time
	begun     bool
}

type outcome int

const (
	outcomeFinished outcome = iota
	outcomeStopped
	outcomeFailed
	outcomeJoinFailed
)

// newSessionLocked installs a new current session for item. Caller holds
// p.mu.
func (p *Player) newSessionLocked(item queue.Item, delay time.Duration, prev *session) *session {
	ctx, cancel := context.WithCancel(p.baseCtx)
	p.nextID++
	s := &session{
		id:     p.nextID,
		itemID: item.ID,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		dest:   p.dest,
		delay:  delay,
		prev:   prev,
	}
	p.sess = s
	p.state = StateJoining
	p.startedAt = time.Time{}
	p.duration = 0
	return s
}

func (p *Player) start(sess *session, item queue.Item) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(sess, item)
	}()
}

// run plays item and keeps auto-advancing in the same goroutine until the
// queue drains or the session is superseded.
func (p *Player) run(sess *session, item queue.Item) {
	for {
		out, err := p.attempt(sess, &item)
		next, nextItem, ok := p.settle(sess, item, out, err)
		if !ok {
			return
		}
		sess, item = next, nextItem
	}
}

func (p *Player) isCurrent(sess *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess == sess
}

func (p *Player) setState(sess *session, st State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != sess {
		return false
	}
	p.state = st
	return true
}

func (p *Player) stopped(sess *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sess.manualStop || sess.ctx.Err() != nil || p.sess != sess
}

func (p *Player) attempt(sess *session, item *queue.Item) (outcome, error) {
	sess.startedAt = time.Now()

	if prev := sess.prev; prev != nil {
		sess.prev = nil
		select {
		case <-prev.done:
		case <-time.After(prevWait):
			p.log.Warn("previous session did not finish in time", "session", prev.id)
		case <-sess.ctx.Done():
			return outcomeStopped, nil
		}
	}
	if sess.delay > 0 {
		select {
		case <-time.After(sess.delay):
		case <-sess.ctx.Done():
			return outcomeStopped, nil
		}
	}

	// Joining
	if !p.setState(sess, StateJoining) {
		return outcomeStopped, nil
	}
	sess.begun = true
	if err := p.acquire(sess.ctx, sess.dest); err != nil {
		if p.stopped(sess) {
			return outcomeStopped, nil
		}
		return outcomeJoinFailed, errors.Wrap(err, "acquire sink")
	}

	// Preparing
	if !p.setState(sess, StatePreparing) {
		return outcomeStopped, nil
	}
	prep, err := p.prepare(sess, item)
	if err != nil {
		if p.stopped(sess) {
			return outcomeStopped, nil
		}
		return outcomeFailed, err
	}

	// Streaming
	t, err := p.deps.Pipeline.Prepare(sess.ctx, prep.ref, prep.params)
	if err != nil {
		if p.stopped(sess) {
			return outcomeStopped, nil
		}
		return outcomeFailed, errors.Wrap(err, "start transcode")
	}
	defer t.Stop()

	if !p.enterStreaming(sess, prep) {
		return outcomeStopped, nil
	}
	p.log.Info("now playing", "item", item.Title, "kind", item.Kind, "live", item.IsLive, "ref", prep.ref)
	p.notify(Event{Type: EventNowPlaying, Item: *item, Text: prep.note})

	err = p.deps.Pipeline.Run(sess.ctx, t, p.deps.Sink)
	if p.stopped(sess) {
		return outcomeStopped, nil
	}
	if err != nil {
		return outcomeFailed, errors.Wrap(err, "stream")
	}
	return outcomeFinished, nil
}

type prepared struct {
	ref    string
	params stream.Params
	dur    int
	note   string
}

// prepare resolves and, when needed, downloads item. item is updated in
// place with the resolved metadata.
func (p *Player) prepare(sess *session, item *queue.Item) (*prepared, error) {
	var src *media.ResolvedSource
	if item.Resolved {
		src = &media.ResolvedSource{
			PlayableRef: item.OriginalInput,
			Title:       item.Title,
			Kind:        item.Kind,
		}
	} else {
		var err error
		src, err = p.deps.Resolver.Resolve(sess.ctx, item.OriginalInput)
		if err != nil {
			return nil, errors.Wrap(err, "resolve")
		}
		if src == nil {
			return nil, errors.Wrap(media.ErrUnsupported, "resolve")
		}
	}
	if !p.isCurrent(sess) {
		return nil, errStale
	}

	item.Title = src.Title
	item.Kind = src.Kind
	item.IsLive = src.IsLive
	p.q.Update(item.ID, func(it *queue.Item) {
		it.Title = src.Title
		it.Kind = src.Kind
		it.IsLive = src.IsLive
	})

	ref := src.PlayableRef
	if src.Materialize {
		if p.deps.Downloader == nil {
			return nil, errors.New("download required but no downloader configured")
		}
		p.notify(Event{Type: EventDownloading, Item: *item})
		path, err := p.deps.Downloader.Download(sess.ctx, src.PlayableRef)
		if err != nil {
			// a failure is reported by settle; a cancelled download is not
			if p.stopped(sess) {
				p.notify(Event{Type: EventDownloadCancelled, Item: *item})
			}
			return nil, errors.Wrap(err, "download")
		}
		sess.tempFile = path
		if !p.isCurrent(sess) {
			p.notify(Event{Type: EventDownloadCancelled, Item: *item})
			return nil, errStale
		}
		p.notify(Event{Type: EventDownloaded, Item: *item})
		ref = path
	}

	prep := &prepared{ref: ref, params: p.opts.Params, dur: src.DurationSec}
	prep.params.IsLive = src.IsLive
	prep.params.StartSec = 0
	prep.params.DurationSec = 0

	if p.deps.Trimmer != nil && src.VideoID != "" && !src.IsLive {
		if start, length, msg, ok := p.deps.Trimmer.Trim(sess.ctx, src.VideoID, src.DurationSec); ok {
			prep.params.StartSec = start
			prep.params.DurationSec = length
			prep.dur = length
			prep.note = msg
			p.log.Debug("sponsorblock trimmed", "item", item.Title, "start", start, "length", length)
		}
	}
	if item.Kind == queue.KindPlatformVideo && !src.Materialize && utils.IsHTTP(ref) {
		prep.params.Headers = utils.PlatformHeaders()
	}
	if p.opts.RespectSourceParams && p.deps.Prober != nil {
		sp, err := p.deps.Prober.Probe(sess.ctx, ref, prep.params.Headers)
		if err != nil {
			p.log.Warn("source probe failed, using configured params", "item", item.Title, "err", err)
		} else {
			prep.params = sp.Apply(prep.params)
		}
	}
	return prep, nil
}

func (p *Player) enterStreaming(sess *session, prep *prepared) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != sess || sess.manualStop {
		return false
	}
	p.state = StateStreaming
	p.skipping = false
	p.params = prep.params
	p.startedAt = time.Now()
	p.duration = prep.dur
	return true
}

// settle runs cleanup for sess and decides what happens next. It returns
// the session to continue with when the queue auto-advances.
func (p *Player) settle(sess *session, item queue.Item, out outcome, err error) (*session, queue.Item, bool) {
	defer close(sess.done)
	sess.cancel()
	p.removeTemp(sess)
	p.record(sess, item, out, err)

	p.mu.Lock()
	if p.sess != sess {
		p.mu.Unlock()
		p.log.Debug("session superseded", "session", sess.id, "item", item.Title)
		// it may have joined after the stop that superseded it
		p.teardown(context.Background())
		return nil, queue.Item{}, false
	}
	p.skipping = false
	p.startedAt = time.Time{}

	switch out {
	case outcomeJoinFailed:
		p.sess = nil
		p.state = StateIdle
		p.q.SetPlaying(false)
		p.q.ResetCurrentIndex()
		p.mu.Unlock()

		p.log.Error("could not join output", "dest", sess.dest.ChannelID, "err", err)
		p.notify(Event{Type: EventFailed, Item: item, Err: err})
		return nil, queue.Item{}, false

	case outcomeStopped:
		p.sess = nil
		p.state = StateIdle
		p.q.SetPlaying(false)
		p.mu.Unlock()

		p.deps.Sink.StopStream()
		p.log.Info("playback stopped", "item", item.Title)
		p.teardown(context.Background())
		return nil, queue.Item{}, false
	}

	ev := Event{Type: EventFinished, Item: item}
	if out == outcomeFailed {
		p.state = StateFailed
		p.failed[item.OriginalInput] = struct{}{}
		ev = Event{Type: EventFailed, Item: item, Err: err}
	} else {
		p.state = StateFinishing
	}
	p.q.Remove(item.ID)
	next := p.q.GetNext()
	if next == nil {
		next = p.wrapLocked()
	}

	if next != nil {
		ns := p.newSessionLocked(*next, p.opts.AdvanceDelay, nil)
		p.mu.Unlock()

		p.deps.Sink.StopStream()
		p.logOutcome(item, out, err)
		p.notify(ev)
		return ns, *next, true
	}

	p.sess = nil
	p.state = StateIdle
	p.q.SetPlaying(false)
	p.mu.Unlock()

	p.deps.Sink.StopStream()
	p.logOutcome(item, out, err)
	p.notify(ev)
	p.teardown(context.Background())
	p.notify(Event{Type: EventQueueDrained})
	return nil, queue.Item{}, false
}

func (p *Player) logOutcome(item queue.Item, out outcome, err error) {
	if out == outcomeFailed {
		p.log.Error("playback failed", "item", item.Title, "input", item.OriginalInput, "err", err)
		return
	}
	p.log.Info("playback finished", "item", item.Title)
}

func (p *Player) removeTemp(sess *session) {
	if sess.tempFile == "" {
		return
	}
	if err := os.Remove(sess.tempFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.log.Warn("remove temp file", "path", sess.tempFile, "err", err)
	} else {
		p.log.Debug("temp file removed", "path", sess.tempFile)
	}
	sess.tempFile = ""
}

func (p *Player) record(sess *session, item queue.Item, out outcome, err error) {
	if p.deps.History == nil || !sess.begun {
		return
	}
	pb := &repository.Playback{
		GuildID:     sess.dest.GuildID,
		Input:       item.OriginalInput,
		Title:       item.Title,
		Kind:        item.Kind.String(),
		RequestedBy: item.RequestedBy,
		StartedAt:   sess.startedAt,
		EndedAt:     time.Now(),
	}
	switch out {
	case outcomeFinished:
		pb.Outcome = repository.OutcomeFinished
	case outcomeStopped:
		pb.Outcome = repository.OutcomeStopped
	default:
		pb.Outcome = repository.OutcomeFailed
	}
	if err != nil {
		pb.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if herr := p.deps.History.AddPlayback(ctx, pb); herr != nil {
		p.log.Warn("record playback", "err", herr)
	}
}
