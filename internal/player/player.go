package player

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
)

// Player drives one queue through a single output sink. At most one session
// is live at a time; every mutation goes through the methods below.
type Player struct {
	deps Deps
	opts Options
	log  *slog.Logger
	q    *queue.Queue

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// sinkMu serializes Acquire and Release.
	sinkMu sync.Mutex

	mu        sync.Mutex
	state     State
	sess      *session
	nextID    uint64
	skipping  bool
	closed    bool
	failed    map[string]struct{}
	dest      stream.Destination
	params    stream.Params
	startedAt time.Time
	duration  int
}

func New(deps Deps, opts Options, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		deps:       deps,
		opts:       opts,
		log:        log,
		q:          queue.New(),
		baseCtx:    ctx,
		baseCancel: cancel,
		failed:     make(map[string]struct{}),
		dest:       opts.Destination,
	}
}

// Enqueue appends raw without resolving it.
func (p *Player) Enqueue(raw, requestedBy string) queue.Item {
	raw = strings.TrimSpace(raw)
	return p.q.Enqueue(queue.Item{
		OriginalInput: raw,
		Title:         raw,
		Kind:          media.Classify(raw),
		RequestedBy:   requestedBy,
	})
}

// EnqueueResolved appends an item whose ref is already playable, such as a
// file from the local library.
func (p *Player) EnqueueResolved(ref, title string, kind queue.Kind, requestedBy string) queue.Item {
	return p.q.Enqueue(queue.Item{
		OriginalInput: ref,
		Title:         title,
		Kind:          kind,
		RequestedBy:   requestedBy,
		Resolved:      true,
	})
}

func (p *Player) Destination() stream.Destination {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dest
}

// SetDestination changes where the next session joins. A running session
// keeps its sink.
func (p *Player) SetDestination(dest stream.Destination) {
	p.mu.Lock()
	p.dest = dest
	p.mu.Unlock()
}

// PlayFromQueue starts playback at the head of the queue. The session
// outlives ctx; use SkipCurrent or StopAndClearQueue to end it.
func (p *Player) PlayFromQueue(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.sess != nil || p.state != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	if p.q.IsEmpty() {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	item := p.q.GetNext()
	if item == nil {
		// cursor was left on the last item; GetNext reset it to -1
		item = p.q.GetNext()
	}
	if item == nil {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	p.q.SetPlaying(true)
	sess := p.newSessionLocked(*item, 0, nil)
	p.mu.Unlock()

	p.log.Info("playback starting", "item", item.Title, "queued", p.q.Len())
	p.start(sess, *item)
	return nil
}

// SkipCurrent abandons the current item and moves on to the next one.
func (p *Player) SkipCurrent(ctx context.Context) (SkipResult, error) {
	p.mu.Lock()
	sess := p.sess
	if sess == nil {
		p.mu.Unlock()
		return SkipResult{}, ErrNothingPlaying
	}
	// A skip targeting the last item may overlap an in-flight one so
	// draining never blocks.
	if p.skipping && p.q.Len() > 1 {
		p.mu.Unlock()
		return SkipResult{}, ErrSkipInProgress
	}

	sess.manualStop = true
	sess.cancel()
	res := SkipResult{Skipped: p.q.GetCurrent()}
	next := p.q.Skip()
	if next == nil {
		next = p.wrapLocked()
	}
	res.Next = next

	if next == nil {
		p.sess = nil
		p.state = StateIdle
		p.skipping = false
		p.startedAt = time.Time{}
		p.q.SetPlaying(false)
		p.mu.Unlock()

		p.deps.Sink.StopStream()
		p.teardown(ctx)
		p.log.Info("skipped last item", "item", itemTitle(res.Skipped))
		p.notify(Event{Type: EventQueueDrained})
		return res, nil
	}

	ns := p.newSessionLocked(*next, 0, sess)
	p.skipping = true
	p.mu.Unlock()

	p.deps.Sink.StopStream()
	p.log.Info("skipping", "item", itemTitle(res.Skipped), "next", next.Title)
	p.notify(Event{Type: EventSkipping, Item: *next})
	p.start(ns, *next)
	return res, nil
}

// StopAndClearQueue empties the queue and ends any session. Calling it
// again is a no-op.
func (p *Player) StopAndClearQueue(ctx context.Context) {
	p.mu.Lock()
	p.q.Clear()
	sess := p.sess
	p.sess = nil
	p.state = StateIdle
	p.skipping = false
	p.startedAt = time.Time{}
	if sess != nil {
		sess.manualStop = true
		sess.cancel()
	}
	p.mu.Unlock()

	p.deps.Sink.StopStream()
	p.teardown(ctx)
	if sess != nil {
		p.log.Info("playback stopped and queue cleared")
		p.notify(Event{Type: EventStopped})
	}
}

// SinkLost ends the session after the output went away underneath it. The
// queue is kept and the next PlayFromQueue starts again from its head.
func (p *Player) SinkLost(ctx context.Context) {
	p.mu.Lock()
	sess := p.sess
	p.sess = nil
	p.state = StateIdle
	p.skipping = false
	p.startedAt = time.Time{}
	p.q.SetPlaying(false)
	p.q.ResetCurrentIndex()
	if sess != nil {
		sess.manualStop = true
		sess.cancel()
	}
	p.mu.Unlock()

	p.deps.Sink.StopStream()
	p.teardown(ctx)
	if sess != nil {
		p.log.Warn("output lost, playback stopped", "queued", p.q.Len())
		p.notify(Event{Type: EventStopped})
	}
}

func (p *Player) GetQueue() []queue.Item { return p.q.Items() }

func (p *Player) GetCurrent() *queue.Item { return p.q.GetCurrent() }

func (p *Player) GetQueueStatus() queue.Status { return p.q.Status() }

// MoveItem repositions an item; positions are zero-based.
func (p *Player) MoveItem(from, to int) error {
	return p.q.MoveItem(from, to)
}

// Remove deletes the item at the zero-based position pos. The playing item
// can only be skipped.
func (p *Player) Remove(pos int) (queue.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := p.q.Items()
	if pos < 0 || pos >= len(items) {
		return queue.Item{}, queue.ErrOutOfRange
	}
	it := items[pos]
	if p.sess != nil && p.sess.itemID == it.ID {
		return queue.Item{}, ErrRemoveCurrent
	}
	p.q.Remove(it.ID)
	return it, nil
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		State:       p.state,
		Queue:       p.q.Status(),
		Params:      p.params,
		StartedAt:   p.startedAt,
		DurationSec: p.duration,
		Failed:      len(p.failed),
		Skipping:    p.skipping,
	}
	if p.sess != nil {
		st.Current = p.q.GetCurrent()
	}
	return st
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Failed lists inputs whose playback failed, sorted.
func (p *Player) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.failed))
	for in := range p.failed {
		out = append(out, in)
	}
	slices.Sort(out)
	return out
}

func (p *Player) IsFailed(input string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.failed[input]
	return ok
}

// Close ends playback, waits for session goroutines and releases the sink.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.sess != nil {
		p.sess.manualStop = true
	}
	p.sess = nil
	p.state = StateIdle
	p.mu.Unlock()

	p.baseCancel()
	p.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	if p.deps.Sink.IsAcquired() {
		if err := p.deps.Sink.Release(ctx); err != nil {
			p.log.Warn("release sink on close", "err", err)
		}
	}
}

// teardown releases the sink when nothing is playing and nothing is queued.
func (p *Player) teardown(ctx context.Context) {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()

	p.mu.Lock()
	idle := p.sess == nil && p.q.IsEmpty()
	p.mu.Unlock()
	if !idle || !p.deps.Sink.IsAcquired() {
		return
	}
	if err := p.deps.Sink.Release(context.WithoutCancel(ctx)); err != nil {
		p.log.Warn("release sink", "err", err)
		return
	}
	p.log.Debug("sink released")
}

// wrapLocked restarts from the head when the cursor ran off the end but
// items remain. Finished items are removed, so anything still queued has
// not played; a move can leave such items behind the cursor.
func (p *Player) wrapLocked() *queue.Item {
	if p.q.IsEmpty() {
		return nil
	}
	p.q.ResetCurrentIndex()
	return p.q.GetNext()
}

func (p *Player) acquire(ctx context.Context, dest stream.Destination) error {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	return p.deps.Sink.Acquire(ctx, dest)
}

func (p *Player) notify(ev Event) {
	if p.deps.Notifier == nil {
		return
	}
	p.deps.Notifier.Notify(context.Background(), ev)
}

func itemTitle(it *queue.Item) string {
	if it == nil {
		return ""
	}
	return it.Title
}
