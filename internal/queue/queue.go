package queue

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is a FIFO of items with a play cursor. Every method is safe for
// concurrent use; composite operations such as Skip hold the lock for their
// whole duration.
type Queue struct {
	mu        sync.Mutex
	items     []Item
	cur       int
	isPlaying bool
	now       func() time.Time
}

func New() *Queue {
	return &Queue{cur: -1, now: time.Now}
}

// Enqueue appends it and returns the stored copy with ID and AddedAt set.
// It never resolves anything.
func (q *Queue) Enqueue(it Item) Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Title == "" {
		it.Title = it.OriginalInput
	}
	it.AddedAt = q.now()
	q.items = append(q.items, it)
	return it
}

func (q *Queue) GetNext() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextLocked()
}

func (q *Queue) nextLocked() *Item {
	if len(q.items) == 0 || q.cur >= len(q.items)-1 {
		q.cur = -1
		return nil
	}
	q.cur++
	it := q.items[q.cur]
	return &it
}

// GetCurrent returns the item under the cursor. A cursor past the end is
// clamped to the last item.
func (q *Queue) GetCurrent() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

func (q *Queue) currentLocked() *Item {
	if len(q.items) == 0 {
		q.cur = -1
		return nil
	}
	if q.cur >= len(q.items) {
		q.cur = len(q.items) - 1
	}
	if q.cur < 0 {
		q.cur = -1
		return nil
	}
	it := q.items[q.cur]
	return &it
}

func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(id)
}

func (q *Queue) removeLocked(id string) bool {
	idx := q.indexLocked(id)
	if idx < 0 {
		return false
	}
	q.items = slices.Delete(q.items, idx, idx+1)
	q.cur = adjustCursor(q.cur, removal(idx))
	return true
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.items, func(it Item) bool { return it.ID == id })
}

// Skip drops the current item and advances to the one that followed it.
func (q *Queue) Skip() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur := q.currentLocked(); cur != nil {
		q.removeLocked(cur.ID)
	}
	return q.nextLocked()
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.cur = -1
	q.isPlaying = false
}

// MoveItem relocates the item at from to position to (both 0-based).
func (q *Queue) MoveItem(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrOutOfRange
	}
	if from == to {
		return nil
	}
	it := q.items[from]
	q.items = slices.Delete(q.items, from, from+1)
	q.items = slices.Insert(q.items, to, it)
	q.cur = adjustCursor(q.cur, move(from, to))
	return nil
}

// Update applies fn to the stored item with the given id.
func (q *Queue) Update(id string, fn func(*Item)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return false
	}
	fn(&q.items[idx])
	return true
}

func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Items:        slices.Clone(q.items),
		CurrentIndex: q.cur,
		IsPlaying:    q.isPlaying,
	}
}

func (q *Queue) SetPlaying(v bool) {
	q.mu.Lock()
	q.isPlaying = v
	q.mu.Unlock()
}

func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isPlaying
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

func (q *Queue) CurrentIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur
}

func (q *Queue) ResetCurrentIndex() {
	q.mu.Lock()
	q.cur = -1
	q.mu.Unlock()
}
