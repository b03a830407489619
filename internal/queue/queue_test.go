package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, inputs ...string) *Queue {
	t.Helper()
	q := New()
	for _, in := range inputs {
		q.Enqueue(Item{OriginalInput: in})
	}
	return q
}

func inputs(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.OriginalInput)
	}
	return out
}

func TestEnqueue_FIFOAndDefaults(t *testing.T) {
	q := fill(t, "a", "b", "c")

	items := q.Items()
	assert.Equal(t, []string{"a", "b", "c"}, inputs(items))
	for _, it := range items {
		assert.NotEmpty(t, it.ID)
		assert.Equal(t, it.OriginalInput, it.Title)
		assert.False(t, it.Resolved)
		assert.False(t, it.AddedAt.IsZero())
	}
	assert.Equal(t, -1, q.CurrentIndex())
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestGetNext_AdvancesThenDrains(t *testing.T) {
	q := fill(t, "a", "b")

	it := q.GetNext()
	require.NotNil(t, it)
	assert.Equal(t, "a", it.OriginalInput)
	assert.Equal(t, 0, q.CurrentIndex())

	it = q.GetNext()
	require.NotNil(t, it)
	assert.Equal(t, "b", it.OriginalInput)

	assert.Nil(t, q.GetNext())
	assert.Equal(t, -1, q.CurrentIndex())
	assert.Equal(t, 2, q.Len(), "GetNext never removes")
}

func TestGetNext_EmptyQueue(t *testing.T) {
	q := New()
	assert.Nil(t, q.GetNext())
	assert.Equal(t, -1, q.CurrentIndex())
}

func TestGetCurrent(t *testing.T) {
	q := fill(t, "a", "b", "c")
	assert.Nil(t, q.GetCurrent(), "no current before the first GetNext")

	q.GetNext()
	q.GetNext()
	cur := q.GetCurrent()
	require.NotNil(t, cur)
	assert.Equal(t, "b", cur.OriginalInput)

	q.Clear()
	assert.Nil(t, q.GetCurrent())
}

func TestGetCurrent_ClampsCursorPastEnd(t *testing.T) {
	q := fill(t, "a", "b", "c")
	q.GetNext()
	q.GetNext()
	q.GetNext()
	q.mu.Lock()
	q.items = q.items[:1]
	q.mu.Unlock()

	cur := q.GetCurrent()
	require.NotNil(t, cur)
	assert.Equal(t, "a", cur.OriginalInput)
	assert.Equal(t, 0, q.CurrentIndex())
}

func TestSkip_SingleItem(t *testing.T) {
	q := fill(t, "only")
	q.GetNext()

	assert.Nil(t, q.Skip())
	assert.True(t, q.IsEmpty())
	assert.Equal(t, -1, q.CurrentIndex())
	assert.Nil(t, q.GetNext())
}

func TestSkip_AdvancesToFollowingItem(t *testing.T) {
	q := fill(t, "a", "b", "c")
	q.GetNext()

	next := q.Skip()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.OriginalInput)
	assert.Equal(t, []string{"b", "c"}, inputs(q.Items()))
	assert.Equal(t, 0, q.CurrentIndex())
}

func TestRemove_AdjustsCursor(t *testing.T) {
	tests := []struct {
		name      string
		advance   int
		removeAt  int
		wantIndex int
	}{
		{name: "remove current", advance: 2, removeAt: 1, wantIndex: 0},
		{name: "remove before current", advance: 3, removeAt: 0, wantIndex: 1},
		{name: "remove after current", advance: 1, removeAt: 2, wantIndex: 0},
		{name: "remove current at head", advance: 1, removeAt: 0, wantIndex: -1},
		{name: "no cursor", advance: 0, removeAt: 1, wantIndex: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := fill(t, "a", "b", "c")
			for range tt.advance {
				q.GetNext()
			}
			id := q.Items()[tt.removeAt].ID
			assert.True(t, q.Remove(id))
			assert.Equal(t, tt.wantIndex, q.CurrentIndex())
		})
	}
}

func TestRemove_UnknownID(t *testing.T) {
	q := fill(t, "a")
	q.GetNext()
	assert.False(t, q.Remove("missing"))
	assert.Equal(t, 0, q.CurrentIndex())
	assert.Equal(t, 1, q.Len())
}

func TestClear(t *testing.T) {
	q := fill(t, "a", "b")
	q.GetNext()
	q.SetPlaying(true)

	q.Clear()
	st := q.Status()
	assert.Empty(t, st.Items)
	assert.Equal(t, -1, st.CurrentIndex)
	assert.False(t, st.IsPlaying)
}

func TestMoveItem(t *testing.T) {
	tests := []struct {
		name      string
		advance   int
		from, to  int
		wantOrder []string
		wantIndex int
	}{
		{name: "move current forward", advance: 1, from: 0, to: 2, wantOrder: []string{"b", "c", "a", "d"}, wantIndex: 2},
		{name: "move across cursor from before", advance: 2, from: 0, to: 2, wantOrder: []string{"b", "c", "a", "d"}, wantIndex: 0},
		{name: "move across cursor from after", advance: 2, from: 3, to: 0, wantOrder: []string{"d", "a", "b", "c"}, wantIndex: 2},
		{name: "move behind cursor", advance: 3, from: 0, to: 1, wantOrder: []string{"b", "a", "c", "d"}, wantIndex: 2},
		{name: "move ahead of cursor", advance: 1, from: 2, to: 3, wantOrder: []string{"a", "b", "d", "c"}, wantIndex: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := fill(t, "a", "b", "c", "d")
			for range tt.advance {
				q.GetNext()
			}
			require.NoError(t, q.MoveItem(tt.from, tt.to))
			assert.Equal(t, tt.wantOrder, inputs(q.Items()))
			assert.Equal(t, tt.wantIndex, q.CurrentIndex())
		})
	}
}

func TestMoveItem_OutOfRange(t *testing.T) {
	q := fill(t, "a", "b")
	assert.ErrorIs(t, q.MoveItem(0, 2), ErrOutOfRange)
	assert.ErrorIs(t, q.MoveItem(-1, 0), ErrOutOfRange)
	assert.Equal(t, []string{"a", "b"}, inputs(q.Items()))
}

func TestMoveItem_RoundTrip(t *testing.T) {
	for cursorAt := -1; cursorAt < 6; cursorAt++ {
		q := fill(t, "a", "b", "c", "d", "e", "f")
		for range cursorAt + 1 {
			q.GetNext()
		}
		before := inputs(q.Items())
		i, j := 1, 4

		require.NoError(t, q.MoveItem(i, j))
		require.NoError(t, q.MoveItem(j, i))

		assert.Equal(t, before, inputs(q.Items()))
		if cursorAt < i || cursorAt > j {
			assert.Equal(t, cursorAt, q.CurrentIndex(), "cursor %d", cursorAt)
		}
	}
}

func TestUpdate(t *testing.T) {
	q := fill(t, "a")
	id := q.Items()[0].ID

	ok := q.Update(id, func(it *Item) {
		it.Title = "Resolved A"
		it.Kind = KindLocal
		it.Resolved = true
	})
	require.True(t, ok)
	it := q.Items()[0]
	assert.Equal(t, "Resolved A", it.Title)
	assert.Equal(t, KindLocal, it.Kind)
	assert.False(t, q.Update("missing", func(*Item) {}))
}

func TestAdjustCursor(t *testing.T) {
	tests := []struct {
		name string
		cur  int
		ch   change
		want int
	}{
		{name: "no cursor stays", cur: -1, ch: removal(0), want: -1},
		{name: "removal at cursor", cur: 2, ch: removal(2), want: 1},
		{name: "removal before cursor", cur: 2, ch: removal(0), want: 1},
		{name: "removal after cursor", cur: 2, ch: removal(3), want: 2},
		{name: "removal at head floors at -1", cur: 0, ch: removal(0), want: -1},
		{name: "move cursor item", cur: 1, ch: move(1, 4), want: 4},
		{name: "move over cursor forwards", cur: 2, ch: move(0, 3), want: 1},
		{name: "move onto cursor forwards", cur: 2, ch: move(0, 2), want: 1},
		{name: "move over cursor backwards", cur: 2, ch: move(4, 1), want: 3},
		{name: "move onto cursor backwards", cur: 2, ch: move(4, 2), want: 3},
		{name: "move outside cursor", cur: 2, ch: move(3, 5), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adjustCursor(tt.cur, tt.ch))
		})
	}
}
