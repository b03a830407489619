package queue

// change describes one structural edit of the sequence. A removal has
// to == -1.
type change struct {
	from int
	to   int
}

func removal(p int) change       { return change{from: p, to: -1} }
func move(from, to int) change   { return change{from: from, to: to} }
func (c change) isRemoval() bool { return c.to < 0 }

// adjustCursor returns where the cursor points after ch is applied. The
// result is never below -1.
func adjustCursor(cur int, ch change) int {
	if cur < 0 {
		return -1
	}
	if ch.isRemoval() {
		if ch.from <= cur {
			return cur - 1
		}
		return cur
	}
	switch {
	case ch.from == cur:
		return ch.to
	case ch.from < cur && ch.to >= cur:
		return cur - 1
	case ch.from > cur && ch.to <= cur:
		return cur + 1
	}
	return cur
}
