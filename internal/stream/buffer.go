package stream

import "sync"

// opusBuffer is a bounded FIFO of encoded packets between the encoder and
// the sink. Push blocks while full; Pop blocks while empty.
type opusBuffer struct {
	mu       sync.Mutex
	packets  [][]byte
	maxSize  int
	readPos  int
	count    int
	closed   bool
	eos      bool
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

func newOpusBuffer(maxPackets int) *opusBuffer {
	ob := &opusBuffer{
		packets: make([][]byte, maxPackets),
		maxSize: maxPackets,
	}
	ob.notEmpty = sync.NewCond(&ob.mu)
	ob.notFull = sync.NewCond(&ob.mu)
	return ob
}

// Push returns false once the buffer is closed or marked end of stream.
func (ob *opusBuffer) Push(data []byte) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for ob.count == ob.maxSize && !ob.closed && !ob.eos {
		ob.notFull.Wait()
	}
	if ob.closed || ob.eos {
		return false
	}
	ob.packets[(ob.readPos+ob.count)%ob.maxSize] = data
	ob.count++
	ob.notEmpty.Signal()
	return true
}

// Pop returns false when the buffer is closed, or drained after MarkEOS.
func (ob *opusBuffer) Pop() ([]byte, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for {
		if ob.closed {
			return nil, false
		}
		if ob.count > 0 {
			pkt := ob.packets[ob.readPos]
			ob.packets[ob.readPos] = nil
			ob.readPos = (ob.readPos + 1) % ob.maxSize
			ob.count--
			ob.notFull.Signal()
			return pkt, true
		}
		if ob.eos {
			return nil, false
		}
		ob.notEmpty.Wait()
	}
}

func (ob *opusBuffer) BufferedCount() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.count
}

func (ob *opusBuffer) eosReached() bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.eos || ob.closed
}

func (ob *opusBuffer) MarkEOS() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.eos = true
	ob.notEmpty.Broadcast()
	ob.notFull.Broadcast()
}

func (ob *opusBuffer) Close() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.closed = true
	ob.notEmpty.Broadcast()
	ob.notFull.Broadcast()
}
