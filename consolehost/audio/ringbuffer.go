package audio

import (
	"io"
	"sync"
)

// RingBuffer is a fixed-size byte FIFO between the pipeline and a pull-based
// player. Writes never block: when full, the oldest bytes are overwritten.
// Reads never block either: missing bytes are filled with silence so the
// player keeps its cadence through underruns.
type RingBuffer struct {
	mu     sync.Mutex
	buf    []byte
	r      int
	n      int
	closed bool
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write appends p, dropping the oldest buffered bytes on overflow.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return 0, io.ErrClosedPipe
	}

	written := len(p)
	size := len(rb.buf)
	if len(p) >= size {
		p = p[len(p)-size:]
		copy(rb.buf, p)
		rb.r, rb.n = 0, size
		return written, nil
	}

	if over := rb.n + len(p) - size; over > 0 {
		rb.r = (rb.r + over) % size
		rb.n -= over
	}

	w := (rb.r + rb.n) % size
	c := copy(rb.buf[w:], p)
	copy(rb.buf, p[c:])
	rb.n += len(p)
	return written, nil
}

// Read copies buffered bytes into p and zero-fills the rest. After Close it
// drains what is left and then reports io.EOF.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed && rb.n == 0 {
		return 0, io.EOF
	}

	size := len(rb.buf)
	k := min(len(p), rb.n)
	c := copy(p[:k], rb.buf[rb.r:])
	copy(p[c:k], rb.buf)
	rb.r = (rb.r + k) % size
	rb.n -= k

	if rb.closed {
		return k, nil
	}
	clear(p[k:])
	return len(p), nil
}

// Buffered returns the number of unread bytes.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.n
}

// Clear discards all buffered bytes.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	rb.r, rb.n = 0, 0
	rb.mu.Unlock()
}

func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
}
