// File: buffer/ringbuf.go
//
// Fixed-capacity byte buffer with independent read and write cursors.
// One buffer per direction per connection; space consumed by already-read
// bytes is reclaimed by compaction (Rewind), never by reallocation.

package buffer

// RingBuffer is a bounded byte buffer addressed by two cursors:
// offset (next byte to read) and pos (next byte to write).
// Invariant: 0 <= offset <= pos <= capacity.
//
// A RingBuffer is owned by exactly one connection and is never shared
// across goroutines; no internal locking.
type RingBuffer struct {
	data   []byte
	offset int // read cursor
	pos    int // write cursor
}

// New allocates a zeroed buffer of exactly capacity bytes.
// Panics on a non-positive capacity: buffer sizing is fixed at
// construction and a zero-capacity transport buffer is a programming
// error, not a runtime condition.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("buffer: non-positive ring buffer capacity")
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (b *RingBuffer) Cap() int { return len(b.data) }

// Len returns the number of readable bytes, pos-offset.
func (b *RingBuffer) Len() int { return b.pos - b.offset }

// Free returns the writable space before compaction, capacity-pos.
func (b *RingBuffer) Free() int { return len(b.data) - b.pos }

// Offset returns the read cursor.
func (b *RingBuffer) Offset() int { return b.offset }

// Pos returns the write cursor.
func (b *RingBuffer) Pos() int { return b.pos }

// Write copies up to len(p) bytes in at the write cursor and returns the
// count actually stored. If free space is short it first compacts via
// Rewind and recomputes. A short return is the backpressure signal: the
// caller retries once readers have drained the buffer. Never blocks.
func (b *RingBuffer) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	free := len(b.data) - b.pos
	if free < len(p) {
		b.Rewind()
		free = len(b.data) - b.pos
	}
	n := len(p)
	if n > free {
		n = free
	}
	copy(b.data[b.pos:], p[:n])
	b.pos += n
	return n
}

// WriteString is Write for string payloads.
func (b *RingBuffer) WriteString(s string) int {
	if len(s) == 0 {
		return 0
	}
	free := len(b.data) - b.pos
	if free < len(s) {
		b.Rewind()
		free = len(b.data) - b.pos
	}
	n := len(s)
	if n > free {
		n = free
	}
	copy(b.data[b.pos:], s[:n])
	b.pos += n
	return n
}

// Read copies up to len(p) readable bytes out from the read cursor and
// returns the count. Draining the buffer completely resets both cursors
// to zero, so a fully consumed buffer is always empty-at-origin.
func (b *RingBuffer) Read(p []byte) int {
	n := b.pos - b.offset
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	copy(p, b.data[b.offset:b.offset+n])
	b.offset += n
	if b.offset == b.pos {
		b.offset = 0
		b.pos = 0
	}
	return n
}

// Peek returns a view of the readable span without advancing the read
// cursor. The slice aliases the buffer's storage and is valid only until
// the next mutating call.
func (b *RingBuffer) Peek() []byte {
	return b.data[b.offset:b.pos]
}

// Rewind compacts: shifts the unread range [offset,pos) down to the
// origin with an overlap-safe copy and returns the number of bytes
// moved. No-op when offset is already zero.
func (b *RingBuffer) Rewind() int {
	if b.offset == 0 {
		return 0
	}
	n := b.pos - b.offset
	if n > 0 {
		copy(b.data, b.data[b.offset:b.pos])
	}
	b.offset = 0
	b.pos = n
	return n
}

// Skip advances the read cursor by n, clamped so offset stays within
// [0,pos]. The write path uses Skip to retire bytes the transport has
// acknowledged as sent. Returns the count actually skipped.
func (b *RingBuffer) Skip(n int) int {
	if n < 0 {
		n = 0
	}
	if max := b.pos - b.offset; n > max {
		n = max
	}
	b.offset += n
	if b.offset == b.pos {
		b.offset = 0
		b.pos = 0
	}
	return n
}

// Seek moves the write cursor, clamped into [offset, capacity-1].
func (b *RingBuffer) Seek(pos int) int {
	if pos < b.offset {
		pos = b.offset
	}
	if pos > len(b.data)-1 {
		pos = len(b.data) - 1
	}
	b.pos = pos
	return b.pos
}

// Clear resets both cursors without releasing storage.
func (b *RingBuffer) Clear() {
	b.offset = 0
	b.pos = 0
}
