package gifenc

// ByteBuffer is a growable in-memory byte sink. The zero value is an
// empty buffer ready for use; NewByteBuffer preallocates minBufferCap
// bytes.
type ByteBuffer struct {
	buf []byte
	n   int
}

const minBufferCap = 256

// NewByteBuffer creates an empty buffer.
func NewByteBuffer() *ByteBuffer {
	return &ByteBuffer{buf: make([]byte, minBufferCap)}
}

// grow reallocates so that at least need more bytes fit. The new backing
// store is the next power of two >= n+need, doubling as a minimum.
func (bb *ByteBuffer) grow(need int) {
	want := bb.n + need
	size := len(bb.buf) * 2
	if size < minBufferCap {
		size = minBufferCap
	}
	for size < want {
		size *= 2
	}
	next := make([]byte, size)
	copy(next, bb.buf[:bb.n])
	bb.buf = next
}

// WriteByte appends a single byte.
func (bb *ByteBuffer) WriteByte(val byte) {
	if bb.n >= len(bb.buf) {
		bb.grow(1)
	}
	bb.buf[bb.n] = val
	bb.n++
}

// WriteBytes appends a byte slice.
func (bb *ByteBuffer) WriteBytes(data []byte) {
	if bb.n+len(data) > len(bb.buf) {
		bb.grow(len(data))
	}
	copy(bb.buf[bb.n:], data)
	bb.n += len(data)
}

// WriteString appends the raw bytes of s.
func (bb *ByteBuffer) WriteString(s string) {
	if bb.n+len(s) > len(bb.buf) {
		bb.grow(len(s))
	}
	copy(bb.buf[bb.n:], s)
	bb.n += len(s)
}

// WriteRepeated appends val exactly count times.
func (bb *ByteBuffer) WriteRepeated(val byte, count int) {
	if count <= 0 {
		return
	}
	if bb.n+count > len(bb.buf) {
		bb.grow(count)
	}
	for i := 0; i < count; i++ {
		bb.buf[bb.n+i] = val
	}
	bb.n += count
}

// Fill overwrites the already-written range [start, end) with val.
// The range must lie within the written region.
func (bb *ByteBuffer) Fill(val byte, start, end int) {
	if start < 0 {
		start = 0
	}
	if end > bb.n {
		end = bb.n
	}
	for i := start; i < end; i++ {
		bb.buf[i] = val
	}
}

// Bytes returns a contiguous view of everything written so far. The
// view aliases the backing store and is invalidated by further writes.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.buf[:bb.n]
}

// Len returns the number of bytes written.
func (bb *ByteBuffer) Len() int {
	return bb.n
}

// Reset sets the logical length to zero without releasing the backing
// store.
func (bb *ByteBuffer) Reset() {
	bb.n = 0
}
