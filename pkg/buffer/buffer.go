// Package buffer provides a growable, append-only byte store used as the
// backing store for session receive buffers, the HTTP message cache and
// the WebSocket frame decoder. It is the zero-copy foundation the rest of netcore builds on:
// callers take slice views into a Buffer instead of copying out of it.
package buffer

import "unicode/utf8"

// initialCapacity is used when a zero-value Buffer receives its first append.
const initialCapacity = 64

// Buffer is a contiguous byte array whose logical Size is tracked
// independently of its capacity. It grows by doubling. Buffer is not
// thread-safe; callers that share one across goroutines must lock around
// it themselves (the owning session does this).
type Buffer struct {
	data []byte
	size int
}

// New creates an empty Buffer with the given initial capacity hint.
func New(capacityHint int) *Buffer {
	if capacityHint <= 0 {
		capacityHint = initialCapacity
	}
	return &Buffer{data: make([]byte, capacityHint)}
}

// Size returns the logical length of the buffer's contents.
func (b *Buffer) Size() int { return b.size }

// Cap returns the buffer's current capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// grow ensures the underlying array can address at least n bytes, doubling
// capacity (or more, if n demands it) rather than growing to exactly n.
func (b *Buffer) grow(n int) {
	if n <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < n {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.size])
	b.data = grown
}

// Resize sets the logical size to n, growing the backing array if needed.
// Data beyond the previous Size is left uninitialized (garbage); the caller
// is responsible for filling it in, e.g. via a subsequent OS read into
// Slice(oldSize, n).
func (b *Buffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	b.grow(n)
	b.size = n
}

// Clear resets the logical size to zero without releasing capacity.
func (b *Buffer) Clear() {
	b.size = 0
}

// Append appends a byte span, growing the buffer as needed, and returns the
// offset at which it was written.
func (b *Buffer) Append(p []byte) int {
	off := b.size
	b.grow(b.size + len(p))
	copy(b.data[off:], p)
	b.size += len(p)
	return off
}

// AppendByte appends a single byte and returns the offset it was written at.
func (b *Buffer) AppendByte(c byte) int {
	off := b.size
	b.grow(b.size + 1)
	b.data[off] = c
	b.size++
	return off
}

// AppendString appends a UTF-8 encoded string (a "character span" in the
// spec's terms) and returns the offset it was written at.
func (b *Buffer) AppendString(s string) int {
	return b.Append([]byte(s))
}

// AppendRune appends a single rune, UTF-8 encoded.
func (b *Buffer) AppendRune(r rune) int {
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	return b.Append(tmp[:n])
}

// At returns the byte at index i. It panics on out-of-range access, mirroring
// slice semantics.
func (b *Buffer) At(i int) byte {
	return b.data[:b.size][i]
}

// Slice returns a zero-copy view of the data in [start, end). The returned
// slice aliases the buffer's backing array and is invalidated by any
// subsequent Append/Resize that triggers a grow.
func (b *Buffer) Slice(start, end int) []byte {
	return b.data[start:end]
}

// AsReadOnlySpan returns a zero-copy view of the full logical contents.
func (b *Buffer) AsReadOnlySpan() []byte {
	return b.data[:b.size]
}

// ExtractString returns a copy of [offset, offset+size) decoded as UTF-8.
// Unlike Slice, this does not alias the buffer: the caller gets an owned
// string, safe to retain past further mutation of the buffer.
func (b *Buffer) ExtractString(offset, size int) string {
	return string(b.data[offset : offset+size])
}

// Discard removes the first n bytes of logical content, shifting the
// remainder down to offset 0. Used by the HTTP message cache and the
// WebSocket frame decoder once a complete message/frame has been consumed
// so the next parse pass starts from a clean prefix.
func (b *Buffer) Discard(n int) {
	if n <= 0 {
		return
	}
	if n >= b.size {
		b.size = 0
		return
	}
	copy(b.data, b.data[n:b.size])
	b.size -= n
}
