// Package iobuf provides a growable in-memory buffer implementing both
// io.ReaderAt and io.WriterAt, the backing store for the fully-buffered
// writer the two-phase address-patch algorithm requires (spec: the writer
// is never streaming — patch-at-offset needs random-access write).
package iobuf

import "io"

// Buffer is a growable byte slice addressable at arbitrary offsets. The zero
// value is ready to use.
type Buffer struct {
	data []byte
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// WriteAt implements io.WriterAt, growing the buffer as needed. Unlike
// os.File.WriteAt, gaps between the previous length and off are zero-filled,
// matching the semantics callers already rely on when patching addresses
// into headers written before their targets exist.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[off:end], p)
	return len(p), nil
}

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the buffer's current contents. The returned slice aliases
// the buffer's storage and must not be retained across further writes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the current buffer length.
func (b *Buffer) Len() int64 {
	return int64(len(b.data))
}

// Truncate sets the buffer's logical length, zero-filling if it grows.
func (b *Buffer) Truncate(size int64) {
	if size <= int64(len(b.data)) {
		b.data = b.data[:size]
		return
	}
	grown := make([]byte, size)
	copy(grown, b.data)
	b.data = grown
}
