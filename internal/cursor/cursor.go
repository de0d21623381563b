// Package cursor provides little-endian reads and writes over a flat
// buffer with an explicit offset. All on-disk integers in the archive
// format are little-endian regardless of host byte order.
package cursor

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read extends past the end of the buffer.
var ErrShortBuffer = errors.New("cursor: read past end of buffer")

// Reader extracts little-endian values from a byte buffer.
//
// The buffer is aliased, not copied; Bytes returns owned copies so callers
// can retain them independently of the source buffer.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrShortBuffer
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// Bytes reads n bytes and returns an owned copy.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.Remaining() < n {
		return ErrShortBuffer
	}
	r.off += n
	return nil
}

// Writer inserts little-endian values into a pre-sized byte buffer.
//
// Writers are used where the encoded size is known up front, so writes
// never grow the buffer. Offset reports how many bytes have been written.
type Writer struct {
	buf []byte
	off int
}

// NewWriter creates a Writer over buf starting at offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.off
}

// PutU32 writes a little-endian uint32.
func (w *Writer) PutU32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

// PutU64 writes a little-endian uint64.
func (w *Writer) PutU64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

// PutBytes writes b verbatim.
func (w *Writer) PutBytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}
