// Package security implements the on-disk security-descriptor table found
// at the start of every image metadata blob.
//
// The table is a size-prefixed array of opaque descriptor blobs. The codec
// treats each descriptor as a length-delimited byte string it must round-trip
// losslessly; interpreting the access-control data inside a descriptor is the
// job of [ParseDescriptor] and is only used by inspection tooling.
//
// All length fields in the encoded table are attacker-controlled and are
// validated against the actual buffer before any allocation or copy.
package security

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"

	"github.com/mrpoons-studio/wimlib/internal/cursor"
)

// HeaderSize is the fixed size of the table header: a uint32 total length
// followed by a uint32 entry count.
const HeaderSize = 8

// Sentinel errors for security table decoding.
var (
	// ErrInvalidResourceSize is returned when a declared length field is
	// inconsistent with the bytes actually available, including overflow in
	// the descriptor size accumulation. The containing image should be
	// rejected; the table is never silently truncated or repaired.
	ErrInvalidResourceSize = errors.New("security: invalid resource size")
)

// Table is the in-memory security-descriptor table for one image.
//
// A Table is shared across image metadata records by reference counting:
// exporting an image into another container retains the table instead of
// copying it. None of the share-count updates are atomic; callers must
// serialize all mutation of a shared table (see the package-level
// concurrency contract in the root package).
type Table struct {
	totalLength uint32
	sizes       []uint64
	descriptors [][]byte
	shareCount  int
}

// NewTable returns a fresh empty table with a share count of one.
//
// An empty table encodes to the 8-byte header only.
func NewTable() *Table {
	return &Table{totalLength: HeaderSize, shareCount: 1}
}

// DecodeOption configures a Decode call.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	logger     *slog.Logger
	maxEntries uint32
}

// WithLogger attaches a logger for decode diagnostics.
func WithLogger(logger *slog.Logger) DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.logger = logger
	}
}

// WithMaxEntries caps the accepted descriptor count. Tables declaring more
// entries are rejected as invalid. Zero disables the cap; the decoder is
// already bounded by the buffer length either way.
func WithMaxEntries(limit uint32) DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.maxEntries = limit
	}
}

func (cfg *decodeConfig) log() *slog.Logger {
	if cfg.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg.logger
}

// Decode parses the security-descriptor table at the start of a metadata
// blob. The buffer must hold at least the 8-byte header.
//
// Only the table's own bytes are consumed; trailing bytes belong to the next
// structure in the blob (the directory tree) and are left untouched. On
// success the table's total length is re-derived from the descriptor sizes
// actually read, tolerating an on-disk total that over-states padding.
//
// No partial table is returned on failure.
func Decode(buf []byte, opts ...DecodeOption) (*Table, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := cursor.NewReader(buf)
	declaredTotal, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: metadata blob shorter than the %d-byte header", ErrInvalidResourceSize, HeaderSize)
	}
	entryCount, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: metadata blob shorter than the %d-byte header", ErrInvalidResourceSize, HeaderSize)
	}

	// The declared table must fit inside the bytes we were actually given.
	if uint64(declaredTotal) > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: declared length %d exceeds metadata blob length %d",
			ErrInvalidResourceSize, declaredTotal, len(buf))
	}

	cfg.log().Debug("reading security data", "entries", entryCount, "length", declaredTotal)

	if entryCount == 0 {
		// The header is the only valid encoding of an empty table; a larger
		// declared total is not consumed and not an error.
		return &Table{totalLength: HeaderSize, shareCount: 1}, nil
	}

	if cfg.maxEntries != 0 && entryCount > cfg.maxEntries {
		return nil, fmt.Errorf("%w: %d entries exceeds the configured cap of %d",
			ErrInvalidResourceSize, entryCount, cfg.maxEntries)
	}

	// The declared total must leave room for the size array. Note the total
	// length is a 32-bit field even though each descriptor size is 64-bit,
	// so the individual sizes stay untrusted until accumulated below.
	sizesBytes := uint64(entryCount) * 8
	headerAndSizes := uint64(HeaderSize) + sizesBytes
	if headerAndSizes > uint64(declaredTotal) {
		return nil, fmt.Errorf("%w: declared length %d is too short for %d descriptor sizes",
			ErrInvalidResourceSize, declaredTotal, entryCount)
	}

	sizes := make([]uint64, entryCount)
	for i := range sizes {
		sizes[i], err = r.U64()
		if err != nil {
			return nil, fmt.Errorf("%w: size array truncated at entry %d", ErrInvalidResourceSize, i)
		}
	}

	descriptors := make([][]byte, entryCount)
	accumulated := headerAndSizes
	for i, size := range sizes {
		// A huge declared size must not wrap the running total and sneak
		// past the bound check below.
		sum, carry := bits.Add64(accumulated, size, 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: descriptor size %d at entry %d overflows the running total %d",
				ErrInvalidResourceSize, size, i, accumulated)
		}
		accumulated = sum
		if accumulated > uint64(declaredTotal) {
			return nil, fmt.Errorf("%w: declared length %d is too short for at least %d bytes of security data",
				ErrInvalidResourceSize, declaredTotal, accumulated)
		}
		// size <= declaredTotal <= len(buf) here, so it fits in an int and
		// the copy is bounded by the input we already hold.
		descriptors[i], err = r.Bytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%w: descriptor %d truncated", ErrInvalidResourceSize, i)
		}
	}

	return &Table{
		// The accumulated length is authoritative; the on-disk field may
		// over-state padding that belongs to no descriptor.
		totalLength: uint32(accumulated),
		sizes:       sizes,
		descriptors: descriptors,
		shareCount:  1,
	}, nil
}

// Encode serializes the table to its on-disk form: total length, entry
// count, the size array, then the concatenated descriptor bytes.
//
// Encode panics if the number of bytes written differs from the table's
// recorded total length. That mismatch means the table was mutated without
// maintaining its length invariant, which is a defect in the caller, not a
// recoverable condition.
func (t *Table) Encode() []byte {
	buf := make([]byte, t.totalLength)
	w := cursor.NewWriter(buf)
	w.PutU32(t.totalLength)
	w.PutU32(uint32(len(t.descriptors)))
	for _, size := range t.sizes {
		w.PutU64(size)
	}
	for _, d := range t.descriptors {
		w.PutBytes(d)
	}
	if w.Offset() != int(t.totalLength) {
		panic(fmt.Sprintf("security: encoded %d bytes for a table recording a total length of %d",
			w.Offset(), t.totalLength))
	}
	return buf
}

// Add appends a descriptor blob to the table and returns its index.
//
// The table takes ownership of the slice; callers must not modify it after
// the call. Add must only be used by the capture logic that exclusively owns
// the table.
func (t *Table) Add(descriptor []byte) int {
	t.sizes = append(t.sizes, uint64(len(descriptor)))
	t.descriptors = append(t.descriptors, descriptor)
	t.totalLength += 8 + uint32(len(descriptor))
	return len(t.descriptors) - 1
}

// Count returns the number of descriptors in the table.
func (t *Table) Count() int {
	return len(t.descriptors)
}

// TotalLength returns the encoded byte length of the table.
func (t *Table) TotalLength() uint32 {
	return t.totalLength
}

// Size returns the declared byte length of descriptor i.
func (t *Table) Size(i int) uint64 {
	return t.sizes[i]
}

// Descriptor returns the raw bytes of descriptor i.
//
// The slice is owned by the table and must be treated as read-only.
func (t *Table) Descriptor(i int) []byte {
	return t.descriptors[i]
}

// Retain adds a share to the table and returns it.
//
// Shares track lifetime, not write access: a shared table must not be
// mutated without external serialization.
func (t *Table) Retain() *Table {
	if t.shareCount < 1 {
		panic("security: retain of a released table")
	}
	t.shareCount++
	return t
}

// Release drops one share and reports whether that was the last one.
//
// After the last release the table's storage is surrendered and the table
// must not be used again.
func (t *Table) Release() bool {
	if t.shareCount < 1 {
		panic("security: release of a released table")
	}
	t.shareCount--
	if t.shareCount > 0 {
		return false
	}
	t.sizes = nil
	t.descriptors = nil
	return true
}

// ShareCount returns the number of metadata records referencing the table.
func (t *Table) ShareCount() int {
	return t.shareCount
}
