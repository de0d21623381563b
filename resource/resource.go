// Package resource implements the block codecs used for the container's
// compressed resources, including the metadata blob an image's security
// table and directory tree live in.
//
// A resource records its uncompressed size out of band, so decompression
// validates the declared size exactly instead of trusting the stream.
package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the codec a resource is stored with.
type Compression uint8

const (
	// CompressionNone stores the resource verbatim.
	CompressionNone Compression = iota

	// CompressionZstd stores the resource as a zstandard stream.
	CompressionZstd

	// CompressionDeflate stores the resource as a raw DEFLATE stream.
	CompressionDeflate
)

// String returns the codec name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Sentinel errors for resource codecs.
var (
	// ErrDecompression is returned when a compressed stream is corrupt or
	// does not decompress to its declared size.
	ErrDecompression = errors.New("resource: decompression failed")

	// ErrUnsupportedCompression is returned for a codec this build does not
	// implement.
	ErrUnsupportedCompression = errors.New("resource: unsupported compression")
)

// Option configures decompression.
type Option func(*config)

type config struct {
	maxDecoderMemory uint64
}

// WithDecoderMaxMemory caps the zstd decoder's window memory. Zero applies
// no limit.
func WithDecoderMaxMemory(limit uint64) Option {
	return func(cfg *config) {
		cfg.maxDecoderMemory = limit
	}
}

// Decompress expands a stored resource to exactly originalSize bytes.
//
// The declared size comes from container metadata and is untrusted: streams
// that expand to more or fewer bytes are rejected with ErrDecompression
// rather than truncated or padded.
func Decompress(data []byte, originalSize uint64, c Compression, opts ...Option) ([]byte, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch c {
	case CompressionNone:
		if uint64(len(data)) != originalSize {
			return nil, fmt.Errorf("%w: stored %d bytes, declared %d", ErrDecompression, len(data), originalSize)
		}
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil

	case CompressionZstd:
		zopts := []zstd.DOption{}
		if cfg.maxDecoderMemory != 0 {
			zopts = append(zopts, zstd.WithDecoderMaxMemory(cfg.maxDecoderMemory))
		}
		dec, err := zstd.NewReader(bytes.NewReader(data), zopts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		defer dec.Close()
		return readExactly(dec, originalSize)

	case CompressionDeflate:
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		return readExactly(fr, originalSize)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
}

// Compress stores data with the given codec.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil

	case CompressionZstd:
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionDeflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			fw.Close()
			return nil, err
		}
		if err := fw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
}

// readExactly reads originalSize bytes and verifies the stream ends there.
func readExactly(r io.Reader, originalSize uint64) ([]byte, error) {
	if originalSize > math.MaxInt {
		return nil, fmt.Errorf("%w: declared size %d is not addressable", ErrDecompression, originalSize)
	}
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: stream shorter than declared %d bytes: %v", ErrDecompression, originalSize, err)
	}
	var probe [1]byte
	if n, _ := r.Read(probe[:]); n != 0 {
		return nil, fmt.Errorf("%w: stream longer than declared %d bytes", ErrDecompression, originalSize)
	}
	return out, nil
}
