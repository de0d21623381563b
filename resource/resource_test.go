package resource

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("metadata blob contents "), 100)

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionDeflate} {
		c := c
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := Compress(payload, c)
			require.NoError(t, err)

			out, err := Decompress(stored, uint64(len(payload)), c)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestDecompressValidatesDeclaredSize(t *testing.T) {
	t.Parallel()

	payload := []byte("some resource data")

	t.Run("uncompressed size mismatch", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress(payload, uint64(len(payload))+1, CompressionNone)
		assert.ErrorIs(t, err, ErrDecompression)
	})

	for _, c := range []Compression{CompressionZstd, CompressionDeflate} {
		c := c
		t.Run(c.String()+" declared too large", func(t *testing.T) {
			t.Parallel()
			stored, err := Compress(payload, c)
			require.NoError(t, err)
			_, err = Decompress(stored, uint64(len(payload))+1, c)
			assert.ErrorIs(t, err, ErrDecompression)
		})

		t.Run(c.String()+" declared too small", func(t *testing.T) {
			t.Parallel()
			stored, err := Compress(payload, c)
			require.NoError(t, err)
			_, err = Decompress(stored, uint64(len(payload))-1, c)
			assert.ErrorIs(t, err, ErrDecompression)
		})
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33}
	for _, c := range []Compression{CompressionZstd, CompressionDeflate} {
		c := c
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			_, err := Decompress(garbage, 1024, c)
			assert.ErrorIs(t, err, ErrDecompression)
		})
	}
}

func TestUnsupportedCompression(t *testing.T) {
	t.Parallel()

	_, err := Compress(nil, Compression(99))
	assert.ErrorIs(t, err, ErrUnsupportedCompression)

	_, err = Decompress(nil, 0, Compression(99))
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestCompressReturnsOwnedCopy(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3}
	stored, err := Compress(src, CompressionNone)
	require.NoError(t, err)

	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, stored)
}
