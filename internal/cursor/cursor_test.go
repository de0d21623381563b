package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	t.Parallel()

	buf := []byte{
		0x01, 0x02, // u16
		0x03, 0x04, 0x05, 0x06, // u32
		0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, // u64
		0xFF,       // byte
		0xAA, 0xBB, // raw bytes
	}
	r := NewReader(buf)

	v16, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v16)

	v32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x06050403), v32)

	v64, err := r.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0E0D0C0B0A090807), v64)

	b, err := r.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), b)

	raw, err := r.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, raw)

	assert.Equal(t, len(buf), r.Offset())
	assert.Equal(t, 0, r.Remaining())

	_, err = r.Byte()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestReaderBytesOwnsCopy(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3}
	r := NewReader(src)
	out, err := r.Bytes(3)
	require.NoError(t, err)

	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestReaderBounds(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1, 2})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = r.Bytes(-1)
	assert.ErrorIs(t, err, ErrShortBuffer)

	assert.ErrorIs(t, r.Skip(3), ErrShortBuffer)
	require.NoError(t, r.Skip(2))
	assert.Equal(t, 0, r.Remaining())
}

func TestWriter(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 14)
	w := NewWriter(buf)
	w.PutU32(0x06050403)
	w.PutU64(0x0E0D0C0B0A090807)
	w.PutBytes([]byte{0xAA, 0xBB})

	assert.Equal(t, 14, w.Offset())
	assert.Equal(t, []byte{
		0x03, 0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E,
		0xAA, 0xBB,
	}, buf)
}
