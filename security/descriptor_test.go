package security

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSID encodes a SID with the well-known NT authority.
func buildSID(tb testing.TB, subAuthorities ...uint32) []byte {
	tb.Helper()

	buf := []byte{1, byte(len(subAuthorities)), 0, 0, 0, 0, 0, 5}
	for _, sub := range subAuthorities {
		buf = binary.LittleEndian.AppendUint32(buf, sub)
	}
	return buf
}

// buildDescriptor lays out a descriptor with an owner SID and a DACL
// holding one access-allowed entry.
func buildDescriptor(tb testing.TB) []byte {
	tb.Helper()

	owner := buildSID(tb, 32, 544)
	aceSID := buildSID(tb, 18)

	// Access-allowed ACE: type, flags, size, mask, embedded SID.
	ace := []byte{ACETypeAccessAllowed, 0x02}
	ace = binary.LittleEndian.AppendUint16(ace, uint16(8+len(aceSID)))
	ace = binary.LittleEndian.AppendUint32(ace, 0x001F01FF)
	ace = append(ace, aceSID...)

	acl := []byte{2, 0}
	acl = binary.LittleEndian.AppendUint16(acl, uint16(8+len(ace)))
	acl = binary.LittleEndian.AppendUint16(acl, 1)
	acl = binary.LittleEndian.AppendUint16(acl, 0)
	acl = append(acl, ace...)

	ownerOff := uint32(20)
	daclOff := ownerOff + uint32(len(owner))

	desc := []byte{1, 0}
	desc = binary.LittleEndian.AppendUint16(desc, 0x8004)
	desc = binary.LittleEndian.AppendUint32(desc, ownerOff)
	desc = binary.LittleEndian.AppendUint32(desc, 0) // group absent
	desc = binary.LittleEndian.AppendUint32(desc, 0) // sacl absent
	desc = binary.LittleEndian.AppendUint32(desc, daclOff)
	desc = append(desc, owner...)
	desc = append(desc, acl...)
	return desc
}

func TestParseDescriptor(t *testing.T) {
	t.Parallel()

	d, err := ParseDescriptor(buildDescriptor(t))
	require.NoError(t, err)

	assert.Equal(t, byte(1), d.Revision)
	assert.Equal(t, uint16(0x8004), d.Control)

	require.NotNil(t, d.Owner)
	assert.Equal(t, byte(1), d.Owner.Revision)
	assert.Equal(t, [6]byte{0, 0, 0, 0, 0, 5}, d.Owner.Authority)
	assert.Equal(t, []uint32{32, 544}, d.Owner.SubAuthorities)

	assert.Nil(t, d.Group)
	assert.Nil(t, d.SACL)

	require.NotNil(t, d.DACL)
	assert.Equal(t, byte(2), d.DACL.Revision)
	require.Len(t, d.DACL.Entries, 1)

	ace := d.DACL.Entries[0]
	assert.Equal(t, byte(ACETypeAccessAllowed), ace.Type)
	assert.Equal(t, byte(0x02), ace.Flags)
	assert.Equal(t, uint32(0x001F01FF), ace.Mask)
	require.NotNil(t, ace.SID)
	assert.Equal(t, []uint32{18}, ace.SID.SubAuthorities)
}

func TestParseDescriptorRejectsCorruption(t *testing.T) {
	t.Parallel()

	t.Run("truncated header", func(t *testing.T) {
		t.Parallel()
		_, err := ParseDescriptor(buildDescriptor(t)[:10])
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})

	t.Run("offset outside blob", func(t *testing.T) {
		t.Parallel()
		desc := buildDescriptor(t)
		binary.LittleEndian.PutUint32(desc[4:], uint32(len(desc))+100)
		_, err := ParseDescriptor(desc)
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})

	t.Run("sid declares more sub-authorities than it holds", func(t *testing.T) {
		t.Parallel()
		desc := buildDescriptor(t)
		// Owner SID starts at 20; its second byte is the declared count.
		desc[21] = 200
		_, err := ParseDescriptor(desc)
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})

	t.Run("ace smaller than its header", func(t *testing.T) {
		t.Parallel()
		owner := buildSID(t, 1)
		acl := []byte{2, 0, 12, 0, 1, 0, 0, 0, ACETypeSystemAudit, 0, 2, 0}
		desc := []byte{1, 0, 0, 0}
		desc = binary.LittleEndian.AppendUint32(desc, 0)
		desc = binary.LittleEndian.AppendUint32(desc, 0)
		desc = binary.LittleEndian.AppendUint32(desc, 0)
		desc = binary.LittleEndian.AppendUint32(desc, 20+uint32(len(owner)))
		desc = append(desc, owner...)
		desc = append(desc, acl...)
		_, err := ParseDescriptor(desc)
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})
}

func TestDescriptorString(t *testing.T) {
	t.Parallel()

	d, err := ParseDescriptor(buildDescriptor(t))
	require.NoError(t, err)

	out := d.String()
	assert.Contains(t, out, "Revision = 1")
	assert.Contains(t, out, "Owner = [SID]")
	assert.Contains(t, out, "Group = (absent)")
	assert.Contains(t, out, "Discretionary ACL = [ACL]")
	assert.Contains(t, out, "Access mask = 0x001f01ff")
}
