package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrpoons-studio/wimlib/internal/cursor"
)

// ErrInvalidDescriptor is returned when a descriptor blob's internal
// offsets or declared sizes do not fit inside the blob.
var ErrInvalidDescriptor = errors.New("security: invalid descriptor")

// ACE type values understood by the inspector. Other types are preserved
// but not decoded beyond their header.
const (
	ACETypeAccessAllowed = 0x00
	ACETypeAccessDenied  = 0x01
	ACETypeSystemAudit   = 0x02
)

// Descriptor is the decoded form of one access-control descriptor.
//
// The codec never needs this view; it exists for inspection tooling. Fields
// referenced by a zero offset in the encoded form are nil.
type Descriptor struct {
	Revision byte
	Control  uint16
	Owner    *SID
	Group    *SID
	SACL     *ACL
	DACL     *ACL
}

// SID is a decoded security identifier.
type SID struct {
	Revision       byte
	Authority      [6]byte
	SubAuthorities []uint32
}

// ACL is a decoded access-control list.
type ACL struct {
	Revision byte
	Size     uint16
	Entries  []ACE
}

// ACE is one access-control entry. Mask and SID are only populated for
// access-allowed entries; for other types the entry is skipped using its
// declared size.
type ACE struct {
	Type  byte
	Flags byte
	Size  uint16
	Mask  uint32
	SID   *SID
}

// ParseDescriptor decodes a descriptor blob into owned structures.
//
// Every offset and declared size inside the blob is untrusted and checked
// against the blob's actual length. Decoding is field by field; the blob's
// bytes are never reinterpreted in place.
func ParseDescriptor(blob []byte) (*Descriptor, error) {
	r := cursor.NewReader(blob)

	revision, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidDescriptor)
	}
	if err := r.Skip(1); err != nil { // reserved
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidDescriptor)
	}
	control, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidDescriptor)
	}

	var offsets [4]uint32
	for i := range offsets {
		offsets[i], err = r.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidDescriptor)
		}
	}

	d := &Descriptor{Revision: revision, Control: control}
	if d.Owner, err = sidAt(blob, offsets[0]); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if d.Group, err = sidAt(blob, offsets[1]); err != nil {
		return nil, fmt.Errorf("group: %w", err)
	}
	if d.SACL, err = aclAt(blob, offsets[2]); err != nil {
		return nil, fmt.Errorf("system acl: %w", err)
	}
	if d.DACL, err = aclAt(blob, offsets[3]); err != nil {
		return nil, fmt.Errorf("discretionary acl: %w", err)
	}
	return d, nil
}

// sidAt decodes the SID at a header offset. A zero offset means absent.
func sidAt(blob []byte, offset uint32) (*SID, error) {
	if offset == 0 {
		return nil, nil
	}
	if uint64(offset) >= uint64(len(blob)) {
		return nil, fmt.Errorf("%w: offset %d outside %d-byte descriptor", ErrInvalidDescriptor, offset, len(blob))
	}
	return parseSID(cursor.NewReader(blob[offset:]))
}

func parseSID(r *cursor.Reader) (*SID, error) {
	revision, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated sid", ErrInvalidDescriptor)
	}
	count, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated sid", ErrInvalidDescriptor)
	}
	authority, err := r.Bytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated sid", ErrInvalidDescriptor)
	}

	sid := &SID{Revision: revision, SubAuthorities: make([]uint32, count)}
	copy(sid.Authority[:], authority)
	for i := range sid.SubAuthorities {
		sid.SubAuthorities[i], err = r.U32()
		if err != nil {
			return nil, fmt.Errorf("%w: sid declares %d sub-authorities but holds %d", ErrInvalidDescriptor, count, i)
		}
	}
	return sid, nil
}

// aclAt decodes the ACL at a header offset. A zero offset means absent.
func aclAt(blob []byte, offset uint32) (*ACL, error) {
	if offset == 0 {
		return nil, nil
	}
	if uint64(offset) >= uint64(len(blob)) {
		return nil, fmt.Errorf("%w: offset %d outside %d-byte descriptor", ErrInvalidDescriptor, offset, len(blob))
	}

	r := cursor.NewReader(blob[offset:])
	revision, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated acl", ErrInvalidDescriptor)
	}
	if err := r.Skip(1); err != nil { // reserved
		return nil, fmt.Errorf("%w: truncated acl", ErrInvalidDescriptor)
	}
	size, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated acl", ErrInvalidDescriptor)
	}
	count, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated acl", ErrInvalidDescriptor)
	}
	if err := r.Skip(2); err != nil { // reserved
		return nil, fmt.Errorf("%w: truncated acl", ErrInvalidDescriptor)
	}

	acl := &ACL{Revision: revision, Size: size, Entries: make([]ACE, 0, count)}
	for i := 0; i < int(count); i++ {
		ace, err := parseACE(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		acl.Entries = append(acl.Entries, ace)
	}
	return acl, nil
}

func parseACE(r *cursor.Reader) (ACE, error) {
	start := r.Offset()

	aceType, err := r.Byte()
	if err != nil {
		return ACE{}, fmt.Errorf("%w: truncated ace header", ErrInvalidDescriptor)
	}
	flags, err := r.Byte()
	if err != nil {
		return ACE{}, fmt.Errorf("%w: truncated ace header", ErrInvalidDescriptor)
	}
	size, err := r.U16()
	if err != nil {
		return ACE{}, fmt.Errorf("%w: truncated ace header", ErrInvalidDescriptor)
	}
	if size < 4 {
		return ACE{}, fmt.Errorf("%w: ace size %d is smaller than its own header", ErrInvalidDescriptor, size)
	}

	ace := ACE{Type: aceType, Flags: flags, Size: size}
	if aceType == ACETypeAccessAllowed {
		if ace.Mask, err = r.U32(); err != nil {
			return ACE{}, fmt.Errorf("%w: truncated access mask", ErrInvalidDescriptor)
		}
		if ace.SID, err = parseSID(r); err != nil {
			return ACE{}, err
		}
	}

	// The declared size is authoritative for finding the next entry,
	// regardless of how much of this one we decoded.
	consumed := r.Offset() - start
	if int(size) < consumed {
		return ACE{}, fmt.Errorf("%w: ace size %d is smaller than its %d decoded bytes", ErrInvalidDescriptor, size, consumed)
	}
	if err := r.Skip(int(size) - consumed); err != nil {
		return ACE{}, fmt.Errorf("%w: ace size %d extends past the acl", ErrInvalidDescriptor, size)
	}
	return ace, nil
}

// String renders the descriptor in the same shape as the archive inspection
// tooling, one field per line.
func (d *Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revision = %d\n", d.Revision)
	fmt.Fprintf(&b, "Control = 0x%04x\n", d.Control)
	writeSID(&b, "Owner", d.Owner)
	writeSID(&b, "Group", d.Group)
	writeACL(&b, "System ACL", d.SACL)
	writeACL(&b, "Discretionary ACL", d.DACL)
	return b.String()
}

func writeSID(b *strings.Builder, label string, sid *SID) {
	if sid == nil {
		fmt.Fprintf(b, "%s = (absent)\n", label)
		return
	}
	fmt.Fprintf(b, "%s = [SID]\n", label)
	fmt.Fprintf(b, "    Revision = %d\n", sid.Revision)
	fmt.Fprintf(b, "    Identifier authority = % x\n", sid.Authority)
	for i, sub := range sid.SubAuthorities {
		fmt.Fprintf(b, "    Subauthority %d = %d\n", i, sub)
	}
}

func writeACL(b *strings.Builder, label string, acl *ACL) {
	if acl == nil {
		fmt.Fprintf(b, "%s = (absent)\n", label)
		return
	}
	fmt.Fprintf(b, "%s = [ACL]\n", label)
	fmt.Fprintf(b, "    Revision = %d\n", acl.Revision)
	fmt.Fprintf(b, "    ACL size = %d\n", acl.Size)
	fmt.Fprintf(b, "    ACE count = %d\n", len(acl.Entries))
	for _, ace := range acl.Entries {
		fmt.Fprintf(b, "    [ACE] type = %d, flags = 0x%02x, size = %d\n", ace.Type, ace.Flags, ace.Size)
		if ace.Type == ACETypeAccessAllowed {
			fmt.Fprintf(b, "        Access mask = 0x%08x\n", ace.Mask)
		}
	}
}
