package wimlib

import (
	"io"

	"github.com/mrpoons-studio/wimlib/index"
	"github.com/mrpoons-studio/wimlib/security"
)

// UnixData is the optional UNIX ownership information carried on an inode.
type UnixData struct {
	UID  uint32
	GID  uint32
	Mode uint32
}

// Inode is one inode record belonging to an image. The directory-entry tree
// parser populates inodes during load; the registry only owns their
// lifetime.
type Inode struct {
	Number    uint64
	LinkCount uint32
	UnixData  *UnixData
}

// PendingStream is captured file content that has not yet been hashed into
// the container's lookup table. Pending streams are queued during image
// capture and drained by [Container.Commit].
type PendingStream struct {
	// Path is the in-image path the content was captured from, kept for
	// diagnostics.
	Path string

	// Size is the captured byte count.
	Size uint64

	// Open returns a fresh reader over the captured content.
	Open func() (io.ReadCloser, error)
}

// ImageMetadata is the per-image metadata record: the image's directory
// tree root, security table, content-index entry for its own metadata blob,
// inode list, and pending-hash queue.
//
// Records are shared by reference counting. Exporting an image into another
// container retains the record instead of copying it; the record is
// destroyed when its last share is released. Share counts track lifetime
// only — a shared record must not be mutated without external
// serialization, and none of the counter updates are atomic.
type ImageMetadata struct {
	shareCount int

	// RootEntry references the root of the image's directory-entry tree.
	// The tree parser lives outside this module; the registry only manages
	// the reference, including dropping it when an unmodified image is
	// deselected.
	RootEntry any

	// SecurityData is the image's security-descriptor table. Nil only
	// transiently during construction.
	SecurityData *security.Table

	// MetadataEntry is the lookup-table entry describing where this image's
	// own metadata blob is stored in the container.
	MetadataEntry *index.Entry

	inodes   []*Inode
	pending  []*PendingStream
	modified bool
}

// NewImageMetadata returns an empty record with a share count of one, no
// security table attached, and empty inode and pending lists.
func NewImageMetadata() *ImageMetadata {
	return &ImageMetadata{shareCount: 1}
}

// Retain adds a share to the record and returns it.
//
// Callers must treat the record as shared from then on: the registry does
// not implement copy-on-write, so mutating a shared record is a contract
// violation it cannot detect beyond the counter itself.
func (imd *ImageMetadata) Retain() *ImageMetadata {
	if imd.shareCount < 1 {
		panic("wimlib: retain of a released image metadata record")
	}
	imd.shareCount++
	return imd
}

// Release drops one share and reports whether that destroyed the record.
//
// Destroying the record releases its inode list, discards any pending
// streams still queued (they are expected to have been committed already),
// releases one share of the attached security table, and drops one
// reference from the record's own metadata-blob entry in lookup.
func (imd *ImageMetadata) Release(lookup *index.Table) bool {
	if imd.shareCount < 1 {
		panic("wimlib: release of a released image metadata record")
	}
	imd.shareCount--
	if imd.shareCount > 0 {
		return false
	}
	imd.inodes = nil
	imd.pending = nil
	imd.RootEntry = nil
	if imd.SecurityData != nil {
		imd.SecurityData.Release()
		imd.SecurityData = nil
	}
	if imd.MetadataEntry != nil && lookup != nil {
		lookup.Unref(imd.MetadataEntry)
		imd.MetadataEntry = nil
	}
	return true
}

// ShareCount returns the number of containers sharing the record.
func (imd *ImageMetadata) ShareCount() int {
	return imd.shareCount
}

// SetSecurityData attaches a security table, transferring the caller's
// share of it to the record.
//
// To share one table across two records, retain it for the second one:
//
//	other.SetSecurityData(tbl.Retain())
//
// Any previously attached table has its share released.
func (imd *ImageMetadata) SetSecurityData(tbl *security.Table) {
	if imd.SecurityData != nil {
		imd.SecurityData.Release()
	}
	imd.SecurityData = tbl
}

// AddInode appends an inode to the image's inode list.
func (imd *ImageMetadata) AddInode(inode *Inode) {
	imd.inodes = append(imd.inodes, inode)
}

// Inodes returns the image's inode list. The slice is owned by the record.
func (imd *ImageMetadata) Inodes() []*Inode {
	return imd.inodes
}

// QueueStream appends captured content to the pending-hash queue.
func (imd *ImageMetadata) QueueStream(ps *PendingStream) {
	imd.pending = append(imd.pending, ps)
}

// PendingStreams returns the pending-hash queue in capture order.
func (imd *ImageMetadata) PendingStreams() []*PendingStream {
	return imd.pending
}

// MarkModified records that the directory tree has been mutated in memory.
// The transition is one way; it is only undone by replacing the record
// wholesale, for example by re-reading the image from the container.
func (imd *ImageMetadata) MarkModified() {
	imd.modified = true
}

// Modified reports whether the in-memory tree has diverged from the
// container and must be kept resident across image selection.
func (imd *ImageMetadata) Modified() bool {
	return imd.modified
}
