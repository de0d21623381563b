// Package index implements the container's content-addressed lookup table.
//
// The table maps a content digest to the single stored copy of that content,
// which is how file data is deduplicated across the images in a container.
// Entries are reference counted: every directory-tree stream and every
// image's own metadata blob that points at a piece of content holds one
// reference to its entry.
package index

import (
	"github.com/opencontainers/go-digest"

	"github.com/mrpoons-studio/wimlib/resource"
)

// Entry describes one stored piece of content.
type Entry struct {
	// Digest of the uncompressed content; the table key.
	Digest digest.Digest

	// Where and how the content is stored in the container.
	Offset       uint64
	StoredSize   uint64
	OriginalSize uint64
	Compression  resource.Compression

	refCount uint32
}

// NewEntry creates an entry with a reference count of one.
func NewEntry(dgst digest.Digest) *Entry {
	return &Entry{Digest: dgst, refCount: 1}
}

// RefCount returns the number of references to this entry.
func (e *Entry) RefCount() uint32 {
	return e.refCount
}

// Ref adds a reference to the entry.
func (e *Entry) Ref() {
	e.refCount++
}

// Table is the digest-keyed lookup table shared by all images in a
// container. It is not safe for concurrent mutation; callers serialize
// access the same way they do for metadata records.
type Table struct {
	entries map[digest.Digest]*Entry
}

// New creates an empty lookup table.
func New() *Table {
	return &Table{entries: make(map[digest.Digest]*Entry)}
}

// Len returns the number of distinct contents in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the entry for a digest, if present.
func (t *Table) Lookup(dgst digest.Digest) (*Entry, bool) {
	e, ok := t.entries[dgst]
	return e, ok
}

// Insert adds an entry keyed by its digest.
//
// If an entry for the digest already exists, the new entry's references are
// merged into the existing one, which is returned; the duplicate content is
// dropped. Otherwise the entry itself is returned.
func (t *Table) Insert(e *Entry) *Entry {
	if existing, ok := t.entries[e.Digest]; ok {
		existing.refCount += e.refCount
		return existing
	}
	t.entries[e.Digest] = e
	return e
}

// Unref drops one reference from the entry and reports whether that removed
// the entry from the table.
//
// Entries that were never inserted (for example a metadata record released
// before commit) are simply decremented.
func (t *Table) Unref(e *Entry) bool {
	if e == nil {
		return false
	}
	if e.refCount > 0 {
		e.refCount--
	}
	if e.refCount > 0 {
		return false
	}
	if existing, ok := t.entries[e.Digest]; ok && existing == e {
		delete(t.entries, e.Digest)
		return true
	}
	return false
}
