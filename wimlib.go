package wimlib

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mrpoons-studio/wimlib/index"
	"github.com/mrpoons-studio/wimlib/security"
)

// ErrInvalidImage is returned when an image position is outside the
// container's image array. Positions are 1-based.
var ErrInvalidImage = errors.New("wimlib: invalid image position")

// Container is an open archive: an ordered array of captured images plus
// the content-addressed lookup table they deduplicate against.
//
// A Container is not safe for concurrent use. Share counts on the records
// it manages exist for lifetime management, not write arbitration; callers
// that work with a container from multiple goroutines must serialize all
// operations externally.
type Container struct {
	guid         uuid.UUID
	images       []*ImageMetadata
	currentImage int // 1-based position, 0 when no image is selected
	lookup       *index.Table
	logger       *slog.Logger
}

// New creates an empty container with a fresh GUID and an empty lookup
// table.
func New(opts ...Option) *Container {
	c := &Container{
		guid:   uuid.New(),
		lookup: index.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Container) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// GUID returns the container's identity.
func (c *Container) GUID() uuid.UUID {
	return c.guid
}

// Lookup returns the container's content lookup table.
func (c *Container) Lookup() *index.Table {
	return c.lookup
}

// ImageCount returns the number of images in the container.
func (c *Container) ImageCount() int {
	return len(c.images)
}

// Append attaches a metadata record to the container's image array and
// returns its 1-based position. The container takes over the caller's
// share of the record.
func (c *Container) Append(imd *ImageMetadata) int {
	c.images = append(c.images, imd)
	return len(c.images)
}

// ImageMetadata returns the record at the 1-based position n.
func (c *Container) ImageMetadata(n int) (*ImageMetadata, error) {
	if n < 1 || n > len(c.images) {
		return nil, fmt.Errorf("%w: %d of %d images", ErrInvalidImage, n, len(c.images))
	}
	return c.images[n-1], nil
}

// CurrentImage returns the 1-based position of the selected image, or 0
// when none is selected.
func (c *Container) CurrentImage() int {
	return c.currentImage
}

// CurrentImageMetadata returns the selected image's record, or nil when no
// image is selected.
func (c *Container) CurrentImageMetadata() *ImageMetadata {
	if c.currentImage == 0 {
		return nil
	}
	return c.images[c.currentImage-1]
}

// SecurityData returns the selected image's security table, or nil when no
// image is selected.
func (c *Container) SecurityData() *security.Table {
	imd := c.CurrentImageMetadata()
	if imd == nil {
		return nil
	}
	return imd.SecurityData
}

// RootEntry returns the selected image's directory-tree root, or nil when
// no image is selected.
func (c *Container) RootEntry() any {
	imd := c.CurrentImageMetadata()
	if imd == nil {
		return nil
	}
	return imd.RootEntry
}

// SelectImage switches the current image to the 1-based position n.
//
// When switching away from an image whose tree has not been modified, the
// in-memory tree reference is dropped; the loader can re-read it from the
// container on demand. A modified tree stays resident so the mutation is
// not lost.
func (c *Container) SelectImage(n int) error {
	if n < 1 || n > len(c.images) {
		return fmt.Errorf("%w: %d of %d images", ErrInvalidImage, n, len(c.images))
	}
	if n == c.currentImage {
		return nil
	}
	if prev := c.CurrentImageMetadata(); prev != nil && !prev.Modified() {
		prev.RootEntry = nil
	}
	c.currentImage = n
	c.log().Debug("selected image", "image", n)
	return nil
}

// AddImage creates a fresh image for capture: a new metadata record with an
// empty security table, appended to the array and selected. The new record
// and its 1-based position are returned.
func (c *Container) AddImage() (*ImageMetadata, int) {
	imd := NewImageMetadata()
	imd.SetSecurityData(security.NewTable())
	n := c.Append(imd)
	c.currentImage = n
	c.log().Debug("added image", "image", n)
	return imd, n
}

// ExportImage shares the image at the 1-based position n of src into this
// container's image array, returning the new position.
//
// Nothing is copied: the record's share count is incremented and the same
// record appears in both containers. Its security table and inode list are
// reached through the shared record and so are shared as well.
func (c *Container) ExportImage(src *Container, n int) (int, error) {
	imd, err := src.ImageMetadata(n)
	if err != nil {
		return 0, err
	}
	pos := c.Append(imd.Retain())
	c.log().Debug("exported image", "source", src.guid, "image", n, "position", pos)
	return pos, nil
}

// DeleteImage releases one share of the image at the 1-based position n and
// removes it from the array. The record is destroyed only when this was its
// last share; a copy exported into another container keeps it alive.
//
// Positions of later images shift down by one, matching the on-disk image
// numbering.
func (c *Container) DeleteImage(n int) error {
	if n < 1 || n > len(c.images) {
		return fmt.Errorf("%w: %d of %d images", ErrInvalidImage, n, len(c.images))
	}
	imd := c.images[n-1]
	destroyed := imd.Release(c.lookup)
	c.images = append(c.images[:n-1], c.images[n:]...)
	switch {
	case c.currentImage == n:
		c.currentImage = 0
	case c.currentImage > n:
		c.currentImage--
	}
	c.log().Debug("deleted image", "image", n, "destroyed", destroyed)
	return nil
}

// Close releases the container's share of every image record.
func (c *Container) Close() {
	for _, imd := range c.images {
		imd.Release(c.lookup)
	}
	c.images = nil
	c.currentImage = 0
}
