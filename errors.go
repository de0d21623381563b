package wimlib

import (
	"github.com/mrpoons-studio/wimlib/resource"
	"github.com/mrpoons-studio/wimlib/security"
)

// Errors re-exported from security.
var (
	// ErrInvalidResourceSize is returned when a security table's declared
	// lengths are inconsistent with the bytes actually available.
	ErrInvalidResourceSize = security.ErrInvalidResourceSize

	// ErrInvalidDescriptor is returned when a descriptor blob's internal
	// offsets or sizes do not fit inside the blob.
	ErrInvalidDescriptor = security.ErrInvalidDescriptor
)

// Errors re-exported from resource.
var (
	// ErrDecompression is returned when a compressed resource is corrupt or
	// does not expand to its declared size.
	ErrDecompression = resource.ErrDecompression

	// ErrUnsupportedCompression is returned for a codec this build does not
	// implement.
	ErrUnsupportedCompression = resource.ErrUnsupportedCompression
)
