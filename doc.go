// Package wimlib implements the image-metadata model of a disk-image
// archive container: an archive holds one or more captured filesystem
// images, each with its own directory tree, access-control table, and a
// share of the container's content-addressed lookup table.
//
// The package covers two tightly coupled pieces:
//
//   - The security subpackage encodes and decodes the security-descriptor
//     table embedded at the start of every image's metadata blob, validating
//     every attacker-controlled length field before allocating.
//   - [Container] and [ImageMetadata] manage per-image metadata records and
//     their reference-counted sharing, so exporting an image into another
//     container shares one record (and its security table) instead of
//     copying it.
//
// Supporting subpackages: resource holds the block codecs container
// resources are stored with, and index is the digest-keyed lookup table
// file content deduplicates against.
//
// # Capture flow
//
//	c := wimlib.New()
//	imd, _ := c.AddImage()
//	imd.QueueStream(&wimlib.PendingStream{Path: "a.txt", Size: 5, Open: open})
//	err := c.Commit(ctx) // hashes pending streams into c.Lookup()
//
// # Concurrency
//
// Nothing in this package synchronizes internally. Share counts exist for
// lifetime management only; callers that touch a container from multiple
// goroutines must serialize every operation externally.
package wimlib
