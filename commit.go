package wimlib

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/mrpoons-studio/wimlib/index"
)

// Commit drains the pending-hash queue of every image, computing the
// canonical digest of each captured stream and inserting it into the
// container's lookup table. Streams whose content is already present merge
// into the existing entry instead of storing a duplicate.
//
// Hashing runs concurrently across streams; mutation of the shared lookup
// table stays on the calling goroutine. On error the queues are left in
// place so the commit can be retried.
func (c *Container) Commit(ctx context.Context) error {
	for n, imd := range c.images {
		if err := c.commitImage(ctx, imd); err != nil {
			return fmt.Errorf("image %d: %w", n+1, err)
		}
	}
	return nil
}

// commitImage hashes one image's pending streams and publishes them.
func (c *Container) commitImage(ctx context.Context, imd *ImageMetadata) error {
	pending := imd.PendingStreams()
	if len(pending) == 0 {
		return nil
	}

	entries := make([]*index.Entry, len(pending))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ps := range pending {
		i, ps := i, ps
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := hashStream(ps)
			if err != nil {
				return fmt.Errorf("hash %s: %w", ps.Path, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, entry := range entries {
		stored := c.lookup.Insert(entry)
		if stored != entry {
			c.log().Debug("deduplicated stream", "path", pending[i].Path, "digest", stored.Digest)
		}
	}
	imd.pending = nil
	return nil
}

// hashStream computes a pending stream's digest and builds its entry.
func hashStream(ps *PendingStream) (*index.Entry, error) {
	rc, err := ps.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	digester := digest.Canonical.Digester()
	n, err := io.Copy(digester.Hash(), rc)
	if err != nil {
		return nil, err
	}
	if uint64(n) != ps.Size {
		return nil, fmt.Errorf("stream changed during capture: expected %d bytes, read %d", ps.Size, n)
	}

	entry := index.NewEntry(digester.Digest())
	entry.OriginalSize = uint64(n)
	return entry, nil
}
