package wimlib

import (
	"log/slog"

	"github.com/google/uuid"
)

// Option configures a Container.
type Option func(*Container)

// WithLogger attaches a logger for debug diagnostics. Without it the
// container is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithGUID sets the container's identity instead of generating one, for
// example when re-opening an existing archive.
func WithGUID(guid uuid.UUID) Option {
	return func(c *Container) {
		c.guid = guid
	}
}
