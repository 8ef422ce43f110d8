package driven

import (
	"context"
	"time"
)

// DistributedLock serializes pipeline runs, scheduler ticks and reply sends
// across docdesk instances. Names are plain strings such as
// "pipeline:indexing" or "send:42".
type DistributedLock interface {
	// Acquire takes name without blocking. It returns false when another
	// holder owns it, including a second Acquire by the same holder.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops name. Releasing a lock that is not held is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes the deadline of a held lock; it fails when the caller
	// no longer holds it. Backends without deadlines only check ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
