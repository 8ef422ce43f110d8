package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Lock names shared by every instance
const (
	lockIndexing = "pipeline:indexing"
	lockIntake   = "pipeline:intake"
)

const defaultRunLockTTL = 5 * time.Minute

func sendLockName(responseID int64) string {
	return fmt.Sprintf("send:%d", responseID)
}

// acquireRunLock takes the named lock for the duration of a run and keeps it
// alive until the returned release func is called. A nil lock is a no-op.
// Returns domain.ErrRunInProgress when another holder owns the lock.
func acquireRunLock(ctx context.Context, lock driven.DistributedLock, name string, ttl time.Duration, logger *slog.Logger) (func(), error) {
	if lock == nil {
		return func() {}, nil
	}
	if ttl <= 0 {
		ttl = defaultRunLockTTL
	}

	acquired, err := lock.Acquire(ctx, name, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrRunInProgress)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := lock.Extend(context.WithoutCancel(ctx), name, ttl); err != nil {
					logger.Debug("failed to extend lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		if err := lock.Release(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("failed to release lock", "lock", name, "error", err)
		}
	}, nil
}
