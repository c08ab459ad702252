package janitor

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is any store that can drop entries past their deadline.
type Sweepable interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Target names a store for the sweep log.
type Target struct {
	Name  string
	Store Sweepable
}

// Janitor periodically removes expired authorization codes and abandoned
// pending requests. Without it the lazily-checked maps grow without bound
// under sustained traffic. Access tokens are deliberately not swept; they
// have no expiry in this design.
type Janitor struct {
	logger   *slog.Logger
	interval time.Duration
	targets  []Target
}

// New constructs a janitor sweeping the given targets.
func New(logger *slog.Logger, interval time.Duration, targets ...Target) *Janitor {
	return &Janitor{
		logger:   logger,
		interval: interval,
		targets:  targets,
	}
}

// Run sweeps on a ticker until the context is cancelled. Intended to run in
// its own goroutine for the process lifetime.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.Sweep(ctx, now)
		}
	}
}

// Sweep runs one pass over all targets. Exposed for tests and for a final
// sweep on shutdown.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) {
	for _, target := range j.targets {
		deleted, err := target.Store.DeleteExpired(ctx, now)
		if err != nil {
			j.logger.WarnContext(ctx, "sweep failed", "store", target.Name, "error", err)
			continue
		}
		if deleted > 0 {
			j.logger.DebugContext(ctx, "swept expired entries", "store", target.Name, "deleted", deleted)
		}
	}
}
