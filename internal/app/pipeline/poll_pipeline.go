package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// Cycler runs one dashboard update.
type Cycler interface {
	Cycle(ctx context.Context) error
}

// RunPollLoop runs one cycle immediately and then one per interval until ctx
// is cancelled. Cycles never overlap: a slow cycle delays the next tick.
func RunPollLoop(ctx context.Context, c Cycler, interval time.Duration, obs ports.Observability) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	runOnce(ctx, c, obs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce(ctx, c, obs)
		}
	}
}

func runOnce(ctx context.Context, c Cycler, obs ports.Observability) {
	start := time.Now()
	err := c.Cycle(ctx)
	if ctx.Err() != nil {
		return
	}
	obs.ObserveLatency("perfwatch_cycle_seconds", time.Since(start).Seconds())
	// read failures are already reported by the cycle
	if err != nil && !errors.Is(err, dashboard.ErrDisconnected) {
		obs.LogError("poll_cycle_failed", err)
	}
}
