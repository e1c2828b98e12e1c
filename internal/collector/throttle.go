package collector

import (
	"context"
	"time"

	"github.com/duckhq/duckwatch/internal/latch"
)

// PolitenessDelay is the inter-request pause collectors should observe
// between successive calls to the same upstream (spec §4.4, §5).
const PolitenessDelay = 300 * time.Millisecond

// Throttle sleeps for PolitenessDelay, or returns early (with a non-nil
// error) if the context is canceled or the stop signal fires first.
func Throttle(ctx context.Context, stop *latch.StopSignal) error {
	timer := time.NewTimer(PolitenessDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stop.Done():
		return context.Canceled
	}
}
