// Package timeutil holds small time helpers shared by the simulation
// packages.
package timeutil

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
