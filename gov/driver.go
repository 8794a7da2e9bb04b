package gov

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Driver runs the wall-clock loop around an orchestrator. It sleeps to each
// window boundary and calls Tick; the sleep itself is never observable by the
// core, which keeps every decision a function of recorded facts. Replay calls
// Tick directly and does not use a Driver at all.
type Driver struct {
	Orch *Orchestrator
	// MaxWindows bounds the run; 0 means run until the context is cancelled.
	MaxWindows int64
}

// Run drives the orchestrator until the context is cancelled, MaxWindows is
// reached, or a fatal core error surfaces. When the loop falls more than one
// window behind, the missed boundaries are skipped forward; the governor
// never tries to catch up by ticking faster than real time.
func (d *Driver) Run(ctx context.Context) error {
	window := time.Duration(d.Orch.window) * time.Microsecond
	nextWake := time.Now().Add(window)
	ticked := int64(0)

	for d.MaxWindows == 0 || ticked < d.MaxWindows {
		sleep := time.Until(nextWake)
		if sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		if lag := time.Since(nextWake); lag > window {
			logrus.Warnf("window drift %v exceeds window size %v", lag, window)
		}

		if err := d.Orch.Tick(); err != nil {
			return err
		}
		ticked++

		nextWake = nextWake.Add(window)
		if behind := time.Since(nextWake); behind > 0 {
			missed := int64(behind/window) + 1
			logrus.Warnf("lag: skipping %d windows", missed)
			nextWake = nextWake.Add(time.Duration(missed) * window)
		}
	}
	return nil
}
